// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"errors"
	"image"
	"math"
	"strings"
	"testing"

	"github.com/liyue201/goqr"
	"github.com/skip2/go-qrcode"
	"github.com/unixdj/qrcodec/coding"
	"github.com/unixdj/qrcodec/detect"
	"github.com/unixdj/qrcodec/split"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var roundTripTests = []struct {
	text  string
	level Level
	mode  string
}{
	{"HELLO WORLD", M, "alphanumeric"},
	{"01234567", H, "numeric"},
	{"https://example.com/path?q=1", Q, "byte"},
	{"漢字テスト", L, "kanji"},
	{"café", M, "byte"},
	{"Order 12345678 from ABC-DEF", M, "mixed"},
	{"", L, "byte"},
	{strings.Repeat("the quick brown fox, ", 20), M, "byte"},
}

func TestRoundTrip(t *testing.T) {
	for _, tt := range roundTripTests {
		c, err := Encode(tt.text, tt.level)
		if err != nil {
			t.Errorf("Encode(%q, %v): %v", tt.text, tt.level, err)
			continue
		}
		r, err := DecodeImage(c.Image())
		if err != nil {
			t.Errorf("%q: DecodeImage: %v", tt.text, err)
			continue
		}
		if r.Text != tt.text || r.Mode != tt.mode {
			t.Errorf("encoded %q, decoded %q in mode %s, want mode %s",
				tt.text, r.Text, r.Mode, tt.mode)
		}
		if r.Version != c.Version || r.Level != c.Level ||
			r.Mask != c.Mask || r.ECI != -1 {
			t.Errorf("%q: decoded version %v level %v mask %d eci %d, encoded %v %v %d",
				tt.text, r.Version, r.Level, r.Mask, r.ECI,
				c.Version, c.Level, c.Mask)
		}
	}
}

func TestEncodeVersion(t *testing.T) {
	c, err := Encode("HELLO WORLD", M)
	if err != nil {
		t.Fatal(err)
	}
	if c.Version != 1 || c.Size != 21 || c.Stride != 3 {
		t.Errorf("version %v size %d stride %d, want 1 21 3",
			c.Version, c.Size, c.Stride)
	}
	if c.Scale != DefaultScale || c.Border != DefaultBorder {
		t.Errorf("scale %d border %d, want defaults", c.Scale, c.Border)
	}
	if b := c.Image().Bounds(); b.Dx() != 29*DefaultScale || b.Dy() != b.Dx() {
		t.Errorf("image bounds %v", b)
	}
}

func TestEncodeOptions(t *testing.T) {
	c, err := EncodeOptions("12", L, &Options{MinVersion: 5, Scale: 2, Border: -1})
	if err != nil {
		t.Fatal(err)
	}
	if c.Version != 5 || c.Size != 37 || c.Scale != 2 || c.Border != 0 {
		t.Errorf("version %v size %d scale %d border %d, want 5 37 2 0",
			c.Version, c.Size, c.Scale, c.Border)
	}
	if c, err = EncodeOptions("12", L, &Options{Border: 2}); err != nil {
		t.Fatal(err)
	} else if c.Border != 2 {
		t.Errorf("border %d, want 2", c.Border)
	}

	if _, err := EncodeOptions("x", L, &Options{ECI: 1000000}); err == nil {
		t.Error("ECI 1000000 accepted")
	}
}

func TestEncodeECI(t *testing.T) {
	for _, o := range []*Options{
		{ECI: UTF8ECI},
		{ECI: Latin1ECI, Flags: split.Latin1},
		{Flags: split.Latin1},
	} {
		c, err := EncodeOptions("café", M, o)
		if err != nil {
			t.Errorf("%+v: %v", *o, err)
			continue
		}
		r, err := DecodeImage(c.Image())
		if err != nil {
			t.Errorf("%+v: DecodeImage: %v", *o, err)
			continue
		}
		eci := o.ECI
		if eci == 0 {
			eci = -1
		}
		if r.Text != "café" || r.ECI != eci || len(r.Segments) != 1 {
			t.Errorf("%+v: decoded %q eci %d, %d segments", *o,
				r.Text, r.ECI, len(r.Segments))
		}
	}
}

func TestEncodeFallback(t *testing.T) {
	// Version 40 holds 2953 bytes at level L, 2331 at M.
	text := strings.Repeat("a", 2953)
	if _, err := Encode(text, H); err == nil {
		t.Fatal("2953 bytes fit at level H")
	}
	c, err := EncodeFallback(text, H, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Level != L || c.Version != 40 {
		t.Errorf("fell back to level %v version %v, want L 40", c.Level, c.Version)
	}

	if c, err = EncodeFallback("short", Q, nil); err != nil {
		t.Error(err)
	} else if c.Level != Q {
		t.Errorf("short text: level %v, want Q", c.Level)
	}

	_, err = EncodeFallback(text+"a", H, nil)
	var ce *CapacityError
	if !errors.As(err, &ce) || ce.Level != L {
		t.Errorf("2954 bytes: got %v, want *CapacityError at level L", err)
	}

	_, err = EncodeFallback("\xff", H, nil)
	var che *CharacterError
	if !errors.As(err, &che) || che.Offset != 0 {
		t.Errorf("invalid UTF-8: got %v, want *CharacterError", err)
	}
}

func TestEncodeSegments(t *testing.T) {
	eci, err := coding.ECISegment(UTF8ECI)
	if err != nil {
		t.Fatal(err)
	}
	c, err := EncodeSegments(Q, nil,
		eci,
		coding.Segment{Text: "123", Mode: coding.Numeric},
		coding.Segment{Text: "ABC", Mode: coding.Alphanumeric},
		coding.Segment{Text: "é", Mode: coding.Byte},
	)
	if err != nil {
		t.Fatal(err)
	}
	r, err := DecodeImage(c.Image())
	if err != nil {
		t.Fatal(err)
	}
	if r.Text != "123ABCé" || r.Mode != "mixed" || r.ECI != UTF8ECI ||
		len(r.Segments) != 3 {
		t.Errorf("decoded %q mode %s eci %d, %d segments",
			r.Text, r.Mode, r.ECI, len(r.Segments))
	}

	_, err = EncodeSegments(M, nil, coding.Segment{Text: "12a", Mode: coding.Numeric})
	var se coding.SegmentError
	if !errors.As(err, &se) || se.Text != "12a" {
		t.Errorf("invalid segment: got %v, want SegmentError", err)
	}
}

func TestDecodeRGBA(t *testing.T) {
	c, err := Encode("RGBA pixels", Q)
	if err != nil {
		t.Fatal(err)
	}
	src := c.Image()
	b := src.Bounds()
	img := image.NewNRGBA(b)
	draw.Draw(img, b, src, image.Point{}, draw.Src)
	r, err := Decode(img.Pix, b.Dx(), b.Dy())
	if err != nil || r.Text != "RGBA pixels" {
		t.Errorf("opaque: decoded %v, %v", r, err)
	}

	// Transparent black reads as the white background.
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 0xff {
			copy(img.Pix[i:i+4], []byte{0, 0, 0, 0})
		}
	}
	r, err = Decode(img.Pix, b.Dx(), b.Dy())
	if err != nil || r.Text != "RGBA pixels" {
		t.Errorf("transparent: decoded %v, %v", r, err)
	}
}

func TestDecodeArgs(t *testing.T) {
	if _, err := Decode(nil, 0, 0); err != ErrArgs {
		t.Errorf("Decode(nil, 0, 0) = %v, want ErrArgs", err)
	}
	if _, err := Decode(make([]byte, 4*15), 4, 4); err != ErrArgs {
		t.Errorf("short RGBA: got %v, want ErrArgs", err)
	}
	if _, err := DecodeGray(make([]byte, 10), 4, 4); err != ErrArgs {
		t.Errorf("short gray: got %v, want ErrArgs", err)
	}
	if _, err := DecodeGray(make([]byte, 10), -2, -5); err != ErrArgs {
		t.Errorf("negative size: got %v, want ErrArgs", err)
	}
}

func TestDecodeNotFound(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 120, 80))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	_, err := DecodeImage(img)
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, detect.ErrNotFound) {
		t.Errorf("blank image: got %v, want ErrNotFound", err)
	}
}

func TestDecodeSubImage(t *testing.T) {
	c, err := Encode("sub-image", M)
	if err != nil {
		t.Fatal(err)
	}
	src := c.Image()
	d := src.Bounds().Dx()
	img := image.NewGray(image.Rect(0, 0, 2*d, 2*d))
	draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(d/2, d/2, d/2+d, d/2+d), src, image.Point{}, draw.Src)
	sub := img.SubImage(image.Rect(d/2, d/2, d/2+d, d/2+d))
	r, err := DecodeImage(sub)
	if err != nil || r.Text != "sub-image" {
		t.Errorf("decoded %v, %v", r, err)
	}
}

// rotate returns src rotated by deg degrees about its centre, on a
// white canvas large enough to hold it.
func rotate(src image.Image, deg float64) *image.Gray {
	n := float64(src.Bounds().Dx())
	N := math.Ceil(n * 1.5)
	dst := image.NewGray(image.Rect(0, 0, int(N), int(N)))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	s, c := math.Sincos(deg * math.Pi / 180)
	s2d := f64.Aff3{
		c, -s, N/2 - c*n/2 + s*n/2,
		s, c, N/2 - s*n/2 - c*n/2,
	}
	draw.NearestNeighbor.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)
	return dst
}

func TestDecodeRotated(t *testing.T) {
	c, err := EncodeOptions("rotated symbol", Q, &Options{Scale: 6})
	if err != nil {
		t.Fatal(err)
	}
	for _, deg := range []float64{10, 30, 45, 60, 90, 180} {
		r, err := DecodeImage(rotate(c.Image(), deg))
		if err != nil || r.Text != "rotated symbol" {
			t.Errorf("%v°: decoded %v, %v", deg, r, err)
		}
	}
}

func TestDecodeScaled(t *testing.T) {
	c, err := EncodeOptions("scaled", M, &Options{Scale: 2})
	if err != nil {
		t.Fatal(err)
	}
	src := c.Image()
	for _, k := range []float64{2, 2.5, 3.7} {
		d := int(float64(src.Bounds().Dx()) * k)
		dst := image.NewGray(image.Rect(0, 0, d, d))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		r, err := DecodeImage(dst)
		if err != nil || r.Text != "scaled" {
			t.Errorf("×%v: decoded %v, %v", k, r, err)
		}
	}
}

var interopTexts = []string{
	"HELLO WORLD",
	"https://example.org/?id=42",
	"0123456789012345678901234567890123456789",
	`{"token":"c2VjcmV0","address":"https://music.example.net:9996"}`,
}

// TestDecodeGoQRCode decodes symbols made by another encoder.
func TestDecodeGoQRCode(t *testing.T) {
	for _, s := range interopTexts {
		q, err := qrcode.New(s, qrcode.Medium)
		if err != nil {
			t.Fatalf("qrcode.New(%q): %v", s, err)
		}
		r, err := DecodeImage(q.Image(500))
		if err != nil || r.Text != s {
			t.Errorf("%q: decoded %v, %v", s, r, err)
		}
	}
}

// TestGoQRRecognize reads our symbols with another decoder.
func TestGoQRRecognize(t *testing.T) {
	for _, s := range interopTexts {
		// goqr reverses the digits of each numeric mode group.
		if strings.Trim(s, "0123456789") == "" {
			continue
		}
		c, err := Encode(s, M)
		if err != nil {
			t.Fatal(err)
		}
		codes, err := goqr.Recognize(c.Image())
		if err != nil {
			t.Errorf("%q: goqr: %v", s, err)
			continue
		}
		if len(codes) != 1 {
			t.Errorf("%q: goqr found %d codes", s, len(codes))
			continue
		}
		payload := make([]byte, 0, len(codes[0].Payload))
		for _, b := range codes[0].Payload {
			payload = append(payload, byte(b))
		}
		if string(payload) != s {
			t.Errorf("goqr read %q, want %q", payload, s)
		}
	}
}

func BenchmarkEncode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Encode("https://example.com/a/reasonably/long/path", M); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	c, err := Encode("https://example.com/a/reasonably/long/path", M)
	if err != nil {
		b.Fatal(err)
	}
	src := c.Image()
	img := image.NewGray(src.Bounds())
	draw.Draw(img, img.Bounds(), src, image.Point{}, draw.Src)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeImage(img); err != nil {
			b.Fatal(err)
		}
	}
}
