// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"image"
	"strings"

	"github.com/unixdj/qrcodec/coding"
	"github.com/unixdj/qrcodec/detect"
	"golang.org/x/image/draw"
)

// A Result is the content of a decoded QR code.
type Result struct {
	Text     string           // concatenated segment text in UTF-8
	Mode     string           // mode of the segments, or "mixed"
	Version  coding.Version   // symbol version
	Level    Level            // error correction level
	Mask     int              // mask pattern
	ECI      int              // last ECI designator, -1 if none
	Segments []coding.Segment // data segments, ECI segments excluded
}

// Decode decodes the QR code in an RGBA image of the given
// dimensions, 4 bytes per pixel, with no padding between rows.
// Alpha is not premultiplied, as in image.NRGBA; transparent pixels
// are taken to be on a white background.
func Decode(pix []byte, width, height int) (*Result, error) {
	lum, err := luminance(pix, width, height)
	if err != nil {
		return nil, err
	}
	return DecodeGray(lum, width, height)
}

// luminance converts RGBA pixels to 8 bit luminance.
func luminance(pix []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 || len(pix) < 4*width*height {
		return nil, ErrArgs
	}
	lum := make([]byte, width*height)
	for i := range lum {
		p := pix[4*i : 4*i+4]
		y := (299*int(p[0]) + 587*int(p[1]) + 114*int(p[2]) + 500) / 1000
		a := int(p[3])
		lum[i] = byte((y*a + 0xff*(0xff-a) + 0x7f) / 0xff)
	}
	return lum, nil
}

// DecodeImage decodes the QR code in img.
func DecodeImage(img image.Image) (*Result, error) {
	b := img.Bounds()
	g, ok := img.(*image.Gray)
	if !ok || g.Stride != b.Dx() {
		g = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(g, g.Bounds(), image.White, image.Point{}, draw.Src)
		draw.Draw(g, g.Bounds(), img, b.Min, draw.Over)
	}
	return DecodeGray(g.Pix, b.Dx(), b.Dy())
}

// DecodeGray decodes the QR code in an image of 8 bit luminance
// values of the given dimensions, with no padding between rows.
func DecodeGray(lum []byte, width, height int) (*Result, error) {
	if width <= 0 || height <= 0 || len(lum) < width*height {
		return nil, ErrArgs
	}
	sym, err := detect.Detect(detect.Binarize(lum, width, height))
	if err != nil {
		return nil, err
	}
	return decodeCode(sym.Code)
}

// decodeCode decodes a sampled symbol.  A symbol seen in a mirror
// samples transposed, so a failure is retried on the transpose.
func decodeCode(c *coding.Code) (*Result, error) {
	d, err := coding.Decode(c)
	if err != nil {
		var err1 error
		if d, err1 = coding.Decode(transpose(c)); err1 != nil {
			return nil, err
		}
	}
	return newResult(d), nil
}

func transpose(c *coding.Code) *coding.Code {
	t := coding.NewCode(c.Size)
	for y := 0; y < c.Size; y++ {
		for x := 0; x < c.Size; x++ {
			if c.Black(x, y) {
				t.Set(y, x, true)
			}
		}
	}
	return t
}

func newResult(d *coding.Decoded) *Result {
	r := &Result{
		Version: d.Version,
		Level:   d.Level,
		Mask:    d.Mask,
		ECI:     d.ECI,
	}
	var b strings.Builder
	for _, s := range d.Segments {
		if s.Mode == coding.ECI {
			continue
		}
		b.WriteString(s.Text)
		r.Segments = append(r.Segments, s)
		switch m := s.Mode.String(); r.Mode {
		case "":
			r.Mode = m
		case m:
		default:
			r.Mode = "mixed"
		}
	}
	r.Text = b.String()
	if r.Mode == "" {
		r.Mode = coding.Byte.String()
	}
	return r
}
