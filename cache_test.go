// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"errors"
	"image"
	"testing"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// gray renders text as 8 bit luminance.
func gray(t testing.TB, text string) ([]byte, int) {
	c, err := EncodeOptions(text, M, &Options{Scale: 3})
	if err != nil {
		t.Fatal(err)
	}
	src := c.Image()
	img := image.NewGray(src.Bounds())
	draw.Draw(img, img.Bounds(), src, image.Point{}, draw.Src)
	return img.Pix, img.Bounds().Dx()
}

func TestCache(t *testing.T) {
	c := NewCache(0)
	if c.max != DefaultCacheSize {
		t.Errorf("NewCache(0) holds %d, want %d", c.max, DefaultCacheSize)
	}
	lum, d := gray(t, "cached")
	r0, err := c.DecodeGray(lum, d, d)
	if err != nil || r0.Text != "cached" {
		t.Fatalf("decoded %v, %v", r0, err)
	}
	r0.Segments[0].Text = "scribbled"
	r1, err := c.DecodeGray(lum, d, d)
	if err != nil || r1.Text != "cached" || r1.Segments[0].Text != "cached" {
		t.Errorf("second decode %v %v, %v", r1, r1.Segments, err)
	}
	if c.Len() != 1 {
		t.Errorf("%d entries, want 1", c.Len())
	}

	blank := make([]byte, d*d)
	for i := range blank {
		blank[i] = 0xff
	}
	for i := 0; i < 2; i++ {
		if _, err := c.DecodeGray(blank, d, d); !errors.Is(err, ErrNotFound) {
			t.Errorf("blank %d: got %v, want ErrNotFound", i, err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("%d entries, want 2", c.Len())
	}

	// Same pixels, other shape.
	if _, err := c.DecodeGray(blank, d/2, 2*d); !errors.Is(err, ErrNotFound) {
		t.Errorf("reshaped blank: got %v, want ErrNotFound", err)
	}
	if c.Len() != 3 {
		t.Errorf("%d entries, want 3", c.Len())
	}

	if _, err := c.DecodeGray(lum, d+1, d); err != ErrArgs {
		t.Errorf("short image: got %v, want ErrArgs", err)
	}
}

func TestCacheCollision(t *testing.T) {
	c := NewCache(4)
	c.hash = func([]byte, int, int) uint32 { return 7 }
	texts := []string{"first", "second", "third"}
	for _, s := range texts {
		lum, d := gray(t, s)
		if r, err := c.DecodeGray(lum, d, d); err != nil || r.Text != s {
			t.Errorf("%q: decoded %v, %v", s, r, err)
		}
	}
	for _, s := range texts {
		lum, d := gray(t, s)
		if r, err := c.DecodeGray(lum, d, d); err != nil || r.Text != s {
			t.Errorf("%q again: decoded %v, %v", s, r, err)
		}
	}
	if n := len(c.entries[7]); n != len(texts) || c.Len() != len(texts) {
		t.Errorf("%d entries, %d in bucket, want %d", c.Len(), n, len(texts))
	}
}

func TestCacheEvict(t *testing.T) {
	c := NewCache(2)
	type sample struct {
		lum []byte
		d   int
	}
	var imgs []sample
	for _, s := range []string{"one", "two", "three"} {
		lum, d := gray(t, s)
		imgs = append(imgs, sample{lum, d})
		if _, err := c.DecodeGray(lum, d, d); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("%d entries, want 2", c.Len())
	}
	for i, img := range imgs {
		key := checksum(img.lum, img.d, img.d)
		if got := c.lookup(key, img.lum, img.d, img.d) != nil; got != (i > 0) {
			t.Errorf("image %d cached: %v", i, got)
		}
	}
}

func TestCacheConcurrent(t *testing.T) {
	c := NewCache(4)
	texts := []string{"alpha", "beta"}
	lums := make([][]byte, len(texts))
	var d int
	for i, s := range texts {
		lums[i], d = gray(t, s)
	}
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		i := i
		g.Go(func() error {
			k := i % len(texts)
			r, err := c.DecodeGray(lums[k], d, d)
			if err == nil && r.Text != texts[k] {
				err = errors.New("decoded " + r.Text + ", want " + texts[k])
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if c.Len() != len(texts) {
		t.Errorf("%d entries, want %d", c.Len(), len(texts))
	}
}

func BenchmarkCacheHit(b *testing.B) {
	c := NewCache(0)
	lum, d := gray(b, "benchmark")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.DecodeGray(lum, d, d); err != nil {
			b.Fatal(err)
		}
	}
}
