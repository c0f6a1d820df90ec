// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/unixdj/qrcodec/coding"
)

// gray is a luminance image.
type gray struct {
	pix  []byte
	w, h int
}

func blank(w, h int) *gray {
	g := &gray{make([]byte, w*h), w, h}
	for i := range g.pix {
		g.pix[i] = 0xff
	}
	return g
}

func (g *gray) fill(x, y, w, h int, v byte) {
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			g.pix[j*g.w+i] = v
		}
	}
}

func (g *gray) transpose() *gray {
	t := &gray{make([]byte, len(g.pix)), g.h, g.w}
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			t.pix[x*t.w+y] = g.pix[y*g.w+x]
		}
	}
	return t
}

// rotate turns g a quarter clockwise.
func (g *gray) rotate() *gray {
	t := &gray{make([]byte, len(g.pix)), g.h, g.w}
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			t.pix[x*t.w+(g.h-1-y)] = g.pix[y*g.w+x]
		}
	}
	return t
}

func (g *gray) detect() (*Symbol, error) {
	return Detect(Binarize(g.pix, g.w, g.h))
}

// render draws c with the given module size and quiet zone.
func render(c *coding.Code, scale, border int) *gray {
	n := (c.Size + 2*border) * scale
	g := blank(n, n)
	for y := 0; y < c.Size; y++ {
		for x := 0; x < c.Size; x++ {
			if c.Black(x, y) {
				g.fill((x+border)*scale, (y+border)*scale, scale, scale, 0)
			}
		}
	}
	return g
}

// finderAt draws a finder pattern with its top left corner
// at module (x, y).
func (g *gray) finderAt(x, y, scale int) {
	g.fill(x*scale, y*scale, 7*scale, 7*scale, 0)
	g.fill((x+1)*scale, (y+1)*scale, 5*scale, 5*scale, 0xff)
	g.fill((x+2)*scale, (y+2)*scale, 3*scale, 3*scale, 0)
}

func encode(t *testing.T, v coding.Version, l coding.Level, text string) *coding.Code {
	t.Helper()
	c, err := coding.Encode(v, l, coding.Segment{Text: text, Mode: coding.Byte})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func transposeCode(c *coding.Code) *coding.Code {
	t := coding.NewCode(c.Size)
	for y := 0; y < c.Size; y++ {
		for x := 0; x < c.Size; x++ {
			t.Set(y, x, c.Black(x, y))
		}
	}
	return t
}

func TestBinarize(t *testing.T) {
	g := blank(64, 48)
	g.fill(20, 10, 20, 20, 0x20)
	b := Binarize(g.pix, g.w, g.h)
	for _, tt := range []struct {
		x, y  int
		black bool
	}{
		{0, 0, false}, {63, 47, false}, {19, 20, false}, {40, 20, false},
		{20, 10, true}, {30, 20, true}, {39, 29, true},
		{-1, 0, false}, {64, 0, false}, {0, 48, false},
	} {
		if b.Black(tt.x, tt.y) != tt.black {
			t.Errorf("(%d, %d): black = %v", tt.x, tt.y, !tt.black)
		}
	}
}

func TestTransform(t *testing.T) {
	sq := [4]Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for _, q := range [][4]Point{
		{{10, 10}, {110, 10}, {110, 110}, {10, 110}},
		{{10, 20}, {110, 5}, {130, 140}, {0, 100}},
		{{50, 0}, {100, 50}, {50, 100}, {0, 50}},
	} {
		tr := fromSquare(q)
		if tr == nil {
			t.Fatalf("%v: degenerate", q)
		}
		for i := range sq {
			if p := tr.apply(sq[i]); !p.near(q[i], 1e-9) {
				t.Errorf("%v: corner %d maps to %v", q, i, p)
			}
		}
		src := [4]Point{{3.5, 3.5}, {21.5, 3.5}, {21.5, 21.5}, {3.5, 21.5}}
		tr = quadTransform(src, q)
		inv := quadTransform(q, src)
		for i := range src {
			if p := tr.apply(src[i]); !p.near(q[i], 1e-6) {
				t.Errorf("%v: %v maps to %v", q, src[i], p)
			}
			p := Point{5 + float64(i), 17 - float64(i)}
			if r := inv.apply(tr.apply(p)); !r.near(p, 1e-6) {
				t.Errorf("%v: %v round trips to %v", q, p, r)
			}
		}
	}
	line := [4]Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	if quadTransform(sq, line) != nil {
		t.Errorf("collinear quadrilateral: transform not rejected")
	}
	if convex([4]Point{{0, 0}, {10, 0}, {2, 2}, {0, 10}}) {
		t.Errorf("concave quadrilateral reported convex")
	}
}

func TestDetect(t *testing.T) {
	for _, v := range []coding.Version{1, 2, 5, 7, 10, 14} {
		c := encode(t, v, coding.M, "detect me")
		for _, scale := range []int{3, 4, 7} {
			g := render(c, scale, 4)
			sym, err := g.detect()
			if err != nil {
				t.Errorf("version %v scale %d: %v", v, scale, err)
				continue
			}
			if !bytes.Equal(sym.Code.Bitmap, c.Bitmap) {
				t.Errorf("version %v scale %d: sampled grid differs", v, scale)
			}
			if math.Abs(sym.Module-float64(scale)) > 0.5 {
				t.Errorf("version %v scale %d: module size %.2f", v, scale, sym.Module)
			}
			if v > 1 && sym.Alignment == nil {
				t.Errorf("version %v scale %d: alignment pattern not used", v, scale)
			}
		}
	}
}

func TestDetectOrientation(t *testing.T) {
	c := encode(t, 3, coding.Q, "orientation")
	g := render(c, 5, 4)
	for i := 0; i < 4; i++ {
		sym, err := g.detect()
		if err != nil {
			t.Fatalf("%d quarter turns: %v", i, err)
		}
		if !bytes.Equal(sym.Code.Bitmap, c.Bitmap) {
			t.Errorf("%d quarter turns: sampled grid differs", i)
		}
		g = g.rotate()
	}

	// A mirror image samples transposed.
	sym, err := g.transpose().detect()
	if err != nil {
		t.Fatalf("mirrored: %v", err)
	}
	if !bytes.Equal(sym.Code.Bitmap, transposeCode(c).Bitmap) {
		t.Errorf("mirrored: sampled grid is not the transpose")
	}
}

func TestDetectPerspective(t *testing.T) {
	text := strings.Repeat("perspective ", 2)
	c := encode(t, 4, coding.H, text)
	src := render(c, 6, 4)
	n := float64(src.w)
	// Pull the corners unevenly.
	quad := [4]Point{{8, 4}, {n - 2, 14}, {n - 12, n - 6}, {2, n - 16}}
	full := [4]Point{{0, 0}, {n, 0}, {n, n}, {0, n}}
	back := quadTransform(quad, full)
	dst := blank(src.w, src.h)
	for y := 0; y < dst.h; y++ {
		for x := 0; x < dst.w; x++ {
			sx, sy := back.apply(Point{float64(x) + 0.5, float64(y) + 0.5}).round()
			if 0 <= sx && sx < src.w && 0 <= sy && sy < src.h {
				dst.pix[y*dst.w+x] = src.pix[sy*src.w+sx]
			}
		}
	}
	sym, err := dst.detect()
	if err != nil {
		t.Fatal(err)
	}
	d, err := coding.Decode(sym.Code)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Segments) != 1 || d.Segments[0].Text != text {
		t.Errorf("decoded %q", d.Segments)
	}
}

func TestDetectNotFound(t *testing.T) {
	if _, err := blank(200, 200).detect(); err != ErrNotFound {
		t.Errorf("blank: err = %v", err)
	}

	// Finder patterns with nothing between them.
	const scale, siz = 4, 29
	g := blank((siz+8)*scale, (siz+8)*scale)
	g.finderAt(4, 4, scale)
	g.finderAt(4+siz-7, 4, scale)
	g.finderAt(4, 4+siz-7, scale)
	if _, err := g.detect(); err != ErrNotFound {
		t.Errorf("finder patterns only: err = %v", err)
	}
}

func TestDetectCollinear(t *testing.T) {
	const scale = 4
	g := blank(50*scale, 15*scale)
	for i := 0; i < 3; i++ {
		g.finderAt(4+i*14, 4, scale)
	}
	var pe *PerspectiveError
	if _, err := g.detect(); !errors.As(err, &pe) {
		t.Errorf("err = %v, want PerspectiveError", err)
	}
}

func BenchmarkDetect(b *testing.B) {
	c, err := coding.Encode(10, coding.M, coding.Segment{Text: "benchmark", Mode: coding.Byte})
	if err != nil {
		b.Fatal(err)
	}
	g := render(c, 4, 4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := g.detect(); err != nil {
			b.Fatal(err)
		}
	}
}

func (p Point) near(q Point, d float64) bool {
	return math.Abs(p.X-q.X) <= d && math.Abs(p.Y-q.Y) <= d
}
