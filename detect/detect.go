// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import (
	"errors"
	"math"

	"github.com/unixdj/qrcodec/coding"
)

// ErrNotFound is returned when no symbol is found in the image.
var ErrNotFound = errors.New("qr: no symbol found")

// A PerspectiveError is returned when finder patterns were found
// but no usable transform onto the module grid could be built.
type PerspectiveError struct {
	Reason string
}

func (e *PerspectiveError) Error() string {
	return "qr: perspective correction failed: " + e.Reason
}

// A Symbol is a located symbol with its modules sampled.
type Symbol struct {
	Code *coding.Code

	// Centres of the finder patterns and the bottom right
	// alignment pattern, if one was used.
	TopLeft, TopRight, BottomLeft Point
	Alignment                     *Point

	Module float64 // module size in pixels
}

// Detect locates a symbol in the image and samples it.
//
// The three finder patterns give the position, rotation and size of
// the symbol; the alignment pattern near the bottom right corner,
// when present, corrects for perspective.  Module centres are then
// sampled through the resulting transform.  The timing patterns of
// the sampled grid must alternate; if they don't, other candidate
// sizes and transforms are tried before giving up.
func Detect(img *Bitmap) (*Symbol, error) {
	f := &finder{img: img}
	fp, err := f.find()
	if err != nil {
		return nil, err
	}
	tl, tr, bl := fp[0], fp[1], fp[2]
	// Collinear finder patterns span no area.
	area := tr.sub(tl.Point).cross(bl.sub(tl.Point))
	if math.Abs(area) < 0.1*tl.dist(tr.Point)*tl.dist(bl.Point) {
		return nil, &PerspectiveError{"finder patterns are collinear"}
	}
	module := (moduleSize(img, tl.Point, tr.Point) + moduleSize(img, tl.Point, bl.Point)) / 2
	if module < 1 || math.IsNaN(module) {
		return nil, ErrNotFound
	}
	dim := dimension(tl.Point, tr.Point, bl.Point, module)

	sym := &Symbol{TopLeft: tl.Point, TopRight: tr.Point, BottomLeft: bl.Point, Module: module}
	alternating := false
	for _, d := range []int{dim, dim - 4, dim + 4} {
		v := coding.Version((d - 17) / 4)
		if !v.Valid() {
			continue
		}
		cands := []*Point{nil}
		if v > 1 {
			if p, ok := locateAlignment(img, tl.Point, tr.Point, bl.Point, module, d); ok {
				cands = []*Point{&p, nil}
			}
		}
		for _, a := range cands {
			t := gridTransform(tl.Point, tr.Point, bl.Point, a, d)
			if t == nil {
				continue
			}
			c, ok := sample(img, t, d)
			if !ok {
				continue
			}
			mismatch, n, flips := timing(c)
			alternating = alternating || flips > 0
			if flips > 0 && mismatch <= n/4 {
				sym.Code, sym.Alignment = c, a
				return sym, nil
			}
		}
	}
	if !alternating {
		return nil, ErrNotFound
	}
	return nil, &PerspectiveError{"timing patterns do not match"}
}

// moduleSize estimates the module size from the runs between the
// centres of two finder patterns.
func moduleSize(img *Bitmap, from, to Point) float64 {
	a := runBothWays(img, from, to)
	b := runBothWays(img, to, from)
	switch {
	case math.IsNaN(a):
		return b / 7
	case math.IsNaN(b):
		return a / 7
	}
	return (a + b) / 14
}

// runBothWays measures the black-white-black run from p towards q
// and away from it, which spans seven modules across a finder
// pattern.
func runBothWays(img *Bitmap, p, q Point) float64 {
	fx, fy := p.round()
	tx, ty := q.round()
	r := run(img, fx, fy, tx, ty)

	// Mirror the far point through p, clipped to the image.
	scale := 1.0
	ox := fx - (tx - fx)
	if ox < 0 {
		scale = float64(fx) / float64(fx-ox)
		ox = 0
	} else if ox >= img.W {
		scale = float64(img.W-1-fx) / float64(ox-fx)
		ox = img.W - 1
	}
	oy := int(float64(fy) - float64(ty-fy)*scale)
	scale = 1
	if oy < 0 {
		scale = float64(fy) / float64(fy-oy)
		oy = 0
	} else if oy >= img.H {
		scale = float64(img.H-1-fy) / float64(oy-fy)
		oy = img.H - 1
	}
	ox = int(float64(fx) + float64(ox-fx)*scale)
	r += run(img, fx, fy, ox, oy)
	return r - 1 // the centre pixel counted twice
}

// run walks a Bresenham line from (fx, fy) towards (tx, ty) and
// returns the distance to the end of the second black run.
func run(img *Bitmap, fx, fy, tx, ty int) float64 {
	steep := abs(ty-fy) > abs(tx-fx)
	if steep {
		fx, fy, tx, ty = fy, fx, ty, tx
	}
	dx, dy := abs(tx-fx), abs(ty-fy)
	e := -dx / 2
	xs, ys := 1, 1
	if fx > tx {
		xs = -1
	}
	if fy > ty {
		ys = -1
	}
	state := 0
	end := tx + xs
	for x, y := fx, fy; x != end; x += xs {
		px, py := x, y
		if steep {
			px, py = y, x
		}
		// States: 0 in the centre, 1 in the white ring, 2 in the
		// black ring.
		if (state == 1) == img.Black(px, py) {
			if state == 2 {
				return math.Hypot(float64(x-fx), float64(y-fy))
			}
			state++
		}
		if e += dy; e > 0 {
			if y == ty {
				break
			}
			y += ys
			e -= dx
		}
	}
	if state == 2 {
		return math.Hypot(float64(end-fx), float64(ty-fy))
	}
	return math.NaN()
}

// dimension estimates the number of modules on a side, rounded to
// a valid symbol size.
func dimension(tl, tr, bl Point, module float64) int {
	a := int(math.Round(tl.dist(tr) / module))
	b := int(math.Round(tl.dist(bl) / module))
	d := (a+b)/2 + 7
	switch d & 3 {
	case 0:
		d++
	case 2:
		d--
	case 3:
		d -= 2
	}
	return d
}

// locateAlignment looks for the bottom right alignment pattern of
// a symbol dim modules on a side in progressively larger windows.
func locateAlignment(img *Bitmap, tl, tr, bl Point, module float64, dim int) (Point, bool) {
	br := tr.sub(tl).add(bl)
	// The alignment pattern is three modules in from the corner
	// a finder pattern centre would occupy.
	f := 1 - 3/float64(dim-7)
	est := tl.add(br.sub(tl).scale(f))
	for _, r := range []int{4, 8, 16} {
		if p, ok := findAlignment(img, module, est, r); ok {
			return p.Point, true
		}
	}
	return Point{}, false
}

// gridTransform returns the transform from module coordinates to
// image coordinates.  Without an alignment pattern the fourth
// corner is extrapolated from the other three.
func gridTransform(tl, tr, bl Point, al *Point, dim int) *transform {
	d := float64(dim)
	src := [4]Point{{3.5, 3.5}, {d - 3.5, 3.5}, {d - 3.5, d - 3.5}, {3.5, d - 3.5}}
	var br Point
	if al != nil {
		br = *al
		src[2] = Point{d - 6.5, d - 6.5}
	} else {
		br = tr.sub(tl).add(bl)
	}
	dst := [4]Point{tl, tr, br, bl}
	if !convex(dst) {
		return nil
	}
	return quadTransform(src, dst)
}

// sample reads the module centres of a dim×dim grid through t.
// Centres within a pixel of the image edge are nudged inside;
// any further out fail the sampling.
func sample(img *Bitmap, t *transform, dim int) (*coding.Code, bool) {
	c := coding.NewCode(dim)
	for y := 0; y < dim; y++ {
		for x := 0; x < dim; x++ {
			p := t.apply(Point{float64(x) + 0.5, float64(y) + 0.5})
			if !p.finite() {
				return nil, false
			}
			px, py := p.round()
			switch {
			case px < -1 || px > img.W || py < -1 || py > img.H:
				return nil, false
			case px < 0:
				px = 0
			case px == img.W:
				px = img.W - 1
			}
			switch {
			case py < 0:
				py = 0
			case py == img.H:
				py = img.H - 1
			}
			if img.Black(px, py) {
				c.Set(x, y, true)
			}
		}
	}
	return c, true
}

// timing compares the timing patterns of c against alternating
// modules.  It returns the number of mismatched modules, the number
// of modules compared and the number of colour changes seen.
func timing(c *coding.Code) (mismatch, n, flips int) {
	for i := 8; i < c.Size-8; i++ {
		dark := i&1 == 0
		for _, b := range [2]bool{c.Black(i, 6), c.Black(6, i)} {
			if b != dark {
				mismatch++
			}
			n++
		}
		if i == 8 {
			continue
		}
		if c.Black(i, 6) != c.Black(i-1, 6) {
			flips++
		}
		if c.Black(6, i) != c.Black(6, i-1) {
			flips++
		}
	}
	return mismatch, n, flips
}
