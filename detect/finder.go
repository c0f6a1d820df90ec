// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import (
	"math"
	"slices"
)

// A pattern is a candidate finder or alignment pattern centre.
type pattern struct {
	Point
	module float64 // estimated module size
	count  int     // number of scans confirming the pattern
}

func (p *pattern) about(module float64, x, y float64) bool {
	if math.Abs(y-p.Y) > module || math.Abs(x-p.X) > module {
		return false
	}
	d := math.Abs(module - p.module)
	return d <= 1 || d <= p.module
}

// merge combines p with a new sighting weighted by the previous count.
func (p *pattern) merge(module float64, x, y float64) {
	n := float64(p.count)
	p.X = (n*p.X + x) / (n + 1)
	p.Y = (n*p.Y + y) / (n + 1)
	p.module = (n*p.module + module) / (n + 1)
	p.count++
}

const (
	maxModules   = 97 // modules on a side of a version 40 symbol plus finders
	centerQuorum = 2  // scans needed to trust a finder centre
)

type finder struct {
	img      *Bitmap
	patterns []*pattern
}

// total returns the sum of run lengths.
func total(sc []int) int {
	n := 0
	for _, v := range sc {
		n += v
	}
	return n
}

// crossRatio reports whether the five runs in sc are close enough
// to 1:1:3:1:1.  Variance is the tolerated deviation per module
// as a fraction of the module size.
func crossRatio(sc *[5]int, variance float64) bool {
	n := 0
	for _, v := range sc {
		if v == 0 {
			return false
		}
		n += v
	}
	if n < 7 {
		return false
	}
	m := float64(n) / 7
	dev := m / variance
	return math.Abs(m-float64(sc[0])) < dev &&
		math.Abs(m-float64(sc[1])) < dev &&
		math.Abs(3*m-float64(sc[2])) < 3*dev &&
		math.Abs(m-float64(sc[3])) < dev &&
		math.Abs(m-float64(sc[4])) < dev
}

// centerFromEnd returns the centre of the runs ending at end.
func centerFromEnd(sc []int, end int) float64 {
	return float64(end-sc[len(sc)-1]-sc[len(sc)-2]) - float64(sc[len(sc)/2])/2
}

// find returns the three finder patterns ordered top left,
// top right, bottom left.
func (f *finder) find() ([3]*pattern, error) {
	w, h := f.img.W, f.img.H
	skip := max(3*h/(8*maxModules), 1)
	for y := skip - 1; y < h; y += skip {
		var sc [5]int
		state := 0
		for x := 0; x < w; x++ {
			switch black := f.img.Black(x, y); {
			case black:
				if state&1 == 1 {
					state++
				}
				sc[state]++
			case state&1 == 1:
				sc[state]++
			case state < 4:
				state++
				sc[state]++
			default:
				if crossRatio(&sc, 2) && f.check(&sc, x, y) {
					state, sc = 0, [5]int{}
					continue
				}
				sc = [5]int{sc[2], sc[3], sc[4], 1, 0}
				state = 3
			}
		}
		if crossRatio(&sc, 2) {
			f.check(&sc, w, y)
		}
	}
	return f.best()
}

// check cross-checks a horizontal hit whose last run ends at x and
// records the centre if it holds up.
func (f *finder) check(sc *[5]int, x, y int) bool {
	n := total(sc[:])
	cx := centerFromEnd(sc[:], x)
	cy, ok := f.crossVertical(int(cx), y, sc[2], n)
	if !ok {
		return false
	}
	cx, ok = f.crossHorizontal(int(cx), int(cy), sc[2], n)
	if !ok || !f.crossDiagonal(int(cx), int(cy)) {
		return false
	}
	module := float64(n) / 7
	for _, p := range f.patterns {
		if p.about(module, cx, cy) {
			p.merge(module, cx, cy)
			return true
		}
	}
	f.patterns = append(f.patterns, &pattern{Point{cx, cy}, module, 1})
	return true
}

// crossLine scans from (x, y) in direction (dx, dy) in both
// directions and returns the five runs of the pattern crossing it.
// Runs other than the centre may not exceed limit.
func (f *finder) crossLine(x, y, dx, dy, limit int) ([5]int, int, bool) {
	var sc [5]int
	at := func(i int) bool { return f.img.Black(x+i*dx, y+i*dy) }
	i := 0
	for ; at(i); i-- {
		sc[2]++
	}
	for ; !at(i) && inside(f.img, x+i*dx, y+i*dy) && sc[1] <= limit; i-- {
		sc[1]++
	}
	if !inside(f.img, x+i*dx, y+i*dy) || sc[1] > limit {
		return sc, 0, false
	}
	for ; at(i) && sc[0] <= limit; i-- {
		sc[0]++
	}
	if sc[0] > limit {
		return sc, 0, false
	}
	i = 1
	for ; at(i); i++ {
		sc[2]++
	}
	for ; !at(i) && inside(f.img, x+i*dx, y+i*dy) && sc[3] < limit; i++ {
		sc[3]++
	}
	if !inside(f.img, x+i*dx, y+i*dy) || sc[3] >= limit {
		return sc, 0, false
	}
	for ; at(i) && sc[4] < limit; i++ {
		sc[4]++
	}
	if sc[4] >= limit {
		return sc, 0, false
	}
	return sc, i, true
}

func inside(b *Bitmap, x, y int) bool {
	return 0 <= x && x < b.W && 0 <= y && y < b.H
}

// crossVertical returns the vertical centre of a pattern
// at column x near row y.
func (f *finder) crossVertical(x, y, limit, n int) (float64, bool) {
	if !f.img.Black(x, y) {
		return 0, false
	}
	sc, end, ok := f.crossLine(x, y, 0, 1, limit)
	if !ok {
		return 0, false
	}
	// The vertical run lengths must be comparable to the horizontal.
	if 5*abs(total(sc[:])-n) >= 2*n || !crossRatio(&sc, 2) {
		return 0, false
	}
	return centerFromEnd(sc[:], y+end), true
}

// crossHorizontal is crossVertical turned sideways.
func (f *finder) crossHorizontal(x, y, limit, n int) (float64, bool) {
	if !f.img.Black(x, y) {
		return 0, false
	}
	sc, end, ok := f.crossLine(x, y, 1, 0, limit)
	if !ok {
		return 0, false
	}
	if 5*abs(total(sc[:])-n) >= n || !crossRatio(&sc, 2) {
		return 0, false
	}
	return centerFromEnd(sc[:], x+end), true
}

// crossDiagonal checks the pattern along the diagonal through (x, y).
func (f *finder) crossDiagonal(x, y int) bool {
	var sc [5]int
	at := func(i int) bool { return f.img.Black(x-i, y-i) }
	i := 0
	for ; at(i); i++ {
		sc[2]++
	}
	for ; i <= x && i <= y && !at(i); i++ {
		sc[1]++
	}
	for ; i <= x && i <= y && at(i); i++ {
		sc[0]++
	}
	if sc[0] == 0 || sc[1] == 0 {
		return false
	}
	at = func(i int) bool { return f.img.Black(x+i, y+i) }
	i = 1
	for ; at(i); i++ {
		sc[2]++
	}
	for ; x+i < f.img.W && y+i < f.img.H && !at(i); i++ {
		sc[3]++
	}
	for ; x+i < f.img.W && y+i < f.img.H && at(i); i++ {
		sc[4]++
	}
	if sc[3] == 0 || sc[4] == 0 {
		return false
	}
	return crossRatio(&sc, 4.0/3)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// best picks the three patterns most resembling the corners of
// a right isosceles triangle and orders them.
func (f *finder) best() ([3]*pattern, error) {
	var cand []*pattern
	for _, p := range f.patterns {
		if p.count >= centerQuorum {
			cand = append(cand, p)
		}
	}
	var r [3]*pattern
	if len(cand) < 3 {
		return r, ErrNotFound
	}
	slices.SortFunc(cand, func(a, b *pattern) int {
		switch {
		case a.module < b.module:
			return -1
		case a.module > b.module:
			return 1
		}
		return 0
	})
	best := math.Inf(1)
	for i := 0; i < len(cand)-2; i++ {
		a := cand[i]
		for j := i + 1; j < len(cand)-1; j++ {
			b := cand[j]
			for k := j + 1; k < len(cand); k++ {
				c := cand[k]
				if c.module > 1.4*a.module {
					break
				}
				s := [3]float64{
					sq(a.dist(b.Point)),
					sq(b.dist(c.Point)),
					sq(a.dist(c.Point)),
				}
				slices.Sort(s[:])
				d := math.Abs(s[2]-2*s[1]) + math.Abs(s[2]-2*s[0])
				if d < best {
					best = d
					r = [3]*pattern{a, b, c}
				}
			}
		}
	}
	if r[0] == nil {
		return r, ErrNotFound
	}
	return order(r), nil
}

func sq(x float64) float64 { return x * x }

// order orders p as top left, top right, bottom left.  The top left
// pattern is opposite the longest side; the other two are told apart
// by the orientation of the triangle.
func order(p [3]*pattern) [3]*pattern {
	ab, bc, ac := p[0].dist(p[1].Point), p[1].dist(p[2].Point), p[0].dist(p[2].Point)
	var a, b, c *pattern
	switch {
	case bc >= ab && bc >= ac:
		b, a, c = p[0], p[1], p[2]
	case ac >= bc && ac >= ab:
		b, a, c = p[1], p[0], p[2]
	default:
		b, a, c = p[2], p[0], p[1]
	}
	if c.sub(b.Point).cross(a.sub(b.Point)) < 0 {
		a, c = c, a
	}
	return [3]*pattern{b, c, a}
}
