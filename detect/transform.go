// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import "math"

// A Point is a location in an image.
type Point struct {
	X, Y float64
}

func (p Point) sub(q Point) Point     { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) add(q Point) Point     { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) scale(f float64) Point { return Point{p.X * f, p.Y * f} }
func (p Point) cross(q Point) float64 { return p.X*q.Y - p.Y*q.X }
func (p Point) dist(q Point) float64  { return math.Hypot(p.X-q.X, p.Y-q.Y) }
func (p Point) finite() bool          { return !math.IsNaN(p.X+p.Y) && !math.IsInf(p.X+p.Y, 0) }
func (p Point) round() (x, y int)     { return int(math.Floor(p.X)), int(math.Floor(p.Y)) }

// A transform is a projective transform.  A point (x, y) maps to
//
//	((x*m[0] + y*m[3] + m[6]) / w, (x*m[1] + y*m[4] + m[7]) / w)
//
// where w = x*m[2] + y*m[5] + m[8].
type transform [9]float64

func (t *transform) apply(p Point) Point {
	w := p.X*t[2] + p.Y*t[5] + t[8]
	return Point{
		(p.X*t[0] + p.Y*t[3] + t[6]) / w,
		(p.X*t[1] + p.Y*t[4] + t[7]) / w,
	}
}

// then returns the transform applying t and then u.
func (t *transform) then(u *transform) *transform {
	var r transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = t[i*3]*u[j] + t[i*3+1]*u[3+j] + t[i*3+2]*u[6+j]
		}
	}
	return &r
}

// adjugate returns the adjugate of t, which is its inverse up to
// a scale factor that cancels out in apply.
func (t *transform) adjugate() *transform {
	return &transform{
		t[4]*t[8] - t[5]*t[7], t[2]*t[7] - t[1]*t[8], t[1]*t[5] - t[2]*t[4],
		t[5]*t[6] - t[3]*t[8], t[0]*t[8] - t[2]*t[6], t[2]*t[3] - t[0]*t[5],
		t[3]*t[7] - t[4]*t[6], t[1]*t[6] - t[0]*t[7], t[0]*t[4] - t[1]*t[3],
	}
}

func (t *transform) det() float64 {
	return t[0]*(t[4]*t[8]-t[5]*t[7]) -
		t[1]*(t[3]*t[8]-t[5]*t[6]) +
		t[2]*(t[3]*t[7]-t[4]*t[6])
}

// fromSquare returns the transform mapping the unit square corners
// (0,0), (1,0), (1,1), (0,1) to q[0], q[1], q[2], q[3].
// It returns nil if q is degenerate.
func fromSquare(q [4]Point) *transform {
	dx3 := q[0].X - q[1].X + q[2].X - q[3].X
	dy3 := q[0].Y - q[1].Y + q[2].Y - q[3].Y
	if dx3 == 0 && dy3 == 0 {
		return &transform{
			q[1].X - q[0].X, q[1].Y - q[0].Y, 0,
			q[2].X - q[1].X, q[2].Y - q[1].Y, 0,
			q[0].X, q[0].Y, 1,
		}
	}
	d1, d2 := q[1].sub(q[2]), q[3].sub(q[2])
	den := d1.cross(d2)
	if den == 0 {
		return nil
	}
	d3 := Point{dx3, dy3}
	a13 := d3.cross(d2) / den
	a23 := d1.cross(d3) / den
	return &transform{
		q[1].X - q[0].X + a13*q[1].X, q[1].Y - q[0].Y + a13*q[1].Y, a13,
		q[3].X - q[0].X + a23*q[3].X, q[3].Y - q[0].Y + a23*q[3].Y, a23,
		q[0].X, q[0].Y, 1,
	}
}

// quadTransform returns the transform mapping the quadrilateral src
// onto dst, or nil if either is degenerate.
func quadTransform(src, dst [4]Point) *transform {
	s, d := fromSquare(src), fromSquare(dst)
	if s == nil || d == nil {
		return nil
	}
	t := s.adjugate().then(d)
	if det := t.det(); det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return nil
	}
	return t
}

// convex reports whether q is a convex quadrilateral.
func convex(q [4]Point) bool {
	var pos, neg bool
	for i := range q {
		c := q[(i+1)%4].sub(q[i]).cross(q[(i+2)%4].sub(q[(i+1)%4]))
		pos = pos || c > 0
		neg = neg || c < 0
		if c == 0 {
			return false
		}
	}
	return pos != neg
}
