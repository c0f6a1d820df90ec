// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import "math"

// alignment searches a window of the image for an alignment pattern:
// a 1:1:1 white-black-white run across its centre module.
type alignment struct {
	img        *Bitmap
	x, y, w, h int // window
	module     float64
	patterns   []*pattern
}

// find returns the pattern confirmed by two scans, or failing that
// the first one seen.
func (a *alignment) find() (*pattern, bool) {
	xend := a.x + a.w
	mid := a.y + a.h/2
	for g := 0; g < a.h; g++ {
		// Search from the middle outwards.
		y := mid + (g+1)/2
		if g&1 == 1 {
			y = mid - (g+1)/2
		}
		var sc [3]int
		x := a.x
		// A white run at the window edge has unknown length.
		for x < xend && !a.img.Black(x, y) {
			x++
		}
		state := 0
		for ; x < xend; x++ {
			if a.img.Black(x, y) {
				switch state {
				case 1:
					sc[1]++
				case 2:
					if a.cross(&sc) {
						if p := a.check(&sc, x, y); p != nil {
							return p, true
						}
					}
					sc = [3]int{sc[2], 1, 0}
					state = 1
				default:
					state++
					sc[state]++
				}
			} else {
				if state == 1 {
					state++
				}
				sc[state]++
			}
		}
		if a.cross(&sc) {
			if p := a.check(&sc, xend, y); p != nil {
				return p, true
			}
		}
	}
	if len(a.patterns) != 0 {
		return a.patterns[0], true
	}
	return nil, false
}

func (a *alignment) cross(sc *[3]int) bool {
	dev := a.module / 2
	for _, v := range sc {
		if math.Abs(a.module-float64(v)) >= dev {
			return false
		}
	}
	return true
}

// check cross-checks a hit vertically and returns the pattern once
// it has been seen twice.
func (a *alignment) check(sc *[3]int, x, y int) *pattern {
	n := sc[0] + sc[1] + sc[2]
	cx := float64(x-sc[2]) - float64(sc[1])/2
	cy, ok := a.crossVertical(int(cx), y, 2*sc[1], n)
	if !ok {
		return nil
	}
	module := float64(n) / 3
	for _, p := range a.patterns {
		if p.about(module, cx, cy) {
			p.merge(module, cx, cy)
			return p
		}
	}
	a.patterns = append(a.patterns, &pattern{Point{cx, cy}, module, 1})
	return nil
}

func (a *alignment) crossVertical(x, y, limit, n int) (float64, bool) {
	var sc [3]int
	i := y
	for ; i >= 0 && a.img.Black(x, i) && sc[1] <= limit; i-- {
		sc[1]++
	}
	if i < 0 || sc[1] > limit {
		return 0, false
	}
	for ; i >= 0 && !a.img.Black(x, i) && sc[0] <= limit; i-- {
		sc[0]++
	}
	if sc[0] > limit {
		return 0, false
	}
	for i = y + 1; i < a.img.H && a.img.Black(x, i) && sc[1] <= limit; i++ {
		sc[1]++
	}
	if i == a.img.H || sc[1] > limit {
		return 0, false
	}
	for ; i < a.img.H && !a.img.Black(x, i) && sc[2] <= limit; i++ {
		sc[2]++
	}
	if sc[2] > limit {
		return 0, false
	}
	if 5*abs(sc[0]+sc[1]+sc[2]-n) >= 2*n || !a.cross(&sc) {
		return 0, false
	}
	return float64(i-sc[2]) - float64(sc[1])/2, true
}

// findAlignment looks for the alignment pattern near est,
// within radius modules.
func findAlignment(img *Bitmap, module float64, est Point, radius int) (*pattern, bool) {
	r := int(float64(radius) * module)
	ex, ey := est.round()
	x0, x1 := max(0, ex-r), min(img.W-1, ex+r)
	y0, y1 := max(0, ey-r), min(img.H-1, ey+r)
	if float64(x1-x0) < 3*module || float64(y1-y0) < 3*module {
		return nil, false
	}
	a := &alignment{img: img, x: x0, y: y0, w: x1 - x0, h: y1 - y0, module: module}
	return a.find()
}
