// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding

import "sync"

// A Plan describes how to construct a QR code
// with a specific version and level.
type Plan struct {
	Version Version // QR code version
	Level   Level   // QR error correction Level

	DataBits int // number of data bits
	Size     int // number of pixels on a side

	Map     []byte    // pixel map: 0 is data or checksum, 1 is other
	Pattern [8][]byte // position and alignment boxes, timing, format, mask
}

// NewPlan returns a Plan for a QR code with the given version and level.
// The Plan may be modified by the caller.
func NewPlan(version Version, level Level) (*Plan, error) {
	pp, err := makePlan(version, level)
	if err != nil {
		return nil, err
	}
	p := *pp
	siz := len(pp.Map)
	bitmap := make([]byte, siz*(1+len(p.Pattern)))
	p.Map, bitmap = bitmap[:siz], bitmap[siz:]
	copy(p.Map, pp.Map)
	for i := range p.Pattern {
		p.Pattern[i], bitmap = bitmap[:siz], bitmap[siz:]
		copy(p.Pattern[i], pp.Pattern[i])
	}
	return &p, nil
}

// Pre-allocated Plans.  A Plan is created the first time a
// combination of version and level is used.  Each plan is 13 words
// plus a bitmap the size of 9 Code bitmaps, from 567 bytes for
// version 1 to 36 KB for version 40.
var plans [MaxVersion + 1][H + 1]struct {
	once sync.Once
	p    *Plan
}

// makePlan returns plans[version][level].
// If it doesn't exist, it is created.
func makePlan(version Version, level Level) (*Plan, error) {
	if !version.Valid() {
		return nil, ErrVersion
	}
	if level < L || level > H {
		return nil, ErrLevel
	}
	p := &plans[version][level]
	p.once.Do(func() {
		pp := vplan(version, level)
		for mask, v := range ftab[level] {
			fplan(v, mask, pp)
			mplan(mask, pp)
		}
		p.p = pp
	})
	return p.p, nil
}

// A version describes metadata associated with a version.
type version struct {
	apos    int // second alignment box centre, 0 if none
	astride int // distance between further centres
	bytes   int // total bytes, data and checksum
	pattern int // version information bits
	level   [4]level
}

type level struct {
	nblock int // number of blocks
	check  int // check bytes per block
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// formatPos returns the coordinates of format bit i, counting from the
// least significant, in the copy around the top left position box and
// in the copy split between the other two.
func formatPos(i, siz int) (x0, y0, x1, y1 int) {
	switch {
	case i < 6:
		x0, y0 = 8, i
	case i < 8:
		x0, y0 = 8, i+1
	case i == 8:
		x0, y0 = 7, 8
	default:
		x0, y0 = 14-i, 8
	}
	if i < 8 {
		x1, y1 = siz-1-i, 8
	} else {
		x1, y1 = 8, siz-15+i
	}
	return
}

// versionPos returns the coordinates of version bit i in the copy
// above the bottom left position box; the copy left of the top right
// one is transposed.
func versionPos(i, siz int) (x, y int) {
	return i / 3, siz - 11 + i%3
}

// vplan creates a Plan for the given version.
func vplan(v Version, l Level) *Plan {
	info := &vtab[v]
	siz := v.Size()
	stride := (siz + 7) >> 3
	n := stride * siz
	p := &Plan{
		Version:  v,
		Level:    l,
		DataBits: v.DataBits(l),
		Size:     siz,
	}
	bitmap := make([]byte, n*(1+len(p.Pattern)))
	p.Map, bitmap = bitmap[:n], bitmap[n:]
	pat := bitmap[:n]
	set := func(x, y int, black bool) {
		off, bit := y*stride+x>>3, byte(0x80)>>(x&7)
		p.Map[off] |= bit
		if black {
			pat[off] |= bit
		} else {
			pat[off] &^= bit
		}
	}

	// Timing markers (overwritten by boxes).
	for i := 0; i < siz; i++ {
		set(i, 6, i&1 == 0)
		set(6, i, i&1 == 0)
	}

	// Position boxes with their white separators.
	for _, c := range [3][2]int{{3, 3}, {siz - 4, 3}, {3, siz - 4}} {
		for dy := -4; dy <= 4; dy++ {
			for dx := -4; dx <= 4; dx++ {
				x, y := c[0]+dx, c[1]+dy
				if 0 <= x && x < siz && 0 <= y && y < siz {
					d := max(abs(dx), abs(dy))
					set(x, y, d != 2 && d != 4)
				}
			}
		}
	}

	// Alignment boxes, except where they would overlap position boxes.
	apos := v.AlignmentPositions()
	last := len(apos) - 1
	for i, y := range apos {
		for j, x := range apos {
			if i == 0 && (j == 0 || j == last) || i == last && j == 0 {
				continue
			}
			for dy := -2; dy <= 2; dy++ {
				for dx := -2; dx <= 2; dx++ {
					set(x+dx, y+dy, max(abs(dx), abs(dy)) != 1)
				}
			}
		}
	}

	// Format pixels, set by fplan.
	for i := 0; i < 15; i++ {
		x0, y0, x1, y1 := formatPos(i, siz)
		set(x0, y0, false)
		set(x1, y1, false)
	}

	// One lonely black pixel
	set(8, siz-8, true)

	// Version pattern.
	if vp := info.pattern; vp != 0 {
		for i := 0; i < 18; i++ {
			x, y := versionPos(i, siz)
			black := vp>>i&1 != 0
			set(x, y, black)
			set(y, x, black)
		}
	}

	for i := range p.Pattern {
		p.Pattern[i], bitmap = bitmap[:n], bitmap[n:]
		copy(p.Pattern[i], pat)
	}
	return p
}

// fplan sets the format bits
func fplan(fb uint16, mask int, p *Plan) {
	b := p.Pattern[mask]
	siz := p.Size
	stride := (siz + 7) >> 3
	for i := 0; i < 15; i++ {
		if fb>>i&1 == 0 {
			continue
		}
		x0, y0, x1, y1 := formatPos(i, siz)
		b[y0*stride+x0>>3] |= 0x80 >> (x0 & 7)
		b[y1*stride+x1>>3] |= 0x80 >> (x1 & 7)
	}
}

// Mask patterns:
//
//	0: ▄▀▄▀▄▀▄▀▄▀▄▀  1: ▄▄▄▄▄▄▄▄▄▄▄▄  2:  ██ ██ ██ ██  3: ▄█▀▄█▀▄█▀▄█▀
//	   ▄▀▄▀▄▀▄▀▄▀▄▀     ▄▄▄▄▄▄▄▄▄▄▄▄      ██ ██ ██ ██     ▀▄█▀▄█▀▄█▀▄█
//	   ▄▀▄▀▄▀▄▀▄▀▄▀     ▄▄▄▄▄▄▄▄▄▄▄▄      ██ ██ ██ ██     █▀▄█▀▄█▀▄█▀▄
//	   ▄▀▄▀▄▀▄▀▄▀▄▀     ▄▄▄▄▄▄▄▄▄▄▄▄      ██ ██ ██ ██     ▄█▀▄█▀▄█▀▄█▀
//	   ▄▀▄▀▄▀▄▀▄▀▄▀     ▄▄▄▄▄▄▄▄▄▄▄▄      ██ ██ ██ ██     ▀▄█▀▄█▀▄█▀▄█
//	   ▄▀▄▀▄▀▄▀▄▀▄▀     ▄▄▄▄▄▄▄▄▄▄▄▄      ██ ██ ██ ██     █▀▄█▀▄█▀▄█▀▄
//
//	4:    ███   ███  5:  ▄▄▄▄▄ ▄▄▄▄▄  6:    ▄▄▄   ▄▄▄  7: ▄█▄▀ ▀▄█▄▀ ▀
//	   ███   ███         █▀▄▀█ █▀▄▀█      ▄▀▄ █ ▄▀▄ █     ▄▀█▀▄ ▄▀█▀▄
//	      ███   ███      ██▄██ ██▄██      █▄▄▀  █▄▄▀      ▄  ▀██▄  ▀██
//	   ███   ███         ▄▄▄▄▄ ▄▄▄▄▄        ▄▄▄   ▄▄▄     ▄█▄▀ ▀▄█▄▀ ▀
//	      ███   ███      █▀▄▀█ █▀▄▀█      ▄▀▄ █ ▄▀▄ █     ▄▀█▀▄ ▄▀█▀▄
//	   ███   ███         ██▄██ ██▄██      █▄▄▀  █▄▄▀      ▄  ▀██▄  ▀██
var maskFunc = [8]func(x, y int) bool{
	func(x, y int) bool { return (x+y)%2 == 0 },
	func(x, y int) bool { return y%2 == 0 },
	func(x, y int) bool { return x%3 == 0 },
	func(x, y int) bool { return (x+y)%3 == 0 },
	func(x, y int) bool { return (y/2+x/3)%2 == 0 },
	func(x, y int) bool { return x*y%2+x*y%3 == 0 },
	func(x, y int) bool { return (x*y%2+x*y%3)%2 == 0 },
	func(x, y int) bool { return ((x+y)%2+x*y%3)%2 == 0 },
}

// mplan edits a version+level-only Plan to add the mask.
func mplan(mask int, p *Plan) {
	siz := p.Size
	stride := (siz + 7) >> 3
	b := p.Pattern[mask]
	f := maskFunc[mask]
	for y := 0; y < siz; y++ {
		for x := 0; x < siz; x++ {
			off, bit := y*stride+x>>3, byte(0x80)>>(x&7)
			if p.Map[off]&bit == 0 && f(x, y) {
				b[off] |= bit
			}
		}
	}
}

// zigzag calls f with the byte offset and bit of each data pixel in
// placement order: two-pixel wide columns from the right edge,
// alternately upwards and downwards, skipping the vertical timing
// strip and pixels set in the map.
func (p *Plan) zigzag(f func(off int, bit byte)) {
	siz := p.Size
	stride := (siz + 7) >> 3
	up := true
	for right := siz - 1; right >= 1; right -= 2 {
		if right == 6 {
			right = 5
		}
		for i := 0; i < siz; i++ {
			y := i
			if up {
				y = siz - 1 - i
			}
			for x := right; x >= right-1; x-- {
				off, bit := y*stride+x>>3, byte(0x80)>>(x&7)
				if p.Map[off]&bit == 0 {
					f(off, bit)
				}
			}
		}
		up = !up
	}
}

// Serialise writes bits from s to the bitmap in zigzag scan order.
func (p *Plan) Serialise(s BitStream, bitmap []byte) {
	p.zigzag(func(off int, bit byte) {
		if s.Next() != 0 {
			bitmap[off] ^= bit
		}
	})
}
