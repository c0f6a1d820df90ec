// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding

import (
	"fmt"
	"math/bits"
)

// FormatError reports format or version information that could not
// be corrected.
type FormatError struct {
	Info string // "format" or "version"
}

func (e *FormatError) Error() string {
	return "qr: corrupted " + e.Info + " information"
}

// BlockError reports an error correction block holding more errors
// than its check bytes can correct.
type BlockError struct {
	Block  int // index of the failing block
	Blocks int // number of blocks
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("qr: uncorrectable error correction block %d of %d",
		e.Block+1, e.Blocks)
}

// ReadFormat reads both copies of the format information from c and
// returns the level and mask of the nearest valid format codeword.
// Up to 3 bit errors are corrected.
func ReadFormat(c *Code) (Level, int, error) {
	var raw [2]uint16
	for i := 0; i < 15; i++ {
		x0, y0, x1, y1 := formatPos(i, c.Size)
		if c.Black(x0, y0) {
			raw[0] |= 1 << i
		}
		if c.Black(x1, y1) {
			raw[1] |= 1 << i
		}
	}
	best, lev, mask := 16, L, 0
	for l := L; l <= H; l++ {
		for m, fb := range ftab[l] {
			for _, r := range raw {
				if d := bits.OnesCount16(r ^ fb); d < best {
					best, lev, mask = d, l, m
				}
			}
		}
	}
	if best > 3 {
		return 0, 0, &FormatError{"format"}
	}
	return lev, mask, nil
}

// ReadVersion returns the version of c.  Below version 7 it is
// implied by the size; from version 7 on both copies of the version
// information are read, corrected for up to 3 bit errors and checked
// against the size.
func ReadVersion(c *Code) (Version, error) {
	if c.Size < MinVersion.Size() || c.Size > MaxVersion.Size() ||
		(c.Size-17)%4 != 0 {
		return 0, ErrVersion
	}
	v := Version((c.Size - 17) / 4)
	if v < 7 {
		return v, nil
	}
	var raw [2]int
	for i := 0; i < 18; i++ {
		x, y := versionPos(i, c.Size)
		if c.Black(x, y) {
			raw[0] |= 1 << i
		}
		if c.Black(y, x) {
			raw[1] |= 1 << i
		}
	}
	best, bv := 19, Version(0)
	for w := Version(7); w <= MaxVersion; w++ {
		for _, r := range raw {
			if d := bits.OnesCount32(uint32(r ^ vtab[w].pattern)); d < best {
				best, bv = d, w
			}
		}
	}
	if best > 3 || bv != v {
		return 0, &FormatError{"version"}
	}
	return v, nil
}

// extract unmasks the data pixels of c and returns them as bytes in
// placement order.
func (p *Plan) extract(c *Code, mask int) []byte {
	pat := p.Pattern[mask]
	buf := make([]byte, vtab[p.Version].bytes)
	n := 0
	p.zigzag(func(off int, bit byte) {
		if n >= len(buf)*8 {
			return // remainder bits
		}
		if (c.Bitmap[off]^pat[off])&bit != 0 {
			buf[n>>3] |= 0x80 >> (n & 7)
		}
		n++
	})
	return buf
}

// Extract returns the error corrected data bytes of c, a code of the
// given version and level masked with the given mask.  Each block is
// corrected separately; the first uncorrectable block fails the call
// with a *BlockError.
func Extract(c *Code, v Version, l Level, mask int) ([]byte, error) {
	p, err := makePlan(v, l)
	if err != nil {
		return nil, err
	}
	if c.Size != p.Size || mask < 0 || mask >= len(p.Pattern) {
		return nil, ErrVersion
	}
	raw := p.extract(c, mask)
	vt := &vtab[v]
	lev := vt.level[l]
	nd := v.dataBytes(l)
	blocks := make([]byte, len(raw))
	deinterleave(blocks[:nd], raw[:nd], lev.nblock)
	deinterleave(blocks[nd:], raw[nd:], lev.nblock)

	dat, chk := blocks[:nd], blocks[nd:]
	db := nd / lev.nblock
	normal := (db+1)*lev.nblock - nd
	out := make([]byte, 0, nd)
	msg := make([]byte, 0, db+1+lev.check)
	for i := 0; i < lev.nblock; i++ {
		if i == normal {
			db++
		}
		msg = append(append(msg[:0], dat[:db]...), chk[:lev.check]...)
		if _, err := Field.Correct(msg, lev.check); err != nil {
			return nil, &BlockError{Block: i, Blocks: lev.nblock}
		}
		out = append(out, msg[:db]...)
		dat, chk = dat[db:], chk[lev.check:]
	}
	return out, nil
}

// Decoded is the content of a decoded QR code.
type Decoded struct {
	Version  Version
	Level    Level
	Mask     int
	ECI      int       // last ECI designator, -1 if none
	Segments []Segment // text in UTF-8
}

// Decode decodes the sampled code c.
func Decode(c *Code) (*Decoded, error) {
	v, err := ReadVersion(c)
	if err != nil {
		return nil, err
	}
	l, mask, err := ReadFormat(c)
	if err != nil {
		return nil, err
	}
	data, err := Extract(c, v, l, mask)
	if err != nil {
		return nil, err
	}
	segs, eci, err := Parse(data, v)
	if err != nil {
		return nil, err
	}
	return &Decoded{Version: v, Level: l, Mask: mask, ECI: eci, Segments: segs}, nil
}
