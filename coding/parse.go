// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding

import (
	"fmt"
	"strings"
)

// MalformedError reports a data bit stream that does not parse as a
// sequence of segments.
type MalformedError struct {
	Offset int    // bit offset of the offending field
	Reason string // what is wrong
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("qr: malformed segment at bit %d: %s",
		e.Offset, e.Reason)
}

// bitReader reads big endian bit fields.
type bitReader struct {
	b   []byte
	pos int
}

func (r *bitReader) avail() int { return len(r.b)*8 - r.pos }

// read returns the next n bits, n <= 24.
func (r *bitReader) read(n int) uint32 {
	var v uint32
	for ; n > 0; n-- {
		v = v<<1 | uint32(r.b[r.pos>>3]>>(7&^r.pos)&1)
		r.pos++
	}
	return v
}

// Parse parses the data bytes of a version v code into segments,
// returning the text of each converted to UTF-8 and the last ECI
// designator, or -1.  Parsing stops at the terminator or when fewer
// than 4 bits remain.  Structured append and FNC1 headers are
// skipped.
func Parse(data []byte, v Version) ([]Segment, int, error) {
	r := &bitReader{b: data}
	class := v.SizeClass()
	eci := -1
	var segs []Segment
	need := func(n int, what string) error {
		if r.avail() < n {
			return &MalformedError{r.pos, what + " truncated"}
		}
		return nil
	}
	for r.avail() >= 4 {
		start := r.pos
		ind := r.read(4)
		var mode Mode
		switch ind {
		case 0: // terminator
			return segs, eci, nil
		case 1:
			mode = Numeric
		case 2:
			mode = Alphanumeric
		case 4:
			mode = Byte
		case 8:
			mode = Kanji
		case 7:
			n, err := readECI(r)
			if err != nil {
				return nil, eci, err
			}
			eci = n
			continue
		case 3: // structured append: index, total, parity
			if err := need(16, "structured append"); err != nil {
				return nil, eci, err
			}
			r.read(16)
			continue
		case 5: // FNC1 in first position
			continue
		case 9: // FNC1 in second position: application indicator
			if err := need(8, "FNC1"); err != nil {
				return nil, eci, err
			}
			r.read(8)
			continue
		default:
			return nil, eci, &MalformedError{start,
				fmt.Sprintf("unknown mode indicator %#x", ind)}
		}
		cl := int(modes[mode].CountLength[class])
		if err := need(cl, mode.String()+" count"); err != nil {
			return nil, eci, err
		}
		count := int(r.read(cl))
		var sb strings.Builder
		switch mode {
		case Numeric:
			nbit := count/3*10 + [3]int{0, 4, 7}[count%3]
			if err := need(nbit, "numeric data"); err != nil {
				return nil, eci, err
			}
			for i := count; i > 0; i -= 3 {
				digits, nb, lim := 3, 10, uint32(1000)
				if i == 2 {
					digits, nb, lim = 2, 7, 100
				} else if i == 1 {
					digits, nb, lim = 1, 4, 10
				}
				pos := r.pos
				d := r.read(nb)
				if d >= lim {
					return nil, eci, &MalformedError{pos,
						fmt.Sprintf("numeric value %d", d)}
				}
				fmt.Fprintf(&sb, "%0*d", digits, d)
			}
		case Alphanumeric:
			if err := need(count/2*11+count%2*6, "alphanumeric data"); err != nil {
				return nil, eci, err
			}
			for i := count; i > 0; i -= 2 {
				pos := r.pos
				if i == 1 {
					d := r.read(6)
					if d >= 45 {
						return nil, eci, &MalformedError{pos,
							fmt.Sprintf("alphanumeric value %d", d)}
					}
					sb.WriteByte(alphaChars[d])
					break
				}
				d := r.read(11)
				if d >= 45*45 {
					return nil, eci, &MalformedError{pos,
						fmt.Sprintf("alphanumeric value %d", d)}
				}
				sb.WriteByte(alphaChars[d/45])
				sb.WriteByte(alphaChars[d%45])
			}
		case Byte:
			if err := need(count*8, "byte data"); err != nil {
				return nil, eci, err
			}
			b := make([]byte, count)
			for i := range b {
				b[i] = byte(r.read(8))
			}
			sb.WriteString(decodeBytes(b, eci))
		case Kanji:
			if err := need(count*13, "kanji data"); err != nil {
				return nil, eci, err
			}
			b := make([]byte, 0, count*2)
			for i := 0; i < count; i++ {
				d := r.read(13)
				c := d/0xc0<<8 | d%0xc0
				if c < 0x1f00 {
					c += 0x8140
				} else {
					c += 0xc140
				}
				b = append(b, byte(c>>8), byte(c))
			}
			s, err := shiftJIS.NewDecoder().Bytes(b)
			if err != nil {
				return nil, eci, &MalformedError{start, "invalid kanji"}
			}
			sb.Write(s)
		}
		segs = append(segs, Segment{sb.String(), mode})
	}
	return segs, eci, nil
}

// readECI reads an ECI designator of 1 to 3 bytes.
func readECI(r *bitReader) (int, error) {
	start := r.pos
	if r.avail() < 8 {
		return 0, &MalformedError{start, "ECI truncated"}
	}
	b := r.read(8)
	var extra int
	switch {
	case b&0x80 == 0:
		return int(b), nil
	case b&0xc0 == 0x80:
		b, extra = b&0x3f, 1
	case b&0xe0 == 0xc0:
		b, extra = b&0x1f, 2
	default:
		return 0, &MalformedError{start, fmt.Sprintf("ECI byte %#x", b)}
	}
	if r.avail() < extra*8 {
		return 0, &MalformedError{start, "ECI truncated"}
	}
	return int(b<<(8*extra) | r.read(8*extra)), nil
}
