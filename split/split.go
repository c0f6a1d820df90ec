// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package split splits strings into QR code segments and picks the
smallest QR version able to hold them.

Text is classified rune by rune into the modes able to encode it.
Runs of runes encodable in the same modes form spans, and each span is
assigned a mode so that the total encoded length, including segment
headers, is minimal.  Numeric and alphanumeric segments hold ASCII
digits and the alphanumeric character set; byte segments hold UTF-8
(or ISO 8859-1 with the Latin1 flag); kanji segments hold characters
of JIS X 0208 encodable in QR kanji mode.
*/
package split // import "github.com/unixdj/qrcodec/split"

import (
	"fmt"
	"unicode/utf8"

	"github.com/unixdj/qrcodec/coding"
)

// QR error correction levels.
const (
	L = coding.L // 20% redundant
	M = coding.M // 38% redundant
	Q = coding.Q // 55% redundant
	H = coding.H // 65% redundant
)

// Flags restrict the modes Segments may use.
type Flags uint8

const (
	NoKanji  Flags = 1 << iota // never use kanji mode
	ByteOnly                   // emit one byte mode segment, unvalidated
	Latin1                     // encode byte mode segments as ISO 8859-1
)

// CharacterError reports text that cannot be encoded in any
// permitted mode.
type CharacterError struct {
	Offset int // byte offset of the offending character
}

func (e *CharacterError) Error() string {
	return fmt.Sprintf("qr: unencodable character at byte %d", e.Offset)
}

// CapacityError reports data too long for any QR version at the
// requested level.
type CapacityError struct {
	Bits  int          // encoded length in the largest size class
	Level coding.Level // error correction level
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("qr: %d bits of data do not fit at level %v", e.Bits, e.Level)
}

// Segments splits text into segments with the smallest total encoded
// length for the given QR version size class and returns them with
// that length in bits.  An empty text yields a single empty byte mode
// segment.  Text that is not valid UTF-8, or contains characters the
// flags leave no mode for, fails with a *CharacterError.
func Segments(text string, class int, f Flags) ([]coding.Segment, int, error) {
	s, err := newSplitter(text, f)
	if err != nil {
		return nil, 0, err
	}
	bits := s.split(class)
	return s.append(nil), bits, nil
}

// Plan returns the smallest version from minv up that holds data whose
// encoded length is bits[c] bits in size class c at the given level.
func Plan(bits [3]int, level coding.Level, minv coding.Version) (coding.Version, error) {
	if level < L || level > H {
		return 0, coding.ErrLevel
	}
	if minv < coding.MinVersion {
		minv = coding.MinVersion
	} else if minv > coding.MaxVersion {
		return 0, coding.ErrVersion
	}
	for c := minv.SizeClass(); c <= coding.Class2; c++ {
		lo, hi := coding.ClassRange(c)
		lo = max(lo, minv)
		if hi.DataBits(level) < bits[c] {
			continue
		}
		// binary search the class
		for lo < hi {
			if mid := (lo + hi) / 2; mid.DataBits(level) < bits[c] {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		return lo, nil
	}
	return 0, &CapacityError{Bits: bits[coding.Class2], Level: level}
}

// Split returns the segments of text preceded by head, typically an
// ECI segment, and the smallest version from minv up that holds them
// at the given level.
func Split(text string, level coding.Level, minv coding.Version, f Flags, head ...coding.Segment) ([]coding.Segment, coding.Version, error) {
	s, err := newSplitter(text, f)
	if err != nil {
		return nil, 0, err
	}
	var bits [3]int
	for c := range bits {
		bits[c] = s.split(c)
		for _, seg := range head {
			bits[c] += seg.EncodedLength(c)
		}
	}
	v, err := Plan(bits, level, minv)
	if err != nil {
		return nil, 0, err
	}
	s.split(v.SizeClass())
	segs := make([]coding.Segment, len(head), len(head)+s.len())
	copy(segs, head)
	return s.append(segs), v, nil
}

/*
splitter and its component types.

newSplitter determines modes in which each rune in the string is
encodable and creates a slice of spans, each span describing a
substring of runes encodable in the same modes.  To avoid multiple
allocations, the span structure contains an array of segments for the
modes.

splitter.split creates a linked list of segments representing an
optimal split of the data.  A segment contains its mode, length in
bytes and runes, total encoded length in bits of the string from this
segment to the end, and a link to the next segment.

The split is calculated by walking the spans backwards.  For each span
n, for each mode m, a segment (n,m) is created representing an optimal
split for the string from span n to the end, starting with mode m.

The segment (n,m) is created thusly.  For each mode mm in which span
n+1 is encodable, a segment (n,m,mm) linking to (n+1,mm) is created.
If m=mm, the segments are merged.  The encoded length is calculated,
and the total encoded length of the next segment is added to it.  Of
these segments, the one with the smallest total encoded length is
chosen as (n,m).

When the beginning of the span slice is reached, a segment (0,m) with
the smallest total encoded length for any m describes an optimal split
for the whole string.
*/
type (
	// segment describes a segment encoded in a certain mode.
	segment struct {
		mode    coding.Mode // encoding mode
		segdata             // lengths and pointer to next
	}

	// segdata is the mutable portion of segment.
	segdata struct {
		next *segment // link to next segment in the chain
		len  uint32   // length of string in bytes
		rlen uint32   // length of string in Unicode code points
		bits uint32   // encoded size of all segments in the chain
	}

	// span describes a span of bytes encodable in the same modes.
	span struct {
		len  uint32     // length of string in bytes
		rlen uint32     // length of string in Unicode code points
		seg  [4]segment // segments, terminated by mode -1
	}

	// splitter holds the spans of a string.
	splitter struct {
		s    string   // string
		sp   []span   // spans
		head *segment // optimal split
	}
)

// Mode bits returned by classify.  The bit index is the index of the
// mode in a modeList.
const (
	numMode   = 1 << iota // numeric
	alphaMode             // alphanumeric
	byteMode              // byte
	kanjiMode             // kanji
	_                     //
	_                     //
	kanjiBit              // chartbl: maybe kanji
	highBit               // chartbl: high byte

	// Modes forming a hierarchy: no string has a longer encoding
	// in a lower mode than in a higher one.
	hier = numMode | alphaMode | byteMode

	by = byteMode       // ASCII byte
	al = by | alphaMode // alphanumeric
	nu = al | numMode   // numeric
	hi = highBit        // high
	ka = hi | kanjiBit  // may begin a kanji
)

// chartbl classifies bytes.  For ASCII it holds the modes the byte is
// encodable in.  The kanji bit is set on the 15 bytes that may begin
// a UTF-8 character encodable in kanji mode.
var chartbl = [256]byte{
	by, by, by, by, by, by, by, by, by, by, by, by, by, by, by, by, // 0x00
	by, by, by, by, by, by, by, by, by, by, by, by, by, by, by, by, // 0x10
	al, by, by, by, al, al, by, by, by, by, al, al, by, al, al, al, // 0x20
	nu, nu, nu, nu, nu, nu, nu, nu, nu, nu, al, by, by, by, by, by, // 0x30
	by, al, al, al, al, al, al, al, al, al, al, al, al, al, al, al, // 0x40
	al, al, al, al, al, al, al, al, al, al, al, by, by, by, by, by, // 0x50
	by, by, by, by, by, by, by, by, by, by, by, by, by, by, by, by, // 0x60
	by, by, by, by, by, by, by, by, by, by, by, by, by, by, by, by, // 0x70
	hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, // 0x80
	hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, // 0x90
	hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, // 0xa0
	hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, // 0xb0
	hi, hi, ka, ka, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, ka, ka, // 0xc0
	ka, ka, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, // 0xd0
	hi, hi, ka, ka, ka, ka, ka, ka, ka, ka, hi, hi, hi, hi, hi, ka, // 0xe0
	hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, hi, // 0xf0
}

// modeList maps mode bits to Modes.
type modeList [4]coding.Mode

func (f Flags) modes() modeList {
	m := modeList{coding.Numeric, coding.Alphanumeric, coding.Byte, coding.Kanji}
	if f&Latin1 != 0 {
		m[2] = coding.Latin1
	}
	return m
}

// classify returns a bit field of modes in which the first rune in s
// is encodable, and its length in bytes.
func (f Flags) classify(s string) (byte, int) {
	c := chartbl[s[0]]
	if c&highBit == 0 {
		return c, 1
	}
	r, sz := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && sz == 1 {
		return 0, 1
	}
	var m byte
	if f&Latin1 == 0 || r < 0x100 {
		m = byteMode
	}
	if f&NoKanji == 0 && c&kanjiBit != 0 && coding.IsKanji(r) {
		m |= kanjiMode
	}
	return m, sz
}

// newSplitter scans text and returns a splitter holding its spans.
func newSplitter(text string, f Flags) (*splitter, error) {
	list := f.modes()
	if text == "" || f&ByteOnly != 0 {
		if f&Latin1 != 0 {
			for i, r := range text {
				if r >= 0x100 {
					return nil, &CharacterError{Offset: i}
				}
			}
		}
		sp := span{
			len:  uint32(len(text)),
			rlen: uint32(utf8.RuneCountInString(text)),
		}
		sp.seg[0].mode = list[2]
		sp.seg[1].mode = -1
		return &splitter{s: text, sp: []span{sp}}, nil
	}

	// Scan the string, detect valid encoding modes for each character
	var (
		n, sz  int
		m      byte
		modes  = make([]byte, len(text))
		common = byte(hier)
	)
	for i := 0; i < len(text); i += sz {
		old := m
		if m, sz = f.classify(text[i:]); m == 0 {
			return nil, &CharacterError{Offset: i}
		}
		modes[i] = m
		if m != old {
			n++
			common &= m
		}
	}
	// If there are modes common for all runes, mask modes within
	// the hierarchy above the lowest common mode.  Mostly useful
	// with alphanumeric strings, where byte mode never wins.
	mask := ^((common ^ -common) & hier)

	// Populate spans
	sp := make([]span, n)
	old, n, start := byte(0), 0, uint32(0)
	for i, v := range modes {
		if v == 0 {
			continue
		} else if v &= mask; v == 0 {
			panic("qr: internal error")
		} else if v != old {
			if i != 0 {
				sp[n].len = uint32(i) - start
				n++
			}
			old = v
			start = uint32(i)
			seg := &sp[n].seg
			j := 0
			for k, mode := range list {
				if v&(1<<k) != 0 {
					seg[j].mode = mode
					j++
				}
			}
			if j < len(seg) {
				seg[j].mode = -1
			}
		}
		sp[n].rlen++
	}
	sp[n].len = uint32(len(modes)) - start
	return &splitter{s: text, sp: sp[:n+1]}, nil
}

const inf = 0x8000 << 4 // excessive encoded length (max is 16*0x5c60)

func (d *segdata) setBits(mode coding.Mode, class int) {
	d.bits = uint32(min(mode.Length(int(d.len), int(d.rlen), class), inf))
	if d.next != nil {
		d.bits += d.next.bits
	}
}

// add adds v to the split before p, returning a pointer to the
// segment with the smallest encoded length.
func (v *span) add(p *span, class int) *segment {
	best := &v.seg[0]
	for j := range v.seg {
		seg := &v.seg[j]
		if seg.mode < 0 {
			break
		}
		seg.bits = inf
		// p.seg is an array, not a slice, so range works when p is nil
		for k := range p.seg {
			if k != 0 && p.seg[k].mode < 0 {
				break
			}
			c := segdata{len: v.len, rlen: v.rlen}
			var add uint32
			if p != nil {
				c.next = &p.seg[k]
				if seg.mode == c.next.mode {
					c.len += c.next.len
					c.rlen += c.next.rlen
					c.next = c.next.next
					add-- // prefer fewer segments on a tie
				}
			}
			c.setBits(seg.mode, class)
			if c.bits+add < seg.bits {
				seg.segdata = c
			}
			if p == nil {
				break
			}
		}
		if seg.bits < best.bits {
			best = seg
		}
	}
	return best
}

// split calculates an optimal split for the given size class and
// returns its encoded length.
func (s *splitter) split(class int) int {
	var head *segment
	var next *span
	for i := len(s.sp) - 1; i >= 0; i-- {
		head = s.sp[i].add(next, class)
		next = &s.sp[i]
	}
	s.head = head
	return int(head.bits)
}

func (s *splitter) len() int {
	var n int
	for seg := s.head; seg != nil; seg = seg.next {
		n++
	}
	return n
}

func (s *splitter) append(a []coding.Segment) []coding.Segment {
	for seg, s := s.head, s.s; seg != nil; seg = seg.next {
		a = append(a, coding.Segment{
			Text: s[:seg.len],
			Mode: seg.mode,
		})
		s = s[seg.len:]
	}
	return a
}
