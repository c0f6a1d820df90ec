// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package split

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/unixdj/qrcodec/coding"
)

type seg = coding.Segment

func TestSegments(t *testing.T) {
	tests := []struct {
		text  string
		class int
		f     Flags
		segs  []seg
	}{
		{"", 0, 0, []seg{{Text: "", Mode: coding.Byte}}},
		{"HELLO WORLD", 0, 0, []seg{{Text: "HELLO WORLD", Mode: coding.Alphanumeric}}},
		{"0123456789012345678901234567890", 2, 0,
			[]seg{{Text: "0123456789012345678901234567890", Mode: coding.Numeric}}},
		{"AB12345678CD", 0, 0, []seg{{Text: "AB12345678CD", Mode: coding.Alphanumeric}}},
		{"a1b", 0, 0, []seg{{Text: "a1b", Mode: coding.Byte}}},
		{"https://example.com/path?q=1", 0, 0, []seg{{Text: "https://example.com/path?q=1", Mode: coding.Byte}}},
		{"Order 12345678 from ABC-DEF", 0, 0, []seg{
			{Text: "Order ", Mode: coding.Byte},
			{Text: "12345678", Mode: coding.Numeric},
			{Text: " from", Mode: coding.Byte},
			{Text: " ABC-DEF", Mode: coding.Alphanumeric},
		}},
		{"Order 12345678 from ABC-DEF", 2, 0, []seg{
			{Text: "Order 12345678 from", Mode: coding.Byte},
			{Text: " ABC-DEF", Mode: coding.Alphanumeric},
		}},
		{"café 漢字 123", 0, 0, []seg{
			{Text: "café ", Mode: coding.Byte},
			{Text: "漢字", Mode: coding.Kanji},
			{Text: " 123", Mode: coding.Alphanumeric},
		}},
		{"café 漢字 123", 2, 0, []seg{{Text: "café 漢字 123", Mode: coding.Byte}}},
		{"漢字", 0, NoKanji, []seg{{Text: "漢字", Mode: coding.Byte}}},
		{"café", 0, Latin1, []seg{{Text: "café", Mode: coding.Latin1}}},
		{"HELLO", 0, ByteOnly, []seg{{Text: "HELLO", Mode: coding.Byte}}},
		{"bin\xff\x00", 0, ByteOnly, []seg{{Text: "bin\xff\x00", Mode: coding.Byte}}},
	}
	for _, tt := range tests {
		segs, bits, err := Segments(tt.text, tt.class, tt.f)
		if err != nil {
			t.Errorf("%q: %v", tt.text, err)
			continue
		}
		if !slices.Equal(segs, tt.segs) {
			t.Errorf("%q class %d: segments %q, want %q", tt.text, tt.class, segs, tt.segs)
		}
		n := 0
		for _, s := range segs {
			n += s.EncodedLength(tt.class)
		}
		if n != bits {
			t.Errorf("%q class %d: %d bits, segments encode to %d", tt.text, tt.class, bits, n)
		}
	}
}

func TestSegmentsOptimal(t *testing.T) {
	// Each rune alone in the cheapest mode is never shorter than
	// the split.
	for _, text := range []string{
		"a1b2c3", "123abc456", "ABC 123 def", "漢1漢22漢333", "x",
		"00000000000000000000A0000000000000000000a",
	} {
		for class := coding.Class0; class <= coding.Class2; class++ {
			_, bits, err := Segments(text, class, 0)
			if err != nil {
				t.Fatal(err)
			}
			n := 0
			for _, r := range text {
				s := string(r)
				best := (seg{Text: s, Mode: coding.Byte}).EncodedLength(class)
				for _, m := range []coding.Mode{coding.Numeric, coding.Alphanumeric, coding.Kanji} {
					if sg := (seg{Text: s, Mode: m}); sg.IsValid() {
						best = min(best, sg.EncodedLength(class))
					}
				}
				n += best
			}
			if bits > n {
				t.Errorf("%q class %d: %d bits, rune by rune %d", text, class, bits, n)
			}
		}
	}
}

func TestCharacterError(t *testing.T) {
	tests := []struct {
		text   string
		f      Flags
		offset int
	}{
		{"ok\xffbad", 0, 2},
		{"\xe6\xbc", 0, 0},
		{"a€", Latin1, 1},
		{"xy€", Latin1 | ByteOnly, 2},
		{"漢é", Latin1 | NoKanji, 0},
	}
	for _, tt := range tests {
		_, _, err := Segments(tt.text, 0, tt.f)
		var ce *CharacterError
		if !errors.As(err, &ce) || ce.Offset != tt.offset {
			t.Errorf("%q: err = %v, want offset %d", tt.text, err, tt.offset)
		}
	}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		bits  [3]int
		level coding.Level
		min   coding.Version
		v     coding.Version
	}{
		{[3]int{0, 0, 0}, L, 0, 1},
		{[3]int{152, 152, 152}, L, 0, 1},
		{[3]int{153, 153, 153}, L, 0, 2},
		{[3]int{128, 128, 128}, M, 0, 1},
		{[3]int{129, 129, 129}, M, 0, 2},
		{[3]int{100, 100, 100}, L, 5, 5},
		{[3]int{1000, 1004, 1008}, L, 0, 6},
		{[3]int{2200, 2192, 2200}, L, 0, 10},
		{[3]int{2200, 2196, 2200}, L, 0, 11},
		{[3]int{2200, 2192, 2200}, L, 12, 12},
		{[3]int{30000, 23600, 23648}, L, 0, 40},
	}
	for _, tt := range tests {
		if v, err := Plan(tt.bits, tt.level, tt.min); err != nil || v != tt.v {
			t.Errorf("Plan(%v, %v, %v) = %v, %v, want %v", tt.bits, tt.level, tt.min, v, err, tt.v)
		}
	}
	var ce *CapacityError
	if _, err := Plan([3]int{30000, 30000, 23649}, L, 0); !errors.As(err, &ce) ||
		ce.Bits != 23649 || ce.Level != L {
		t.Errorf("overflow: err = %v", err)
	}
	if _, err := Plan([3]int{}, L, 41); !errors.Is(err, coding.ErrVersion) {
		t.Errorf("version 41: err = %v", err)
	}
	if _, err := Plan([3]int{}, coding.Level(7), 0); !errors.Is(err, coding.ErrLevel) {
		t.Errorf("level 7: err = %v", err)
	}
}

func TestPlanMonotonic(t *testing.T) {
	for l := L; l <= H; l++ {
		prev := coding.MinVersion
		for bits := 0; bits <= coding.MaxVersion.DataBits(l); bits += 97 {
			v, err := Plan([3]int{bits, bits, bits}, l, 0)
			if err != nil {
				t.Fatalf("%v: %d bits: %v", l, bits, err)
			}
			if v < prev || v.DataBits(l) < bits || v > 1 && (v-1).DataBits(l) >= bits {
				t.Fatalf("%v: %d bits: version %v after %v", l, bits, v, prev)
			}
			prev = v
		}
	}
}

func TestCapacityCeiling(t *testing.T) {
	tests := []struct {
		unit string
		n    int
	}{
		{"a", 2953},
		{"7", 7089},
		{"Z", 4296},
		{"漢", 1817},
	}
	for _, tt := range tests {
		text := strings.Repeat(tt.unit, tt.n)
		segs, v, err := Split(text, L, 0, 0)
		if err != nil || v != coding.MaxVersion || len(segs) != 1 {
			t.Errorf("%d × %q: %d segments, version %v, %v", tt.n, tt.unit, len(segs), v, err)
		}
		var ce *CapacityError
		if _, _, err := Split(text+tt.unit, L, 0, 0); !errors.As(err, &ce) {
			t.Errorf("%d × %q: err = %v", tt.n+1, tt.unit, err)
		}
		if _, _, err := Split(text, M, 0, 0); !errors.As(err, &ce) || ce.Level != M {
			t.Errorf("%d × %q at M: err = %v", tt.n, tt.unit, err)
		}
	}
}

func TestSplitEncodes(t *testing.T) {
	eci, _ := coding.ECISegment(coding.UTF8ECI)
	tests := []struct {
		text string
		f    Flags
		head []coding.Segment
	}{
		{"", 0, nil},
		{"HELLO WORLD", 0, nil},
		{"Order 12345678 from ABC-DEF", 0, nil},
		{"café 漢字 123", 0, []coding.Segment{eci}},
		{"Grüße, 東京 2024!", Latin1, nil},
		{strings.Repeat("QR 0123456789 コード ", 40), 0, nil},
	}
	for _, tt := range tests {
		for l := L; l <= H; l++ {
			segs, v, err := Split(tt.text, l, 0, tt.f, tt.head...)
			if err != nil {
				t.Errorf("%q %v: %v", tt.text, l, err)
				continue
			}
			c, err := coding.Encode(v, l, segs...)
			if err != nil {
				t.Errorf("%q %v: version %v: %v", tt.text, l, v, err)
				continue
			}
			d, err := coding.Decode(c)
			if err != nil {
				t.Errorf("%q %v: decode: %v", tt.text, l, err)
				continue
			}
			var sb strings.Builder
			for _, s := range d.Segments {
				sb.WriteString(s.Text)
			}
			if sb.String() != tt.text {
				t.Errorf("%q %v: decoded %q", tt.text, l, sb.String())
			}
		}
	}
}

func BenchmarkSplit(b *testing.B) {
	text := strings.Repeat("Order 12345678 from ABC-DEF, 漢字 ", 20)
	for i := 0; i < b.N; i++ {
		if _, _, err := Split(text, M, 0, 0); err != nil {
			b.Fatal(err)
		}
	}
}
