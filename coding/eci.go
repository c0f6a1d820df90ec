// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// ECI designators for common character encodings.
const (
	Latin1ECI   = 3  // ISO 8859-1
	ShiftJISECI = 20 // Shift JIS
	UTF8ECI     = 26 // UTF-8
)

var shiftJIS = japanese.ShiftJIS

// eciCharsets maps ECI designators to byte mode character encodings.
// A nil Encoding is UTF-8 or ASCII, needing no conversion.
var eciCharsets = map[int]encoding.Encoding{
	0:  charmap.CodePage437,
	1:  charmap.ISO8859_1,
	2:  charmap.CodePage437,
	3:  charmap.ISO8859_1,
	4:  charmap.ISO8859_2,
	5:  charmap.ISO8859_3,
	6:  charmap.ISO8859_4,
	7:  charmap.ISO8859_5,
	8:  charmap.ISO8859_6,
	9:  charmap.ISO8859_7,
	10: charmap.ISO8859_8,
	11: charmap.ISO8859_9,
	12: charmap.ISO8859_10,
	13: charmap.Windows874, // ISO 8859-11 superset
	15: charmap.ISO8859_13,
	16: charmap.ISO8859_14,
	17: charmap.ISO8859_15,
	18: charmap.ISO8859_16,
	20: shiftJIS,
	21: charmap.Windows1250,
	22: charmap.Windows1251,
	23: charmap.Windows1252,
	24: charmap.Windows1256,
	25: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	26: nil,
	27: nil,
	28: traditionalchinese.Big5,
	29: simplifiedchinese.GB18030,
	30: korean.EUCKR,
}

// decodeBytes converts byte mode data to UTF-8.  Without an ECI,
// valid UTF-8 is kept and anything else is read as ISO 8859-1, the
// default byte mode encoding.  Data in an unknown or failing
// encoding is returned as is.
func decodeBytes(b []byte, eci int) string {
	var enc encoding.Encoding = charmap.ISO8859_1
	if eci >= 0 {
		var ok bool
		if enc, ok = eciCharsets[eci]; !ok {
			return string(b)
		}
	} else if utf8.Valid(b) {
		enc = nil
	}
	if enc == nil {
		return string(b)
	}
	s, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
