// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package qr encodes and decodes QR codes.

Encoding splits text into segments of the modes giving the shortest
encoding, picks the smallest version holding them at the requested
error correction level, and returns the module matrix with the mask
of lowest penalty applied.

Decoding locates a symbol in an image by its finder patterns, samples
its modules through a perspective transform, corrects errors and
returns the text.  An image with no symbol in it yields ErrNotFound;
a symbol that is found but cannot be read yields one of the error
types below.
*/
package qr // import "github.com/unixdj/qrcodec"

import (
	"errors"

	"github.com/unixdj/qrcodec/coding"
	"github.com/unixdj/qrcodec/split"
)

// A Level denotes a QR error correction level.
// From least to most tolerant of errors, they are L, M, Q, H.
type Level = coding.Level

const (
	L = coding.L // 20% redundant
	M = coding.M // 38% redundant
	Q = coding.Q // 55% redundant
	H = coding.H // 65% redundant
)

// ECI designators for the character sets the encoder can produce.
const (
	Latin1ECI   = coding.Latin1ECI
	ShiftJISECI = coding.ShiftJISECI
	UTF8ECI     = coding.UTF8ECI
)

// Default rendering parameters.
const (
	DefaultScale  = 8
	DefaultBorder = 4
)

// Options control encoding.  The zero value, like a nil *Options,
// selects the defaults.
type Options struct {
	MinVersion coding.Version // smallest version to use; 0 for any
	ECI        int            // ECI designator to begin with; 0 for none
	Flags      split.Flags    // mode restrictions
	Scale      int            // image pixels per module; 0 for DefaultScale
	Border     int            // quiet zone in modules; 0 for DefaultBorder, <0 for none
}

func (o *Options) scale() int {
	if o == nil || o.Scale <= 0 {
		return DefaultScale
	}
	return o.Scale
}

func (o *Options) border() int {
	switch {
	case o == nil || o.Border == 0:
		return DefaultBorder
	case o.Border < 0:
		return 0
	}
	return o.Border
}

// Encode returns an encoding of text at the given error correction level.
func Encode(text string, level Level) (*Code, error) {
	return EncodeOptions(text, level, nil)
}

// EncodeOptions is like Encode with options.
func EncodeOptions(text string, level Level, o *Options) (*Code, error) {
	var head []coding.Segment
	var minv coding.Version
	var f split.Flags
	if o != nil {
		minv, f = o.MinVersion, o.Flags
		if o.ECI != 0 {
			seg, err := coding.ECISegment(o.ECI)
			if err != nil {
				return nil, err
			}
			head = append(head, seg)
		}
	}
	segs, v, err := split.Split(text, level, minv, f, head...)
	if err != nil {
		return nil, err
	}
	return encode(v, level, o, segs)
}

// EncodeFallback encodes text at the given level or, if it does not
// fit, at the highest lower level it fits at.  The level used is
// reported in the returned Code.
func EncodeFallback(text string, level Level, o *Options) (*Code, error) {
	var err error
	for l := level; l >= L; l-- {
		var c *Code
		if c, err = EncodeOptions(text, l, o); err == nil {
			return c, nil
		}
		var ce *CapacityError
		if !errors.As(err, &ce) {
			break
		}
	}
	return nil, err
}

// EncodeSegments encodes segs as given, at the smallest version able
// to hold them.  The ECI and Flags options are ignored.
func EncodeSegments(level Level, o *Options, segs ...coding.Segment) (*Code, error) {
	var bits [3]int
	for c := range bits {
		for _, s := range segs {
			if !s.IsValid() {
				return nil, coding.SegmentError(s)
			}
			bits[c] += s.EncodedLength(c)
		}
	}
	var minv coding.Version
	if o != nil {
		minv = o.MinVersion
	}
	v, err := split.Plan(bits, level, minv)
	if err != nil {
		return nil, err
	}
	return encode(v, level, o, segs)
}

func encode(v coding.Version, level Level, o *Options, segs []coding.Segment) (*Code, error) {
	e, err := coding.NewEncoder(v, level)
	if err != nil {
		return nil, err
	}
	cc, err := e.Encode(segs...)
	if err != nil {
		return nil, err
	}
	return &Code{
		Bitmap:  cc.Bitmap,
		Size:    cc.Size,
		Stride:  cc.Stride,
		Scale:   o.scale(),
		Border:  o.border(),
		Version: v,
		Level:   level,
		Mask:    e.Mask(),
	}, nil
}
