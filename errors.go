// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"errors"

	"github.com/unixdj/qrcodec/coding"
	"github.com/unixdj/qrcodec/detect"
	"github.com/unixdj/qrcodec/split"
)

var (
	// ErrArgs is returned for a Code that cannot be rendered or
	// an image buffer that does not match its dimensions.
	ErrArgs = errors.New("qr: invalid arguments")

	// ErrNotFound is returned by the decoders when the image holds
	// no symbol.  It is the usual outcome for an image without a QR
	// code and not a malfunction.
	ErrNotFound = detect.ErrNotFound
)

// Encoding errors.
type (
	// CharacterError reports text that no permitted mode can encode.
	CharacterError = split.CharacterError

	// CapacityError reports data too long for version 40 at the
	// requested level.
	CapacityError = split.CapacityError
)

// Decoding errors for symbols that were located but could not be read.
type (
	// PerspectiveError reports finder patterns that do not give a
	// usable transform onto the module grid.
	PerspectiveError = detect.PerspectiveError

	// FormatError reports format or version information that is
	// beyond correction in both copies.
	FormatError = coding.FormatError

	// BlockError reports an error correction block with more errors
	// than it can correct.
	BlockError = coding.BlockError

	// MalformedError reports an invalid segment in corrected data.
	MalformedError = coding.MalformedError
)
