// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/unixdj/qrcodec/coding"
)

// A Code is a square pixel grid.
// It implements image.Image and direct PNG encoding.
type Code struct {
	Bitmap []byte // 1 is black, 0 is white
	Size   int    // number of pixels on a side
	Stride int    // number of bytes per row

	Scale   int             // number of image pixels per QR pixel
	Border  int             // quiet zone width in QR pixels
	Reverse bool            // swap black and white
	Palette *[2]color.Color // background and foreground; nil for white and black

	Version coding.Version
	Level   Level
	Mask    int
}

// Black returns true if the pixel at (x,y) is black.
func (c *Code) Black(x, y int) bool {
	return 0 <= x && x < c.Size && 0 <= y && y < c.Size &&
		c.Bitmap[y*c.Stride+x/8]&(1<<uint(7-x&7)) != 0
}

func (c *Code) isValid() bool {
	return c != nil && c.Size > 0 && c.Scale > 0 && c.Border >= 0 &&
		c.Stride == (c.Size+7)>>3 && len(c.Bitmap) >= c.Stride*c.Size
}

// pixels returns the image width in pixels.
func (c *Code) pixels() int {
	return (c.Size + 2*c.Border) * c.Scale
}

// Image returns an Image displaying the code.
func (c *Code) Image() image.Image {
	pal := color.Palette{color.Gray{0xff}, color.Gray{0x00}}
	if c.Palette != nil {
		pal = color.Palette{c.Palette[0], c.Palette[1]}
	}
	if c.Reverse {
		pal[0], pal[1] = pal[1], pal[0]
	}
	return &codeImage{c, pal}
}

// codeImage implements image.PalettedImage and image.RGBA64Image.
type codeImage struct {
	*Code
	pal color.Palette
}

func (c *codeImage) Bounds() image.Rectangle {
	d := c.pixels()
	return image.Rect(0, 0, d, d)
}

func (c *codeImage) ColorIndexAt(x, y int) uint8 {
	if x < 0 || y < 0 {
		return 0
	}
	if c.Black(x/c.Scale-c.Border, y/c.Scale-c.Border) {
		return 1
	}
	return 0
}

func (c *codeImage) At(x, y int) color.Color {
	return c.pal[c.ColorIndexAt(x, y)]
}

func (c *codeImage) RGBA64At(x, y int) color.RGBA64 {
	r, g, b, a := c.At(x, y).RGBA()
	return color.RGBA64{uint16(r), uint16(g), uint16(b), uint16(a)}
}

func (c *codeImage) ColorModel() color.Model {
	return c.pal
}

// Opaque reports whether both palette colours are opaque.
func (c *codeImage) Opaque() bool {
	for _, p := range c.pal {
		if _, _, _, a := p.RGBA(); a != 0xffff {
			return false
		}
	}
	return true
}

// EncodePNG writes a PNG image displaying the code to w.
func (c *Code) EncodePNG(w io.Writer) error {
	if !c.isValid() {
		return ErrArgs
	}
	e := png.Encoder{CompressionLevel: png.BestCompression}
	return e.Encode(w, c.Image())
}

// PNG returns a PNG image displaying the code, or nil if the code
// cannot be rendered.
func (c *Code) PNG() []byte {
	var b bytes.Buffer
	if err := c.EncodePNG(&b); err != nil {
		return nil
	}
	return b.Bytes()
}

// EncodePBM writes a Portable Bit Map image displaying the code to w,
// for use with netpbm.  EncodePBM disregards c.Palette, as other PNM
// formats are not supported.
func (c *Code) EncodePBM(w io.Writer) error {
	if !c.isValid() {
		return ErrArgs
	}
	b := bufio.NewWriter(w)
	length := c.pixels()
	ls := strconv.Itoa(length)
	if _, err := b.WriteString("P4\n" + ls + " " + ls + "\n"); err != nil {
		return err
	}
	row := make([]byte, (length+7)/8)
	var white byte
	if c.Reverse {
		white = 0xff
	}
	for y := -c.Border; y < c.Size+c.Border; y++ {
		pbmRow(row, c, y, white)
		for i := 0; i < c.Scale; i++ {
			if _, err := b.Write(row); err != nil {
				return err
			}
		}
	}
	return b.Flush()
}

// pbmRow encodes row y of c into row, one bit per image pixel,
// most significant bit first, 1 for black.  Rows outside the code
// are blank.  Padding bits past the image width stay 0.
func pbmRow(row []byte, c *Code, y int, white byte) {
	clear(row)
	if 0 <= y && y < c.Size {
		pos := c.Scale * c.Border
		for x := 0; x < c.Size; x++ {
			if c.Black(x, y) {
				for i := 0; i < c.Scale; i++ {
					row[(pos+i)>>3] |= 0x80 >> ((pos + i) & 7)
				}
			}
			pos += c.Scale
		}
	}
	if white != 0 {
		n := c.pixels()
		for i := range row {
			row[i] ^= white
		}
		if n&7 != 0 {
			row[len(row)-1] &= ^byte(0xff >> (n & 7))
		}
	}
}

// String returns the code drawn with Unicode half blocks, two rows
// of pixels per line of text, with the quiet zone.  Colours are
// inverted, as terminals usually show light text on a dark
// background; set c.Reverse for dark on light.
func (c *Code) String() string {
	bord := c.Border
	var b strings.Builder
	pix := c.Size + 2*bord
	b.Grow((pix*3 + 1) * (pix + 1) / 2)
	// Light modules are drawn, so black maps to blank.
	set := func(x, y int) bool { return c.Black(x, y) == c.Reverse }
	for y := -bord; y < c.Size+bord; y += 2 {
		for x := -bord; x < c.Size+bord; x++ {
			switch top, bot := set(x, y), y+1 < c.Size+bord && set(x, y+1); {
			case top && bot:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bot:
				b.WriteRune('▄')
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
