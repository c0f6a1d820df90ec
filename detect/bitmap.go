// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package detect locates QR symbols in images and samples their
// modules into a coding.Code.
package detect // import "github.com/unixdj/qrcodec/detect"

// A Bitmap is a binarized image.
type Bitmap struct {
	W, H int
	Pix  []byte // 1 is black, 0 is white; W bytes per row
}

// Black reports whether the pixel at (x, y) is black.
// Pixels outside the image are white.
func (b *Bitmap) Black(x, y int) bool {
	return 0 <= x && x < b.W && 0 <= y && y < b.H && b.Pix[y*b.W+x] != 0
}

// Threshold parameters: the moving average spans a window of
// 1/thresholdDen of the image width, and a pixel is black when it is
// thresholdPct percent darker than the average.
const (
	thresholdMin = 1
	thresholdDen = 8
	thresholdPct = 5
)

// Binarize converts w×h pixels of 8 bit luminance, w bytes per row,
// into a Bitmap.  Each pixel is compared against a moving average
// of its row, run in both directions, alternating between rows.
func Binarize(lum []byte, w, h int) *Bitmap {
	b := &Bitmap{W: w, H: h, Pix: make([]byte, w*h)}
	s := max(w/thresholdDen, thresholdMin)
	avg := make([]int, w)
	var fwd, rev int
	for y := 0; y < h; y++ {
		row := lum[y*w : y*w+w]
		clear(avg)
		for x := 0; x < w; x++ {
			f, r := x, w-1-x
			if y&1 == 0 {
				f, r = r, f
			}
			fwd = fwd*(s-1)/s + int(row[f])
			rev = rev*(s-1)/s + int(row[r])
			avg[f] += fwd
			avg[r] += rev
		}
		out := b.Pix[y*w : y*w+w]
		for x, v := range row {
			if int(v) < avg[x]*(100-thresholdPct)/(200*s) {
				out[x] = 1
			}
		}
	}
	return b
}
