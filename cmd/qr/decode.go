package main

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"os"
	"runtime"

	qr "github.com/unixdj/qrcodec"
	"github.com/unixdj/qrcodec/content"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodeFiles decodes the named image files concurrently and prints
// the results in order.  It reports whether all of them decoded.
func decodeFiles(names []string) bool {
	cache := qr.NewCache(len(names))
	res := make([]*qr.Result, len(names))
	errs := make([]error, len(names))
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		i, name := i, name
		eg.Go(func() error {
			res[i], errs[i] = decodeFile(cache, name)
			return nil
		})
	}
	eg.Wait()

	ok := true
	for i, name := range names {
		if errs[i] != nil {
			log.Println(errs[i])
			ok = false
			continue
		}
		if len(names) > 1 {
			fmt.Print(name, ": ")
		}
		if g.info {
			printInfo(res[i])
		}
		fmt.Println(res[i].Text)
	}
	return ok
}

// decodeFile reads an image and decodes it through the cache, so that
// identical images are decoded once.
func decodeFile(cache *qr.Cache, name string) (*qr.Result, error) {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	b := src.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)
	res, err := cache.Decode(img.Pix, b.Dx(), b.Dy())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

func printInfo(r *qr.Result) {
	t := content.Classify(r.Text)
	fmt.Printf("version %v-%v, mask %d, mode %s", r.Version, r.Level,
		r.Mask, r.Mode)
	if r.ECI >= 0 {
		fmt.Printf(", ECI %d", r.ECI)
	}
	fmt.Printf(", %v", t)
	if t == content.WiFi {
		if n, err := content.ParseWiFi(r.Text); err == nil {
			fmt.Printf(" network %q", n.SSID)
			if n.Auth != "" {
				fmt.Printf(" auth %s", n.Auth)
			}
			if n.Hidden {
				fmt.Print(" hidden")
			}
		}
	}
	fmt.Println()
}
