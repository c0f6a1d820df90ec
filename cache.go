// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"slices"
	"sync"
)

// A Cache remembers the results of decoding images, so that decoding
// the same pixels again, as when scanning a still camera frame, skips
// the work.  Images are looked up by a checksum of their pixels and
// confirmed by comparing the pixels, so a checksum collision costs a
// decode, never a wrong result.  When full, the oldest entry is
// evicted.  A Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[uint32][]*cacheEntry
	order   []*cacheEntry // oldest first
	hash    func(lum []byte, w, h int) uint32
}

type cacheEntry struct {
	key  uint32
	w, h int
	lum  []byte
	res  *Result
	err  error
}

// DefaultCacheSize is the capacity of a Cache created with size 0.
const DefaultCacheSize = 16

// NewCache returns a Cache holding up to size results.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		max:     size,
		entries: make(map[uint32][]*cacheEntry),
		hash:    checksum,
	}
}

func checksum(lum []byte, w, h int) uint32 {
	var dim [8]byte
	binary.BigEndian.PutUint32(dim[:4], uint32(w))
	binary.BigEndian.PutUint32(dim[4:], uint32(h))
	return crc32.Update(crc32.ChecksumIEEE(dim[:]), crc32.IEEETable, lum)
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Decode is like the package function Decode, through the cache.
func (c *Cache) Decode(pix []byte, width, height int) (*Result, error) {
	lum, err := luminance(pix, width, height)
	if err != nil {
		return nil, err
	}
	return c.DecodeGray(lum, width, height)
}

// DecodeGray is like the package function DecodeGray, through
// the cache.  Errors are cached as well as results.
func (c *Cache) DecodeGray(lum []byte, width, height int) (*Result, error) {
	if width <= 0 || height <= 0 || len(lum) < width*height {
		return nil, ErrArgs
	}
	lum = lum[:width*height]
	key := c.hash(lum, width, height)
	if e := c.lookup(key, lum, width, height); e != nil {
		return e.res.clone(), e.err
	}
	res, err := DecodeGray(lum, width, height)
	c.store(&cacheEntry{
		key: key,
		w:   width,
		h:   height,
		lum: bytes.Clone(lum),
		res: res,
		err: err,
	})
	return res.clone(), err
}

func (c *Cache) lookup(key uint32, lum []byte, w, h int) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries[key] {
		if e.w == w && e.h == h && bytes.Equal(e.lum, lum) {
			return e
		}
	}
	return nil
}

func (c *Cache) store(e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have decoded the same image meanwhile.
	for _, old := range c.entries[e.key] {
		if old.w == e.w && old.h == e.h && bytes.Equal(old.lum, e.lum) {
			return
		}
	}
	if len(c.order) >= c.max {
		old := c.order[0]
		c.order = c.order[1:]
		bucket := slices.DeleteFunc(c.entries[old.key], func(x *cacheEntry) bool {
			return x == old
		})
		if len(bucket) == 0 {
			delete(c.entries, old.key)
		} else {
			c.entries[old.key] = bucket
		}
	}
	c.order = append(c.order, e)
	c.entries[e.key] = append(c.entries[e.key], e)
}

// clone returns a copy of r that the caller may modify.
func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	n := *r
	n.Segments = slices.Clone(r.Segments)
	return &n
}
