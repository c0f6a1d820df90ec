// Copyright 2010 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gf256

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

var f = NewField(0x11d, 2) // x^8 + x^4 + x^3 + x^2 + 1

func TestBasic(t *testing.T) {
	if f.Exp(0) != 1 || f.Exp(1) != 2 || f.Exp(255) != 1 {
		t.Fatalf("bad exp table")
	}
	for x := 1; x < 256; x++ {
		b := byte(x)
		if e := f.Exp(f.Log(b)); e != b {
			t.Errorf("Exp(Log(%#x)) = %#x", b, e)
		}
		if p := f.Mul(b, f.Inv(b)); p != 1 {
			t.Errorf("%#x * Inv(%#x) = %#x", b, b, p)
		}
		for y := 0; y < 256; y += 7 {
			if f.Mul(b, byte(y)) != f.Mul(byte(y), b) {
				t.Errorf("Mul(%#x, %#x) not commutative", b, y)
			}
		}
	}
	if f.Log(0) != -1 || f.Inv(0) != 0 || f.Mul(0, 7) != 0 {
		t.Errorf("bad zero handling")
	}
}

func TestReducible(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("NewField(0x11a, 2) did not panic")
		}
	}()
	NewField(0x11a, 2) // divisible by x
}

func TestGen(t *testing.T) {
	// Exponents of the degree 7 generator polynomial from ISO/IEC 18004.
	want := []int{0, 87, 229, 146, 149, 238, 102, 21}
	g := f.gen(7)
	if len(g) != len(want) {
		t.Fatalf("gen(7) has %d coefficients, want %d", len(g), len(want))
	}
	for i, c := range g {
		if f.Log(c) != want[i] {
			t.Errorf("gen(7)[%d] = α^%d, want α^%d", i, f.Log(c), want[i])
		}
	}
}

func TestECC(t *testing.T) {
	// "HELLO WORLD", version 1, level M.
	data := []byte{0x20, 0x5b, 0x0b, 0x78, 0xd1, 0x72, 0xdc, 0x4d,
		0x43, 0x40, 0xec, 0x11, 0xec, 0x11, 0xec, 0x11}
	want := []byte{0xc4, 0x23, 0x27, 0x77, 0xeb, 0xd7, 0xe7, 0xe2, 0x5d, 0x17}
	check := make([]byte, len(want))
	for i := range check {
		check[i] = 0xff // ECC must not depend on prior contents
	}
	NewRSEncoder(f, len(want)).ECC(data, check)
	if !bytes.Equal(check, want) {
		t.Errorf("ECC = % x, want % x", check, want)
	}
}

func TestCorrect(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, c := range []int{7, 10, 18, 22, 28, 30} {
		rs := NewRSEncoder(f, c)
		for n := 0; n < 50; n++ {
			msg := make([]byte, 1+rng.Intn(100)+c)
			rng.Read(msg[:len(msg)-c])
			rs.ECC(msg[:len(msg)-c], msg[len(msg)-c:])
			orig := append([]byte(nil), msg...)

			nerr := rng.Intn(c/2 + 1)
			for _, i := range rng.Perm(len(msg))[:nerr] {
				msg[i] ^= byte(1 + rng.Intn(255))
			}
			got, err := f.Correct(msg, c)
			if err != nil || got != nerr {
				t.Fatalf("c=%d: Correct with %d errors = %d, %v", c, nerr, got, err)
			}
			if !bytes.Equal(msg, orig) {
				t.Fatalf("c=%d: Correct with %d errors did not restore message", c, nerr)
			}
		}
	}
}

func TestCorrectTooMany(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	const c = 28
	rs := NewRSEncoder(f, c)
	for n := 0; n < 50; n++ {
		msg := make([]byte, 16+c)
		rng.Read(msg[:16])
		rs.ECC(msg[:16], msg[16:])
		for _, i := range rng.Perm(len(msg))[:c/2+1] {
			msg[i] ^= byte(1 + rng.Intn(255))
		}
		if _, err := f.Correct(msg, c); !errors.Is(err, ErrTooManyErrors) {
			t.Fatalf("Correct with %d errors: err = %v, want %v", c/2+1, err, ErrTooManyErrors)
		}
	}
}

func BenchmarkECC(b *testing.B) {
	data := []byte{0x10, 0x20, 0x0c, 0x56, 0x61, 0x80, 0xec, 0x11, 0xec,
		0x11, 0xec, 0x11, 0xec, 0x11, 0xec, 0x11}
	check := make([]byte, 10)
	rs := NewRSEncoder(f, len(check))
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		rs.ECC(data, check)
	}
}

func BenchmarkCorrect(b *testing.B) {
	const c = 30
	msg := make([]byte, 120)
	for i := range msg {
		msg[i] = byte(i)
	}
	NewRSEncoder(f, c).ECC(msg[:len(msg)-c], msg[len(msg)-c:])
	bad := make([]byte, len(msg))
	b.SetBytes(int64(len(msg)))
	for i := 0; i < b.N; i++ {
		copy(bad, msg)
		for j := 0; j < c/2; j++ {
			bad[j*7] ^= 0x5a
		}
		if _, err := f.Correct(bad, c); err != nil {
			b.Fatal(err)
		}
	}
}
