// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gf256

import "errors"

// ErrTooManyErrors is returned by Correct when a block holds more
// errors than its check bytes can correct.
var ErrTooManyErrors = errors.New("gf256: too many errors")

// Correct corrects in place up to c/2 byte errors in msg, a block of
// data bytes followed by c check bytes produced by an RSEncoder over f.
// It returns the number of bytes corrected.
func (f *Field) Correct(msg []byte, c int) (int, error) {
	if c <= 0 || c > len(msg) || len(msg) > 255 {
		panic("gf256: invalid block size")
	}
	synd, ok := f.syndromes(msg, c)
	if ok {
		return 0, nil
	}
	lambda := f.locator(synd)
	nerr := len(lambda) - 1
	if nerr > c/2 {
		return 0, ErrTooManyErrors
	}

	// Chien search.  Byte i holds the coefficient of x^(n-1-i),
	// so its error locator is α^(n-1-i).
	n := len(msg)
	pos := make([]int, 0, nerr)
	for i := 0; i < n; i++ {
		if f.evalLow(lambda, f.Exp(255-(n-1-i)%255)) == 0 {
			pos = append(pos, i)
		}
	}
	if len(pos) != nerr {
		return 0, ErrTooManyErrors
	}

	// Forney.  Ω = S·Λ mod x^c; the magnitude at locator X is
	// X·Ω(X⁻¹)/Λ'(X⁻¹) for a generator whose first root is α^0.
	omega := make([]byte, c)
	for i := 0; i < c; i++ {
		for j := 0; j <= i && j < len(lambda); j++ {
			omega[i] ^= f.Mul(synd[i-j], lambda[j])
		}
	}
	deriv := make([]byte, len(lambda)-1)
	for i := 1; i < len(lambda); i += 2 {
		deriv[i-1] = lambda[i]
	}
	for _, i := range pos {
		x := f.Exp(n - 1 - i)
		xinv := f.Inv(x)
		d := f.evalLow(deriv, xinv)
		if d == 0 {
			return 0, ErrTooManyErrors
		}
		e := f.Mul(x, f.Mul(f.evalLow(omega, xinv), f.Inv(d)))
		msg[i] ^= e
	}
	if _, ok := f.syndromes(msg, c); !ok {
		return 0, ErrTooManyErrors
	}
	return nerr, nil
}

// syndromes returns msg evaluated at α^0 … α^(c-1), and whether
// all of them are zero.
func (f *Field) syndromes(msg []byte, c int) ([]byte, bool) {
	s := make([]byte, c)
	zero := true
	for i := range s {
		s[i] = f.eval(msg, f.Exp(i))
		if s[i] != 0 {
			zero = false
		}
	}
	return s, zero
}

// locator runs Berlekamp-Massey over the syndromes and returns the
// error locator polynomial Λ, lowest degree first, with Λ(0) = 1.
func (f *Field) locator(synd []byte) []byte {
	c := []byte{1}
	b := []byte{1}
	l, m := 0, 1
	bd := byte(1)
	for n := range synd {
		d := synd[n]
		for i := 1; i <= l && i < len(c); i++ {
			d ^= f.Mul(c[i], synd[n-i])
		}
		if d == 0 {
			m++
			continue
		}
		coef := f.Mul(d, f.Inv(bd))
		t := c
		if need := len(b) + m; len(c) < need {
			c = append(make([]byte, 0, need), c...)
			c = c[:need]
		} else {
			c = append([]byte(nil), c...)
		}
		for i, v := range b {
			c[i+m] ^= f.Mul(coef, v)
		}
		if 2*l <= n {
			l = n + 1 - l
			b = t
			bd = d
			m = 1
		} else {
			m++
		}
	}
	if len(c) < l+1 {
		c = append(c, make([]byte, l+1-len(c))...)
	}
	return c[:l+1]
}

// evalLow evaluates the polynomial p, lowest degree first, at x.
func (f *Field) evalLow(p []byte, x byte) byte {
	var r byte
	for i := len(p) - 1; i >= 0; i-- {
		r = f.Mul(r, x) ^ p[i]
	}
	return r
}
