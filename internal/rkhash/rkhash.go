// Package rkhash implements a multi-base polynomial rolling fingerprint.
//
// A Hash tracks the fingerprint of a byte window that can grow or shrink at
// either end in O(number of bases) time, independent of the window length.
// Two fingerprints are equal when they cover the same number of bytes and
// agree under every base, which makes an accidental collision practically
// (not literally) impossible.
//
//	kw := rkhash.Default.Of(`\input`)
//	span := rkhash.Default.New()
//	for i, c := range buf {
//	    span.AppendRight(c)
//	    if span.Len() > kw.Len() {
//	        span.RemoveLeft(buf[i-kw.Len()])
//	    }
//	    if span.Equal(kw) {
//	        // keyword ends at buf[i]
//	    }
//	}
package rkhash

import "math/bits"

// Params holds the modulus and bases shared by a family of fingerprints.
// Params is immutable after construction and safe for concurrent use.
type Params struct {
	mod   uint64
	bases []uint64
	inv   []uint64
}

// Default is a parameter set with a 31-bit prime modulus and four bases.
var Default = NewParams(2147483647, 1000003, 911382323, 972663749, 1301081)

// NewParams returns fingerprint parameters for the prime modulus mod and the
// given bases. Each base must be non-zero modulo mod; the modular inverse of
// every base is precomputed here.
func NewParams(mod uint64, bases ...uint64) *Params {
	p := &Params{
		mod:   mod,
		bases: make([]uint64, len(bases)),
		inv:   make([]uint64, len(bases)),
	}
	for i, b := range bases {
		p.bases[i] = b % mod
		p.inv[i] = inverse(p.bases[i], mod)
	}
	return p
}

// New returns an empty fingerprint.
func (p *Params) New() *Hash {
	h := &Hash{
		params: p,
		vals:   make([]uint64, len(p.bases)),
		pows:   make([]uint64, len(p.bases)),
	}
	h.Reset()
	return h
}

// Of returns the fingerprint of s.
func (p *Params) Of(s string) *Hash {
	h := p.New()
	for i := 0; i < len(s); i++ {
		h.AppendRight(s[i])
	}
	return h
}

// Hash is a rolling fingerprint over a byte window.
// A Hash is not safe for concurrent mutation.
type Hash struct {
	params *Params
	vals   []uint64
	pows   []uint64
	n      int
}

// Reset empties the window.
func (h *Hash) Reset() {
	for i := range h.vals {
		h.vals[i] = 0
		h.pows[i] = 1
	}
	h.n = 0
}

// Len returns the number of bytes covered by the fingerprint.
func (h *Hash) Len() int {
	return h.n
}

// AppendRight adds c as the new low-order digit.
func (h *Hash) AppendRight(c byte) {
	m := h.params.mod
	x := uint64(c) % m
	for i, b := range h.params.bases {
		h.vals[i] = (mulmod(h.vals[i], b, m) + x) % m
		h.pows[i] = mulmod(h.pows[i], b, m)
	}
	h.n++
}

// AppendLeft adds c as the new high-order digit.
func (h *Hash) AppendLeft(c byte) {
	m := h.params.mod
	x := uint64(c) % m
	for i, b := range h.params.bases {
		h.vals[i] = (h.vals[i] + mulmod(x, h.pows[i], m)) % m
		h.pows[i] = mulmod(h.pows[i], b, m)
	}
	h.n++
}

// RemoveRight undoes AppendRight(c). c must be the current low-order byte.
func (h *Hash) RemoveRight(c byte) {
	if h.n == 0 {
		return
	}
	m := h.params.mod
	x := uint64(c) % m
	for i, inv := range h.params.inv {
		h.vals[i] = mulmod((h.vals[i]+m-x)%m, inv, m)
		h.pows[i] = mulmod(h.pows[i], inv, m)
	}
	h.n--
}

// RemoveLeft undoes AppendLeft(c). c must be the current high-order byte.
func (h *Hash) RemoveLeft(c byte) {
	if h.n == 0 {
		return
	}
	m := h.params.mod
	x := uint64(c) % m
	for i, inv := range h.params.inv {
		h.pows[i] = mulmod(h.pows[i], inv, m)
		h.vals[i] = (h.vals[i] + m - mulmod(x, h.pows[i], m)) % m
	}
	h.n--
}

// Equal reports whether h and o cover the same number of bytes and carry the
// same value under every base. Fingerprints from different Params are never
// equal.
func (h *Hash) Equal(o *Hash) bool {
	if h == nil || o == nil {
		return h == o
	}
	if h.params != o.params || h.n != o.n {
		return false
	}
	for i := range h.vals {
		if h.vals[i] != o.vals[i] {
			return false
		}
	}
	return true
}

func mulmod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, m)
}

func powmod(b, e, m uint64) uint64 {
	r := uint64(1) % m
	b %= m
	for e > 0 {
		if e&1 == 1 {
			r = mulmod(r, b, m)
		}
		b = mulmod(b, b, m)
		e >>= 1
	}
	return r
}

// inverse uses Fermat's little theorem, so mod must be prime.
func inverse(b, mod uint64) uint64 {
	return powmod(b, mod-2, mod)
}
