package mock

import (
	"crypto/rand"
	"encoding/binary"
	"unicode/utf16"
)

// LCG parameters (glibc-style constants, modulus 2^31).
const (
	lcgModulus    = 1 << 31
	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
)

// LCG is a linear congruential generator producing floats in [0, 1].
// It holds no shared state; two LCGs built from the same seed produce
// identical sequences.
type LCG struct {
	state uint64
}

// NewLCG returns a deterministic generator seeded with seed. Every seed,
// including 0, yields a reproducible sequence.
func NewLCG(seed int64) *LCG {
	s := seed % lcgModulus
	if s < 0 {
		s += lcgModulus
	}
	return &LCG{state: uint64(s)}
}

// NewEntropyLCG returns a generator seeded from crypto/rand. Its output is
// not reproducible and it is never used on the synthetic-data path.
func NewEntropyLCG() *LCG {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("mock: reading entropy: " + err.Error())
	}
	return &LCG{state: binary.LittleEndian.Uint64(b[:]) % (lcgModulus - 1)}
}

// Next advances the generator and returns state/(m-1).
func (g *LCG) Next() float64 {
	g.state = (lcgMultiplier*g.state + lcgIncrement) % lcgModulus
	return float64(g.state) / float64(lcgModulus-1)
}

// SeedFromSymbol hashes s with the polynomial rolling hash h = h*31 + c over
// its UTF-16 code units, wrapping at 32 bits, and returns |h|. The empty
// string maps to 0.
func SeedFromSymbol(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
