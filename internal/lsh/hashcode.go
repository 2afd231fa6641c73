// Package lsh builds the inverted hash index used for approximate
// nearest-neighbour retrieval: vectors are hashed to bit vectors, each bit
// vector is read as a non-negative integer, and item keys are grouped by
// that integer.
package lsh

import (
	"fmt"
	"math/big"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

// HashCode is the canonical base-10 text of a non-negative integer. Codes
// of any bit length compare and serialise without loss.
type HashCode string

// BitsToHashCode reads bits most-significant first: bits[0] is the highest
// bit of the result. An empty slice yields "0".
func BitsToHashCode(bits []bool) HashCode {
	x := new(big.Int)
	for _, b := range bits {
		x.Lsh(x, 1)
		if b {
			x.SetBit(x, 0, 1)
		}
	}
	return HashCode(x.String())
}

// HashCodeOf converts the output of a functor that declares bitLength bits.
func HashCodeOf(bits []bool, bitLength int) (HashCode, error) {
	if len(bits) != bitLength {
		return "", fmt.Errorf("%w: got %d bits, functor declares %d", apperrors.ErrInvalidHash, len(bits), bitLength)
	}
	return BitsToHashCode(bits), nil
}

// ParseHashCode validates s as a canonical non-negative decimal integer.
func ParseHashCode(s string) (HashCode, error) {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok || x.Sign() < 0 || x.String() != s {
		return "", fmt.Errorf("%w: %q is not a canonical non-negative integer", apperrors.ErrInvalidHash, s)
	}
	return HashCode(s), nil
}

// Int returns the code's integer value.
func (c HashCode) Int() *big.Int {
	x, ok := new(big.Int).SetString(string(c), 10)
	if !ok {
		return new(big.Int)
	}
	return x
}

// Bits expands the code back to n bits, most-significant first.
func (c HashCode) Bits(n int) []bool {
	x := c.Int()
	bits := make([]bool, n)
	for i := range n {
		bits[n-1-i] = x.Bit(i) == 1
	}
	return bits
}

// Neighbors returns code followed by every code of the same bit length
// within Hamming distance radius of it.
func Neighbors(code HashCode, bitLength, radius int) []HashCode {
	out := []HashCode{code}
	if radius <= 0 || bitLength <= 0 {
		return out
	}
	bits := code.Bits(bitLength)
	var flip func(start, left int)
	flip = func(start, left int) {
		for i := start; i < bitLength; i++ {
			bits[i] = !bits[i]
			out = append(out, BitsToHashCode(bits))
			if left > 1 {
				flip(i+1, left-1)
			}
			bits[i] = !bits[i]
		}
	}
	flip(0, min(radius, bitLength))
	return out
}
