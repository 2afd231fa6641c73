package lsh

import (
	"fmt"
	"math/rand/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

// Functor hashes a vector to a fixed-length bit vector. Hash must be
// deterministic and safe for concurrent use.
type Functor interface {
	BitLength() int
	Hash(values []float32) ([]bool, error)
}

// RandomProjection hashes by the sign of the vector's projection onto
// seeded Gaussian hyperplanes. Two functors with the same parameters produce
// identical codes.
type RandomProjection struct {
	dim    int
	planes [][]float64
}

func NewRandomProjection(dim, bits int, seed int64) (*RandomProjection, error) {
	if dim <= 0 || bits <= 0 {
		return nil, fmt.Errorf("%w: random projection needs positive dim and bits, got %d and %d",
			apperrors.ErrInvalidInput, dim, bits)
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	planes := make([][]float64, bits)
	for i := range planes {
		p := make([]float64, dim)
		for j := range p {
			p[j] = rng.NormFloat64()
		}
		planes[i] = p
	}
	return &RandomProjection{dim: dim, planes: planes}, nil
}

func (r *RandomProjection) BitLength() int { return len(r.planes) }

func (r *RandomProjection) Hash(values []float32) ([]bool, error) {
	if len(values) != r.dim {
		return nil, fmt.Errorf("%w: vector has dimension %d, functor expects %d", apperrors.ErrInvalidInput, len(values), r.dim)
	}
	bits := make([]bool, len(r.planes))
	for i, p := range r.planes {
		var dot float64
		for j, v := range values {
			dot += p[j] * float64(v)
		}
		bits[i] = dot > 0
	}
	return bits, nil
}
