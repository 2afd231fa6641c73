package lsh

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/vectorindex"
)

const benchDim = 256

func benchIndex(b *testing.B, n int) (*vectorindex.Memory, []string) {
	b.Helper()
	idx := vectorindex.NewMemory()
	keys := make([]string, n)
	vecs := make([]descriptor.Vector, n)
	for i := range n {
		keys[i] = fmt.Sprintf("key-%06d", i)
		values := make([]float32, benchDim)
		for j := range values {
			values[j] = float32((i*31+j*17)%101) - 50
		}
		vecs[i] = descriptor.Vector{Key: keys[i], Type: "bench", Values: values}
	}
	if err := idx.AddMany(context.Background(), vecs); err != nil {
		b.Fatal(err)
	}
	return idx, keys
}

// BenchmarkRandomProjectionHash measures one 64-bit hash of a 256-d vector.
func BenchmarkRandomProjectionHash(b *testing.B) {
	f, err := NewRandomProjection(benchDim, 64, 1)
	if err != nil {
		b.Fatal(err)
	}
	values := make([]float32, benchDim)
	for i := range values {
		values[i] = float32(i%7) - 3
	}
	b.ReportAllocs()
	for b.Loop() {
		if _, err := f.Hash(values); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkComputeHashCodes measures a full run over 2 000 vectors for a
// few worker counts.
func BenchmarkComputeHashCodes(b *testing.B) {
	idx, keys := benchIndex(b, 2000)
	f, err := NewRandomProjection(benchDim, 64, 1)
	if err != nil {
		b.Fatal(err)
	}
	for _, workers := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			opts := Options{Workers: workers}
			b.ReportAllocs()
			for b.Loop() {
				if _, err := ComputeHashCodes(context.Background(), slices.Values(keys), idx, f, nil, opts); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
