package lsh

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// BucketReader returns the keys stored under a hash code.
type BucketReader interface {
	Bucket(ctx context.Context, code HashCode) ([]string, error)
}

// Searcher finds candidate neighbours of example vectors by hashing them
// and collecting the keys that share their buckets.
type Searcher struct {
	lookup  VectorLookup
	functor Functor
	buckets BucketReader
	radius  int
}

type SearcherOption func(*Searcher)

// WithProbeRadius also reads the buckets whose codes are within radius bits
// of each example's code.
func WithProbeRadius(radius int) SearcherOption {
	return func(s *Searcher) { s.radius = max(radius, 0) }
}

func NewSearcher(lookup VectorLookup, functor Functor, buckets BucketReader, opts ...SearcherOption) *Searcher {
	s := &Searcher{lookup: lookup, functor: functor, buckets: buckets}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Code returns the hash code of the vector stored under key.
func (s *Searcher) Code(ctx context.Context, key string) (HashCode, error) {
	return hashOne(ctx, s.lookup, s.functor, key)
}

// Candidates returns the sorted union of the buckets probed for every key in
// examples, minus the keys in exclude.
func (s *Searcher) Candidates(ctx context.Context, examples []string, exclude map[string]struct{}) ([]string, error) {
	seen := make(map[HashCode]struct{}, len(examples))
	out := make(map[string]struct{})
	for _, key := range examples {
		code, err := s.Code(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, probe := range Neighbors(code, s.functor.BitLength(), s.radius) {
			if _, done := seen[probe]; done {
				continue
			}
			seen[probe] = struct{}{}

			ids, err := s.buckets.Bucket(ctx, probe)
			if err != nil {
				return nil, fmt.Errorf("reading bucket %s: %w", probe, err)
			}
			for _, id := range ids {
				if _, skip := exclude[id]; !skip {
					out[id] = struct{}{}
				}
			}
		}
	}
	return slices.Sorted(maps.Keys(out)), nil
}
