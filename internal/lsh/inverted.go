package lsh

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// IDSet is a set of item keys.
type IDSet map[string]struct{}

// InvertedIndex maps hash codes to the keys sharing them. It is not safe for
// concurrent writers.
type InvertedIndex map[HashCode]IDSet

func (x InvertedIndex) Add(code HashCode, id string) {
	set, ok := x[code]
	if !ok {
		set = make(IDSet)
		x[code] = set
	}
	set[id] = struct{}{}
}

// Merge adds every membership of other into x.
func (x InvertedIndex) Merge(other InvertedIndex) {
	for code, set := range other {
		for id := range set {
			x.Add(code, id)
		}
	}
}

// Equal reports whether both indexes hold the same codes with the same sets.
func (x InvertedIndex) Equal(other InvertedIndex) bool {
	if len(x) != len(other) {
		return false
	}
	for code, set := range x {
		o, ok := other[code]
		if !ok || !maps.Equal(set, o) {
			return false
		}
	}
	return true
}

// Memberships counts (code, key) pairs.
func (x InvertedIndex) Memberships() int {
	n := 0
	for _, set := range x {
		n += len(set)
	}
	return n
}

// IDs returns the sorted keys stored under code.
func (x InvertedIndex) IDs(code HashCode) []string {
	return slices.Sorted(maps.Keys(x[code]))
}

// Bucket implements BucketReader.
func (x InvertedIndex) Bucket(_ context.Context, code HashCode) ([]string, error) {
	return x.IDs(code), nil
}

// MarshalJSON writes {"<code>": ["key", ...]} with sorted key lists.
func (x InvertedIndex) MarshalJSON() ([]byte, error) {
	out := make(map[HashCode][]string, len(x))
	for code := range x {
		out[code] = x.IDs(code)
	}
	return json.Marshal(out)
}

func (x *InvertedIndex) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idx := make(InvertedIndex, len(raw))
	for s, ids := range raw {
		code, err := ParseHashCode(s)
		if err != nil {
			return fmt.Errorf("decoding inverted index: %w", err)
		}
		set := make(IDSet, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		idx[code] = set
	}
	*x = idx
	return nil
}
