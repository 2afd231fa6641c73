// Package descriptor defines the content items fed to the batch pipeline, the
// feature vectors computed for them, and the generator and index
// capabilities the pipeline drives.
package descriptor

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"iter"
)

// Item is an input unit with a stable identifier (typically its source path)
// and raw content.
type Item struct {
	ID          string
	ContentType string
	Content     []byte
}

// Key identifies the item's content. Items with identical bytes share a key
// and therefore a vector.
func (it Item) Key() string {
	sum := sha1.Sum(it.Content)
	return hex.EncodeToString(sum[:])
}

// Vector is a computed feature representation, addressed by the content key
// of the item it was computed from.
type Vector struct {
	Key    string    `json:"key" msgpack:"key"`
	Type   string    `json:"type" msgpack:"type"`
	Values []float32 `json:"values" msgpack:"values"`
}

// Dim returns the vector's dimension.
func (v Vector) Dim() int { return len(v.Values) }

// Factory builds a Vector for a generator type and content key.
type Factory func(typ, key string, values []float32) Vector

// NewVector is the default Factory. It copies values.
func NewVector(typ, key string, values []float32) Vector {
	v := make([]float32, len(values))
	copy(v, values)
	return Vector{Key: key, Type: typ, Values: v}
}

// Request is one batch submitted to a Generator.
type Request struct {
	Items []Item
	// Factory defaults to NewVector when nil.
	Factory Factory
	// Overwrite recomputes vectors that already exist in the index.
	Overwrite bool
	// Concurrency bounds the generator's internal parallelism. Zero selects
	// the generator default.
	Concurrency int
}

func (r Request) factory() Factory {
	if r.Factory == nil {
		return NewVector
	}
	return r.Factory
}

// Generator computes vectors for a batch of items. The returned map is keyed
// by Item.Key and holds an entry for every distinct key in the request.
// Failures wrap errors.ErrGeneration.
type Generator interface {
	Name() string
	ComputeBatch(ctx context.Context, req Request) (map[string]Vector, error)
}

// Index stores vectors by content key. Get returns an error wrapping
// errors.ErrNotFound for unknown keys.
type Index interface {
	AddMany(ctx context.Context, vectors []Vector) error
	Get(ctx context.Context, key string) (Vector, error)
	Has(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) iter.Seq2[string, error]
	Len(ctx context.Context) (int, error)
	Close() error
}
