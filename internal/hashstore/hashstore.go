// Package hashstore persists inverted hash indexes. Both stores keep the
// code to key-set shape exactly so a reloaded index can be extended by
// further hashing runs.
package hashstore

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/lsh"
)

// Store loads and saves an inverted index.
type Store interface {
	Load(ctx context.Context) (lsh.InvertedIndex, error)
	Save(ctx context.Context, idx lsh.InvertedIndex) error
}
