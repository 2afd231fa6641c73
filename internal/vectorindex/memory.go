// Package vectorindex provides descriptor.Index implementations: an
// in-process map and a persistent BadgerDB store.
package vectorindex

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

type Memory struct {
	mu      sync.RWMutex
	vectors map[string]descriptor.Vector
}

func NewMemory() *Memory {
	return &Memory{vectors: make(map[string]descriptor.Vector)}
}

func (m *Memory) AddMany(_ context.Context, vectors []descriptor.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		if v.Key == "" {
			return fmt.Errorf("%w: vector without key", apperrors.ErrInvalidInput)
		}
		m.vectors[v.Key] = v
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (descriptor.Vector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vectors[key]
	if !ok {
		return descriptor.Vector{}, fmt.Errorf("vector %s: %w", key, apperrors.ErrNotFound)
	}
	return v, nil
}

func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vectors[key]
	return ok, nil
}

// Keys yields a sorted snapshot of the stored keys.
func (m *Memory) Keys(_ context.Context) iter.Seq2[string, error] {
	m.mu.RLock()
	keys := make([]string, 0, len(m.vectors))
	for k := range m.vectors {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	slices.Sort(keys)

	return func(yield func(string, error) bool) {
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors), nil
}

func (m *Memory) Close() error { return nil }
