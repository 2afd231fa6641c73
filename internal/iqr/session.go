package iqr

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

// Refiner proposes candidate keys for a set of positive examples.
type Refiner interface {
	Candidates(ctx context.Context, examples []string, exclude map[string]struct{}) ([]string, error)
}

// Session holds the adjudications and latest results of one interactive
// query. Its methods lock the session themselves; Lock and Unlock exist so
// the Controller can wait for in-flight work before removing it.
type Session struct {
	mu        sync.Mutex
	refiner   Refiner
	created   time.Time
	updated   time.Time
	positives map[string]struct{}
	negatives map[string]struct{}
	results   []string
	refines   int
}

func NewSession(refiner Refiner) *Session {
	now := time.Now().UTC()
	return &Session{
		refiner:   refiner,
		created:   now,
		updated:   now,
		positives: make(map[string]struct{}),
		negatives: make(map[string]struct{}),
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Adjudicate marks keys as positive or negative examples. A key moves
// between the sets when re-adjudicated; a key listed as both is rejected.
func (s *Session) Adjudicate(positive, negative []string) error {
	return s.Update(positive, negative, nil)
}

// Update unmarks keys and then adjudicates positive and negative under one
// lock. A rejected update leaves the session unchanged.
func (s *Session) Update(positive, negative, unmark []string) error {
	for _, p := range positive {
		if slices.Contains(negative, p) {
			return fmt.Errorf("%w: %s adjudicated both positive and negative", apperrors.ErrInvalidInput, p)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range unmark {
		delete(s.positives, k)
		delete(s.negatives, k)
	}
	for _, p := range positive {
		delete(s.negatives, p)
		s.positives[p] = struct{}{}
	}
	for _, n := range negative {
		delete(s.positives, n)
		s.negatives[n] = struct{}{}
	}
	s.updated = time.Now().UTC()
	return nil
}

// Unmark removes keys from both adjudication sets.
func (s *Session) Unmark(keys ...string) {
	_ = s.Update(nil, nil, keys)
}

// Refine replaces the session results with candidates drawn from the
// positive examples, excluding every adjudicated key. The session stays
// locked for the whole refinement.
func (s *Session) Refine(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.positives) == 0 {
		return nil, fmt.Errorf("%w: refinement needs at least one positive example", apperrors.ErrInvalidInput)
	}
	if s.refiner == nil {
		return nil, fmt.Errorf("%w: session has no refiner", apperrors.ErrInternal)
	}

	exclude := make(map[string]struct{}, len(s.positives)+len(s.negatives))
	maps.Copy(exclude, s.positives)
	maps.Copy(exclude, s.negatives)

	results, err := s.refiner.Candidates(ctx, sortedKeys(s.positives), exclude)
	if err != nil {
		return nil, fmt.Errorf("refining session: %w", err)
	}
	s.results = results
	s.refines++
	s.updated = time.Now().UTC()
	return slices.Clone(results), nil
}

// Reset clears adjudications and results.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.positives)
	clear(s.negatives)
	s.results = nil
	s.refines = 0
	s.updated = time.Now().UTC()
}

// State is a point-in-time copy of a session.
type State struct {
	Positive  []string  `json:"positive"`
	Negative  []string  `json:"negative"`
	Results   []string  `json:"results"`
	Refines   int       `json:"refines"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := slices.Clone(s.results)
	if results == nil {
		results = []string{}
	}
	return State{
		Positive:  sortedKeys(s.positives),
		Negative:  sortedKeys(s.negatives),
		Results:   results,
		Refines:   s.refines,
		CreatedAt: s.created,
		UpdatedAt: s.updated,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
