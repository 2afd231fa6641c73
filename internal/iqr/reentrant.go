package iqr

import (
	"context"
	"sync"
)

// ReentrantMutex is a mutex that the holder may acquire again without
// deadlocking. Ownership travels with the context returned by Lock: any
// call made with that context (or one derived from it) re-enters instead of
// blocking. Each acquisition returns its own release function, and the
// mutex is freed when every release has been called.
type ReentrantMutex struct {
	sem   chan struct{}
	mu    sync.Mutex
	owner *lockToken
	depth int
}

type lockToken struct{}

type ownerKey struct{ m *ReentrantMutex }

func NewReentrantMutex() *ReentrantMutex {
	return &ReentrantMutex{sem: make(chan struct{}, 1)}
}

// Lock acquires m, blocking unless ctx already owns it. The returned context
// carries ownership; release is idempotent and must be called exactly once
// per Lock, typically deferred. The returned context, and any context
// derived from it, must stay on the calling goroutine: a goroutine handed it
// enters the critical section alongside the owner.
func (m *ReentrantMutex) Lock(ctx context.Context) (context.Context, func()) {
	if tok, ok := ctx.Value(ownerKey{m}).(*lockToken); ok {
		m.mu.Lock()
		if m.owner == tok {
			m.depth++
			m.mu.Unlock()
			return ctx, m.releaser(tok)
		}
		m.mu.Unlock()
	}

	m.sem <- struct{}{}
	tok := &lockToken{}
	m.mu.Lock()
	m.owner = tok
	m.depth = 1
	m.mu.Unlock()
	return context.WithValue(ctx, ownerKey{m}, tok), m.releaser(tok)
}

// Held reports whether ctx currently owns m.
func (m *ReentrantMutex) Held(ctx context.Context) bool {
	tok, ok := ctx.Value(ownerKey{m}).(*lockToken)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner == tok
}

func (m *ReentrantMutex) releaser(tok *lockToken) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.owner != tok {
				m.mu.Unlock()
				panic("iqr: releasing a reentrant mutex that this context does not hold")
			}
			m.depth--
			if m.depth > 0 {
				m.mu.Unlock()
				return
			}
			m.owner = nil
			m.mu.Unlock()
			<-m.sem
		})
	}
}
