// Package iqr manages interactive query refinement sessions: a
// process-wide Controller that registers and tears down sessions safely
// under concurrency, the Session state itself, and its HTTP surface.
package iqr

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
)

// Controller is the only authority over the binding of session IDs to
// sessions. One reentrant mutex guards the registry. When a session's own
// lock is needed alongside it, the controller lock is always taken first.
type Controller[S sync.Locker] struct {
	mu       *ReentrantMutex
	sessions map[string]S
	cfg      controllerConfig
}

type controllerConfig struct {
	newID   func() string
	metrics *metrics.Metrics
}

type ControllerOption func(*controllerConfig)

// WithIDGenerator replaces the UUID generator used when AddSession gets no ID.
func WithIDGenerator(fn func() string) ControllerOption {
	return func(c *controllerConfig) { c.newID = fn }
}

func WithControllerMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *controllerConfig) { c.metrics = m }
}

func NewController[S sync.Locker](opts ...ControllerOption) *Controller[S] {
	cfg := controllerConfig{
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller[S]{
		mu:       NewReentrantMutex(),
		sessions: make(map[string]S),
		cfg:      cfg,
	}
}

// Lock acquires the controller lock for a group of operations. Calls made
// with the returned context re-enter the lock. Defer release. Do not pass
// the returned context, or one derived from it, to another goroutine.
func (c *Controller[S]) Lock(ctx context.Context) (context.Context, func()) {
	return c.mu.Lock(ctx)
}

// SessionIDs returns a snapshot of the registered IDs in no particular order.
func (c *Controller[S]) SessionIDs(ctx context.Context) []string {
	_, release := c.mu.Lock(ctx)
	defer release()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (c *Controller[S]) HasSession(ctx context.Context, id string) bool {
	_, release := c.mu.Lock(ctx)
	defer release()
	_, ok := c.sessions[id]
	return ok
}

// AddSession registers s under id, or under a freshly generated ID when id
// is empty, and returns the ID used. An explicit ID that is already taken
// fails with ErrDuplicateSessionID and leaves the registry unchanged.
func (c *Controller[S]) AddSession(ctx context.Context, s S, id string) (string, error) {
	_, release := c.mu.Lock(ctx)
	defer release()

	if id == "" {
		id = c.cfg.newID()
		if _, taken := c.sessions[id]; taken {
			c.observe("add", "invariant_violation")
			return "", fmt.Errorf("%w: generated session id %s collides with a registered session",
				apperrors.ErrInvariantViolation, id)
		}
	} else if _, taken := c.sessions[id]; taken {
		c.observe("add", "duplicate")
		return "", fmt.Errorf("%w: %s", apperrors.ErrDuplicateSessionID, id)
	}

	c.sessions[id] = s
	c.observe("add", "ok")
	c.setActive()
	logger.FromContext(ctx).Debug("session registered", "component", "iqr-controller", "session_id", id, "active", len(c.sessions))
	return id, nil
}

func (c *Controller[S]) GetSession(ctx context.Context, id string) (S, error) {
	_, release := c.mu.Lock(ctx)
	defer release()
	s, ok := c.sessions[id]
	if !ok {
		c.observe("get", "not_found")
		var zero S
		return zero, fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, id)
	}
	c.observe("get", "ok")
	return s, nil
}

// RemoveSession unregisters id and hands the session back to the caller.
// The session's own lock is acquired, while the controller lock is held,
// before the binding is deleted, so removal waits for any operation in
// progress on that session.
func (c *Controller[S]) RemoveSession(ctx context.Context, id string) (S, error) {
	_, release := c.mu.Lock(ctx)
	defer release()

	s, ok := c.sessions[id]
	if !ok {
		c.observe("remove", "not_found")
		var zero S
		return zero, fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, id)
	}

	s.Lock()
	delete(c.sessions, id)
	s.Unlock()

	c.observe("remove", "ok")
	c.setActive()
	logger.FromContext(ctx).Debug("session removed", "component", "iqr-controller", "session_id", id, "active", len(c.sessions))
	return s, nil
}

// Len returns the number of registered sessions.
func (c *Controller[S]) Len(ctx context.Context) int {
	_, release := c.mu.Lock(ctx)
	defer release()
	return len(c.sessions)
}

func (c *Controller[S]) observe(op, result string) {
	if c.cfg.metrics != nil {
		c.cfg.metrics.SessionOperationsTotal.WithLabelValues(op, result).Inc()
	}
}

func (c *Controller[S]) setActive() {
	if c.cfg.metrics != nil {
		c.cfg.metrics.SessionsActive.Set(float64(len(c.sessions)))
	}
}
