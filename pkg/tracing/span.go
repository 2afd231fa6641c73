// Package tracing provides a lightweight span tree that propagates through
// Go contexts. Finished trees are logged via slog.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// Span is a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Err       error

	mu       sync.Mutex
	children []*Span
	attrs    []any
}

// StartSpan creates a root span. An empty traceID is replaced by a new UUID.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	span := &Span{Name: name, TraceID: traceID, StartTime: time.Now()}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan creates a span under the one carried by ctx, or a new root
// span when ctx carries none.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name, "")
	}
	child := &Span{Name: name, TraceID: parent.TraceID, StartTime: time.Now()}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

// StartDetachedSpan creates a span that shares the trace of the span carried
// by ctx without being recorded as its child. Long-running loops use it for
// per-iteration spans and log each one when it ends.
func StartDetachedSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name, "")
	}
	span := &Span{Name: name, TraceID: parent.TraceID, StartTime: time.Now()}
	span.attrs = []any{"parent", parent.Name}
	return context.WithValue(ctx, contextKey{}, span), span
}

// End records the span's duration and the error, if any, it finished with.
func (s *Span) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duration = time.Since(s.StartTime)
	s.Err = err
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Children returns a copy of the span's direct children.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// Log writes the span tree to l at debug level.
func (s *Span) Log(ctx context.Context, l *slog.Logger) {
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.log(ctx, l, 0)
}

func (s *Span) log(ctx context.Context, l *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := append([]any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}, s.attrs...)
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	l.DebugContext(ctx, "span", attrs...)
	for _, child := range children {
		child.log(ctx, l, depth+1)
	}
}
