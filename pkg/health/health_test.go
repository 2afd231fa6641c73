package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/resilience"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker(50 * time.Millisecond)
	c.Register("ok", Ping(func(context.Context) error { return nil }))
	c.Register("breaker", Breaker(func() resilience.State { return resilience.StateOpen }))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "circuit open", report.Components["breaker"].Message)

	c.Register("slow", Ping(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	report = c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, StatusDown, report.Components["slow"].Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(0)
	c.Register("redis", Ping(func(context.Context) error { return errors.New("connection refused") }))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "connection refused", report.Components["redis"].Message)

	rec = httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
