package iqr

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

// staticRefiner returns fixed candidates minus the excluded keys.
type staticRefiner struct {
	pool []string
	seen [][]string
}

func (r *staticRefiner) Candidates(_ context.Context, examples []string, exclude map[string]struct{}) ([]string, error) {
	r.seen = append(r.seen, examples)
	var out []string
	for _, k := range r.pool {
		if _, skip := exclude[k]; !skip {
			out = append(out, k)
		}
	}
	return out, nil
}

func TestSessionAdjudicateAndRefine(t *testing.T) {
	refiner := &staticRefiner{pool: []string{"a", "b", "c", "d"}}
	s := NewSession(refiner)

	_, err := s.Refine(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.NoError(t, s.Adjudicate([]string{"a"}, []string{"b"}))
	require.NoError(t, s.Adjudicate([]string{"b"}, nil))
	assert.Error(t, s.Adjudicate([]string{"x"}, []string{"x"}))

	results, err := s.Refine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, results)
	assert.Equal(t, [][]string{{"a", "b"}}, refiner.seen)

	st := s.State()
	assert.Equal(t, []string{"a", "b"}, st.Positive)
	assert.Empty(t, st.Negative)
	assert.Equal(t, 1, st.Refines)

	s.Unmark("a")
	s.Reset()
	st = s.State()
	assert.Empty(t, st.Positive)
	assert.Equal(t, []string{}, st.Results)
}

func newTestServer(t *testing.T) (*httptest.Server, *Controller[*Session]) {
	t.Helper()
	c := NewController[*Session]()
	h := NewHandler(c, func() Refiner { return &staticRefiner{pool: []string{"k1", "k2", "k3"}} })
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, c
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHandlerSessionFlow(t *testing.T) {
	srv, c := newTestServer(t)
	base := srv.URL + "/api/v1/sessions"

	resp, out := doJSON(t, http.MethodPost, base, map[string]string{"id": "s1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "s1", out["id"])

	resp, _ = doJSON(t, http.MethodPost, base, map[string]string{"id": "s1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, out = doJSON(t, http.MethodPost, base, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	generated := out["id"].(string)
	assert.NotEmpty(t, generated)

	resp, out = doJSON(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), out["count"])

	resp, _ = doJSON(t, http.MethodPost, base+"/s1/refine", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out = doJSON(t, http.MethodPost, base+"/s1/adjudications", map[string][]string{
		"positive": {"k1"},
		"negative": {"k3"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"k1"}, out["positive"])

	resp, out = doJSON(t, http.MethodPost, base+"/s1/refine", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"k2"}, out["results"])

	resp, out = doJSON(t, http.MethodGet, base+"/s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), out["refines"])

	resp, _ = doJSON(t, http.MethodDelete, base+"/s1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, c.HasSession(context.Background(), "s1"))

	resp, out = doJSON(t, http.MethodGet, base+"/s1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, out["error"], "session not found")

	resp, _ = doJSON(t, http.MethodDelete, base+"/s1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionRejectedUpdateLeavesStateUnchanged(t *testing.T) {
	s := NewSession(nil)
	require.NoError(t, s.Adjudicate([]string{"a"}, []string{"b"}))

	err := s.Update([]string{"x"}, []string{"x"}, []string{"a", "b"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	st := s.State()
	assert.Equal(t, []string{"a"}, st.Positive)
	assert.Equal(t, []string{"b"}, st.Negative)

	require.NoError(t, s.Update([]string{"c"}, nil, []string{"a"}))
	st = s.State()
	assert.Equal(t, []string{"c"}, st.Positive)
	assert.Equal(t, []string{"b"}, st.Negative)
}

func TestHandlerConflictingAdjudicationKeepsSession(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/sessions"

	resp, _ := doJSON(t, http.MethodPost, base, map[string]string{"id": "s1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, base+"/s1/adjudications", map[string][]string{
		"positive": {"k1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/s1/adjudications", map[string][]string{
		"positive": {"k2"},
		"negative": {"k2"},
		"unmark":   {"k1"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out := doJSON(t, http.MethodGet, base+"/s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"k1"}, out["positive"])
}
