package classification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

type memStore map[string]Classification

func (m memStore) Get(_ context.Context, typeName, uid string) (Classification, error) {
	c, ok := m[typeName+"/"+uid]
	if !ok {
		return nil, apperrors.ErrNoClassification
	}
	return c, nil
}

func (m memStore) Set(_ context.Context, typeName, uid string, c Classification) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m[typeName+"/"+uid] = c
	return nil
}

func (m memStore) Has(_ context.Context, typeName, uid string) (bool, error) {
	_, ok := m[typeName+"/"+uid]
	return ok, nil
}

func TestHandler(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(memStore{}).Register(mux)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/v1/classifications/svm/u1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPut, "/api/v1/classifications/svm/u1", `{"cat":0.2}`).Code)
	assert.Equal(t, http.StatusNoContent, do(http.MethodPut, "/api/v1/classifications/svm/u1", `{"cat":0.2,"dog":0.8}`).Code)

	rec := do(http.MethodGet, "/api/v1/classifications/svm/u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"labels":{"cat":0.2,"dog":0.8},"max_label":"dog","max_confidence":0.8}`, rec.Body.String())
}
