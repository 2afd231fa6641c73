// Package classification persists per-item label confidences produced by
// classifiers. A classification maps label to confidence; confidences sum to
// one.
package classification

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/postgres"
)

// Classification maps a label to its confidence.
type Classification map[string]float64

// Labels returns the labels ordered by descending confidence, ties by name.
func (c Classification) Labels() []string {
	labels := make([]string, 0, len(c))
	for l := range c {
		labels = append(labels, l)
	}
	slices.SortFunc(labels, func(a, b string) int {
		if n := cmp.Compare(c[b], c[a]); n != 0 {
			return n
		}
		return cmp.Compare(a, b)
	})
	return labels
}

// Max returns the most confident label.
func (c Classification) Max() (string, float64) {
	labels := c.Labels()
	if len(labels) == 0 {
		return "", 0
	}
	return labels[0], c[labels[0]]
}

// Validate checks the classification is non-empty and sums to one once
// rounded to nine decimal places.
func (c Classification) Validate() error {
	if len(c) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "classification has no labels")
	}
	var sum float64
	for label, conf := range c {
		if conf < 0 || math.IsNaN(conf) {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "label %q has invalid confidence %v", label, conf)
		}
		sum += conf
	}
	if math.Round(sum*1e9)/1e9 != 1 {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "confidences sum to %v, not 1", sum)
	}
	return nil
}

// Store persists classifications keyed by (type name, item uid).
type Store interface {
	Get(ctx context.Context, typeName, uid string) (Classification, error)
	Set(ctx context.Context, typeName, uid string, c Classification) error
	Has(ctx context.Context, typeName, uid string) (bool, error)
}

// Schema creates the table PostgresStore reads and writes.
const Schema = `CREATE TABLE IF NOT EXISTS classifications (
    type_name  TEXT NOT NULL,
    uid        TEXT NOT NULL,
    labels     JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (type_name, uid)
)`

type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "classification-store"),
	}
}

// Get returns ErrNoClassification when nothing is stored for the item.
func (s *PostgresStore) Get(ctx context.Context, typeName, uid string) (Classification, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT labels FROM classifications WHERE type_name = $1 AND uid = $2`,
		typeName, uid,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNoClassification, http.StatusNotFound, "no %s classification for %s", typeName, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("querying classification: %w", err)
	}
	var c Classification
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding classification for %s: %w", uid, err)
	}
	return c, nil
}

// Set upserts the classification after validating it.
func (s *PostgresStore) Set(ctx context.Context, typeName, uid string, c Classification) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding classification: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO classifications (type_name, uid, labels, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (type_name, uid) DO UPDATE SET labels = EXCLUDED.labels, updated_at = NOW()`,
		typeName, uid, data,
	)
	if err != nil {
		return fmt.Errorf("saving classification: %w", err)
	}
	label, conf := c.Max()
	s.logger.Debug("classification saved", "type", typeName, "uid", uid, "top_label", label, "confidence", conf)
	return nil
}

func (s *PostgresStore) Has(ctx context.Context, typeName, uid string) (bool, error) {
	var exists bool
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM classifications WHERE type_name = $1 AND uid = $2)`,
		typeName, uid,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking classification: %w", err)
	}
	return exists, nil
}
