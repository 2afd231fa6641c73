package classification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/postgres"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Classification
		ok   bool
	}{
		{"empty", Classification{}, false},
		{"sums to one", Classification{"cat": 0.7, "dog": 0.3}, true},
		{"float noise", Classification{"a": 0.1, "b": 0.2, "c": 0.7000000000001}, true},
		{"short", Classification{"cat": 0.5, "dog": 0.4}, false},
		{"negative", Classification{"cat": 1.5, "dog": -0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			}
		})
	}
}

func TestLabelsOrder(t *testing.T) {
	c := Classification{"b": 0.25, "a": 0.25, "z": 0.5}
	assert.Equal(t, []string{"z", "a", "b"}, c.Labels())
	label, conf := c.Max()
	assert.Equal(t, "z", label)
	assert.Equal(t, 0.5, conf)
}

func TestPostgresStore(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	defer db.Close()
	require.NoError(t, db.EnsureSchema(ctx, Schema))

	store := NewPostgresStore(db)
	uid := uuid.NewString()

	_, err = store.Get(ctx, "test", uid)
	assert.ErrorIs(t, err, apperrors.ErrNoClassification)
	has, err := store.Has(ctx, "test", uid)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.Set(ctx, "test", uid, Classification{"cat": 1}))
	require.NoError(t, store.Set(ctx, "test", uid, Classification{"cat": 0.4, "dog": 0.6}))
	got, err := store.Get(ctx, "test", uid)
	require.NoError(t, err)
	assert.Equal(t, Classification{"cat": 0.4, "dog": 0.6}, got)

	assert.ErrorIs(t, store.Set(ctx, "test", uid, Classification{"cat": 0.4}), apperrors.ErrInvalidInput)
}
