package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.InMemory = true
	cfg.Hashing.Dimension = 3
	cfg.Hashing.Bits = 8
	return cfg
}

func TestHashOptionsIsolatedWorkersShareLookup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hashing.UseMultiprocess = true
	idx, err := OpenVectorIndex(cfg)
	require.NoError(t, err)
	defer idx.Close()

	opts := HashOptions(cfg, idx, nil)
	require.NotNil(t, opts.WorkerInit)
	lookup, f, err := opts.WorkerInit(context.Background())
	require.NoError(t, err)
	assert.Same(t, idx, lookup)
	assert.Equal(t, 8, f.BitLength())

	cfg.Hashing.UseMultiprocess = false
	assert.Nil(t, HashOptions(cfg, idx, nil).WorkerInit)
}

func TestNewGeneratorRejectsUnknownKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.Kind = "bogus"
	_, _, err := NewGenerator(cfg, nil, nil)
	assert.Error(t, err)

	cfg.Generator.Kind = "openai"
	cfg.Generator.APIKey = "sk-test"
	gen, closer, err := NewGenerator(cfg, (descriptor.Index)(nil), nil)
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, "openai-text-embedding-3-small", gen.Name())
}
