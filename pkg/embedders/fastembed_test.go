package embedders

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexlanka/gavel/pkg/config"
	"github.com/lexlanka/gavel/pkg/faults"
)

func testConfig() *config.EmbedderConfig {
	cfg := &config.EmbedderConfig{}
	cfg.SetDefaults()
	return cfg
}

func TestNewFastEmbedUnsupportedModel(t *testing.T) {
	cfg := testConfig()
	cfg.Model = "no-such/encoder"

	_, err := NewFastEmbed(cfg, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported embedder model")
}

func TestFastEmbedUnavailableWhenModelMissing(t *testing.T) {
	e, err := NewFastEmbed(testConfig(), t.TempDir())
	require.NoError(t, err)

	assert.False(t, e.Available())
	assert.False(t, e.Loaded())

	_, err = e.Embed(context.Background(), "budget deadline")
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.ModelUnavailable))

	err = e.Initialize()
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.ModelUnavailable))
}

func TestFastEmbedModelDirCandidates(t *testing.T) {
	tests := []struct {
		name string
		dir  string
	}{
		{"plain basename", "bge-small-en-v1.5"},
		{"fastembed cache layout", "fast-bge-small-en-v1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modelsDir := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(modelsDir, tt.dir), 0o755))

			e, err := NewFastEmbed(testConfig(), modelsDir)
			require.NoError(t, err)
			assert.True(t, e.Available())
		})
	}
}

func TestFastEmbedMetadata(t *testing.T) {
	e, err := NewFastEmbed(testConfig(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "BAAI/bge-small-en-v1.5", e.ModelName())
	assert.Equal(t, 384, e.Dimension())
}

func TestFastEmbedEmbedBatchEmpty(t *testing.T) {
	e, err := NewFastEmbed(testConfig(), t.TempDir())
	require.NoError(t, err)

	vectors, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestFastEmbedCancelledContext(t *testing.T) {
	e, err := NewFastEmbed(testConfig(), t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Embed(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}
