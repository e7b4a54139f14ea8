// Package embedders provides sentence embedding for dense retrieval.
// The production provider runs a local ONNX encoder from the data
// volume; nothing is downloaded at request time. Providers are shared
// process-wide and must be safe for concurrent use.
package embedders

import (
	"context"
)

// Provider produces fixed-width embedding vectors for text. The
// vector dimension must match every dense index built against the
// same encoder; the index store verifies this at load time.
type Provider interface {
	// Embed returns the embedding vector for a single query text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the width of produced vectors.
	Dimension() int

	// ModelName returns the encoder model identifier.
	ModelName() string

	// Available reports whether the underlying model can serve
	// requests. An unavailable provider starts the service degraded.
	Available() bool

	Close() error
}
