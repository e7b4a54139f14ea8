package embedders

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/lexlanka/gavel/pkg/config"
	"github.com/lexlanka/gavel/pkg/faults"
)

// passageBatchSize is the batch size handed to the ONNX runtime for
// document embedding.
const passageBatchSize = 256

// modelMapping maps config model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// modelDimensions maps fastembed models to their vector widths.
var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
	fastembed.AllMiniLML6V2: 384,
}

// FastEmbed runs a local ONNX sentence encoder from the data volume.
//
// The handle is created lazily on first use: construction never fails
// when model files are absent, the provider just reports unavailable
// and Embed returns a ModelUnavailable fault so the service can start
// degraded. A single mutex serializes embedding calls; the underlying
// runtime is not safe for concurrent sessions.
type FastEmbed struct {
	modelName string
	model     fastembed.EmbeddingModel
	modelsDir string
	maxLength int
	dimension int

	mu     sync.Mutex
	handle *fastembed.FlagEmbedding
}

// NewFastEmbed builds the provider. modelsDir is the on-disk model
// root (<data>/models); the encoder files must already be present
// under it.
func NewFastEmbed(cfg *config.EmbedderConfig, modelsDir string) (*FastEmbed, error) {
	model, ok := modelMapping[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("unsupported embedder model %q", cfg.Model)
	}

	e := &FastEmbed{
		modelName: cfg.Model,
		model:     model,
		modelsDir: modelsDir,
		maxLength: cfg.MaxLength,
		dimension: modelDimensions[model],
	}

	if !e.Available() {
		slog.Warn("embedder model files not found, starting degraded",
			"model", cfg.Model, "models_dir", modelsDir)
	}

	return e, nil
}

// modelDir returns the on-disk directory holding the encoder files.
// Both the plain model basename and the fastembed cache layout
// (fast-<name>) are accepted.
func (e *FastEmbed) modelDir() (string, bool) {
	base := e.modelName
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}

	for _, candidate := range []string{
		filepath.Join(e.modelsDir, base),
		filepath.Join(e.modelsDir, "fast-"+base),
	} {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// Available reports whether the encoder files exist on disk.
func (e *FastEmbed) Available() bool {
	_, ok := e.modelDir()
	return ok
}

// Initialize eagerly materializes the model handle. Optional: the
// first Embed call does the same work. Returns a ModelUnavailable
// fault when the model files are absent.
func (e *FastEmbed) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensureHandle()
}

// ensureHandle loads the ONNX model on first use. Callers must hold
// e.mu.
func (e *FastEmbed) ensureHandle() error {
	if e.handle != nil {
		return nil
	}

	if _, ok := e.modelDir(); !ok {
		return faults.Newf(faults.ModelUnavailable, "embedder", "load",
			"model %q not found under %s", e.modelName, e.modelsDir)
	}

	showProgress := false
	handle, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                e.model,
		CacheDir:             e.modelsDir,
		MaxLength:            e.maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return faults.New(faults.ModelUnavailable, "embedder", "load",
			fmt.Sprintf("initializing %s", e.modelName), err)
	}

	e.handle = handle
	slog.Info("embedder model loaded", "model", e.modelName, "dimension", e.dimension)
	return nil
}

// Embed returns the query embedding for text.
func (e *FastEmbed) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureHandle(); err != nil {
		return nil, err
	}

	vector, err := e.handle.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vector, nil
}

// EmbedBatch returns passage embeddings for texts.
func (e *FastEmbed) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureHandle(); err != nil {
		return nil, err
	}

	vectors, err := e.handle.PassageEmbed(texts, passageBatchSize)
	if err != nil {
		return nil, fmt.Errorf("embedding batch of %d: %w", len(texts), err)
	}
	return vectors, nil
}

// Dimension returns the encoder's vector width.
func (e *FastEmbed) Dimension() int {
	return e.dimension
}

// ModelName returns the configured model identifier.
func (e *FastEmbed) ModelName() string {
	return e.modelName
}

// Loaded reports whether the model handle has been materialized.
func (e *FastEmbed) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle != nil
}

// Close releases the ONNX runtime handle.
func (e *FastEmbed) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != nil {
		e.handle.Destroy()
		e.handle = nil
	}
	return nil
}
