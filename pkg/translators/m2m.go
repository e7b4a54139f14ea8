package translators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lexlanka/gavel/pkg/config"
	"github.com/lexlanka/gavel/pkg/httpclient"
)

// M2M talks to a local many-to-many translation sidecar over HTTP.
// The sidecar owns the model; this client only checks that the model
// files are present so a missing download is reported at startup
// rather than on the first query.
type M2M struct {
	endpoint string
	model    string
	timeout  time.Duration
	client   *httpclient.Client

	available bool
	mu        sync.Mutex
}

// NewM2M builds the sidecar client. An empty endpoint or a missing
// model directory leaves the provider unavailable; callers should fall
// back to Identity.
func NewM2M(cfg *config.TranslatorConfig, modelsDir string) *M2M {
	m := &M2M{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		client: httpclient.New(
			httpclient.WithMaxRetries(1),
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		),
	}

	if m.endpoint == "" {
		return m
	}
	if modelsDir != "" {
		if info, err := os.Stat(filepath.Join(modelsDir, cfg.Model)); err != nil || !info.IsDir() {
			slog.Warn("translation model files missing, translator disabled",
				"model", cfg.Model, "dir", modelsDir)
			return m
		}
	}

	m.available = true
	return m
}

// Available reports whether the sidecar is configured and its model
// files were found.
func (m *M2M) Available() bool {
	return m.available
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	Translation string `json:"translation"`
}

// Translate sends text to the sidecar. Any failure logs a degradation
// notice and returns the input text; the error reports what went wrong
// but callers may ignore it.
func (m *M2M) Translate(ctx context.Context, text, srcLang, tgtLang string) (string, error) {
	if !m.available || strings.TrimSpace(text) == "" || srcLang == tgtLang {
		return text, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	translated, err := m.call(ctx, text, srcLang, tgtLang)
	if err != nil {
		slog.Warn("translation failed, using original text",
			"source", srcLang, "target", tgtLang, "error", err)
		return text, err
	}
	return translated, nil
}

func (m *M2M) call(ctx context.Context, text, srcLang, tgtLang string) (string, error) {
	body, err := json.Marshal(translateRequest{Text: text, Source: srcLang, Target: tgtLang})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.endpoint+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding sidecar response: %w", err)
	}
	if parsed.Translation == "" {
		return "", fmt.Errorf("sidecar returned empty translation")
	}
	return parsed.Translation, nil
}
