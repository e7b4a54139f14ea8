// Package translators normalizes non-English queries to English
// before retrieval. Translation is best-effort: a provider never fails
// a request, it degrades to returning the input text.
package translators

import (
	"context"
)

// Translator converts text between ISO-style language tags.
type Translator interface {
	// Translate returns text rendered in tgtLang. Implementations
	// never propagate provider failures: on error they log and
	// return the input unchanged. The error return exists for
	// callers that want to count degradations.
	Translate(ctx context.Context, text, srcLang, tgtLang string) (string, error)

	// Available reports whether a real translation backend is wired.
	Available() bool
}

// Identity is the no-op translator used when no backend is
// configured or the model files are missing.
type Identity struct{}

// Translate returns text unchanged.
func (Identity) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// Available reports false: identity is the degraded mode.
func (Identity) Available() bool { return false }
