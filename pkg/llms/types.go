// Package llms abstracts text generation behind a provider-neutral
// contract. Two backends ship: the native Gemini client and a generic
// OpenAI-compatible chat/completions endpoint.
//
// Failure policy: a provider that cannot produce usable text returns
// the fixed fallback string together with a classified error. Callers
// log the error and surface only the fixed text; raw provider errors
// never reach users.
package llms

import (
	"context"
)

// Fallback is the user-facing text returned whenever generation
// fails. It is returned alongside the error so callers never have to
// invent copy at the failure site.
const Fallback = "Sorry, something went wrong. Please try again later."

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Stage temperatures. Each pipeline stage runs at a fixed, tuned
// temperature.
const (
	TemperatureQA        = 0.3
	TemperatureRecommend = 0.5
	TemperatureSummary   = 0.2
)

// DefaultMaxTokens caps a response when the caller does not.
const DefaultMaxTokens = 512

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	// Temperature in [0,1]. Nil selects TemperatureQA.
	Temperature *float64

	// MaxTokens caps the response length. Zero selects
	// DefaultMaxTokens.
	MaxTokens int
}

// Temp returns a pointer to v, for building GenerateOptions literals.
func Temp(v float64) *float64 { return &v }

// normalize fills defaults into opts, never mutating the input.
func normalize(opts *GenerateOptions) GenerateOptions {
	out := GenerateOptions{Temperature: Temp(TemperatureQA), MaxTokens: DefaultMaxTokens}
	if opts != nil {
		if opts.Temperature != nil {
			out.Temperature = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			out.MaxTokens = opts.MaxTokens
		}
	}
	return out
}

// Provider generates text.
type Provider interface {
	// Generate runs a single-shot completion from one prompt.
	Generate(ctx context.Context, prompt string, opts *GenerateOptions) (string, error)

	// Chat runs a multi-turn conversation. System messages may appear
	// anywhere in the slice; providers hoist them as needed.
	Chat(ctx context.Context, messages []Message, opts *GenerateOptions) (string, error)

	// ModelName returns the configured model identifier.
	ModelName() string

	// Close releases provider resources.
	Close() error
}
