package llms

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/lexlanka/gavel/pkg/config"
	"github.com/lexlanka/gavel/pkg/faults"
)

// Gemini is the native provider backed by the Google GenAI client.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds the provider. A missing API key fails startup.
func NewGemini(cfg *config.LLMConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, faults.Newf(faults.ConfigMissing, "llm", "gemini",
			"api_key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, faults.New(faults.ConfigMissing, "llm", "gemini",
			"client construction failed", err)
	}

	return &Gemini{client: client, model: cfg.Model}, nil
}

// ModelName returns the configured model identifier.
func (g *Gemini) ModelName() string { return g.model }

// Close releases resources. The genai client holds none.
func (g *Gemini) Close() error { return nil }

// Generate runs a single-shot completion.
func (g *Gemini) Generate(ctx context.Context, prompt string, opts *GenerateOptions) (string, error) {
	return g.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts)
}

// Chat maps messages to Gemini contents (system turns hoisted into
// the system instruction) and returns the first candidate's text.
func (g *Gemini) Chat(ctx context.Context, messages []Message, opts *GenerateOptions) (string, error) {
	contents, system := buildContents(messages)
	o := normalize(opts)

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(*o.Temperature)),
		MaxOutputTokens:   int32(o.MaxTokens),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		return Fallback, faults.New(faults.ProviderTransient, "llm", "gemini.chat",
			"generation request failed", err)
	}

	text := firstCandidateText(resp)
	if text == "" {
		return Fallback, faults.Newf(faults.ProviderInvalidOutput, "llm", "gemini.chat",
			"empty response from model %s", g.model)
	}
	return text, nil
}

// buildContents converts messages to genai contents. Gemini knows the
// roles user and model; system messages merge into one instruction.
func buildContents(messages []Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemParts []string

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}
	return contents, system
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
