package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexlanka/gavel/pkg/config"
	"github.com/lexlanka/gavel/pkg/faults"
	"github.com/lexlanka/gavel/pkg/httpclient"
)

// defaultOpenAIBase is used when no base URL is configured.
const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAICompat speaks the chat/completions wire protocol shared by
// OpenAI and the many compatible serving stacks.
type OpenAICompat struct {
	baseURL string
	apiKey  string
	model   string
	client  *httpclient.Client
}

// NewOpenAICompat builds the provider. A missing API key fails
// startup.
func NewOpenAICompat(cfg *config.LLMConfig) (*OpenAICompat, error) {
	if cfg.APIKey == "" {
		return nil, faults.Newf(faults.ConfigMissing, "llm", "openai-compat",
			"api_key is required")
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultOpenAIBase
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenAICompat{
		baseURL: base,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client: httpclient.New(
			httpclient.WithMaxRetries(2),
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}, nil
}

// ModelName returns the configured model identifier.
func (o *OpenAICompat) ModelName() string { return o.model }

// Close releases resources.
func (o *OpenAICompat) Close() error { return nil }

// Generate runs a single-shot completion.
func (o *OpenAICompat) Generate(ctx context.Context, prompt string, opts *GenerateOptions) (string, error) {
	return o.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts)
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat posts the conversation to {base}/chat/completions.
func (o *OpenAICompat) Chat(ctx context.Context, messages []Message, opts *GenerateOptions) (string, error) {
	norm := normalize(opts)
	body, err := json.Marshal(chatRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: *norm.Temperature,
		MaxTokens:   norm.MaxTokens,
	})
	if err != nil {
		return Fallback, faults.New(faults.ProviderInvalidOutput, "llm", "openai.chat",
			"encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Fallback, faults.New(faults.ProviderTransient, "llm", "openai.chat",
			"building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	resp, err := o.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return Fallback, faults.New(faults.ProviderTransient, "llm", "openai.chat",
			"chat completion request failed", err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Fallback, faults.New(faults.ProviderInvalidOutput, "llm", "openai.chat",
			"decoding response", err)
	}
	if parsed.Error != nil {
		return Fallback, faults.Newf(faults.ProviderTransient, "llm", "openai.chat",
			"provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Fallback, faults.Newf(faults.ProviderInvalidOutput, "llm", "openai.chat",
			"no choices in response from model %s", o.model)
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return Fallback, faults.Newf(faults.ProviderInvalidOutput, "llm", "openai.chat",
			"empty completion from model %s", o.model)
	}
	return text, nil
}
