package agent

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/lexlanka/gavel/pkg/llms"
	"github.com/lexlanka/gavel/pkg/retrievers"
)

// systemPromptTemplate is the answer-generation contract. The
// placeholders {context}, {citations} and {language} are substituted
// at prompt build time.
const systemPromptTemplate = `You are a helpful assistant specialized in Sri Lankan law.

Your responsibilities:
1. Answer questions accurately using the provided context
2. Cite sources using [filename] format after relevant sentences
3. If context is insufficient, acknowledge limitations
4. Recommend consulting legal professionals for legal advice
5. If the corpus does not cover the question, refer the user to documents.gov.lk as the authoritative source
6. Adapt your tone: professional for technical questions, accessible for general queries
7. Always end with a friendly follow-up question to continue the conversation

Context from legal documents:
{context}

Citations available: {citations}

Provide your answer in {language}.`

// contextTokenBudget caps retrieved context ahead of templating.
const contextTokenBudget = 6000

// buildChatMessages assembles the generation request: system
// instruction, prior conversation, then the current query.
func buildChatMessages(frame *Frame) []llms.Message {
	language := frame.Language
	if language == "" {
		language = "en"
	}

	system := strings.NewReplacer(
		"{context}", frame.Context,
		"{citations}", strings.Join(frame.Citations, ", "),
		"{language}", language,
	).Replace(systemPromptTemplate)

	messages := make([]llms.Message, 0, len(frame.Messages)+2)
	messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: system})
	for _, m := range frame.Messages {
		messages = append(messages, llms.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llms.Message{Role: llms.RoleUser, Content: frame.Query})
	return messages
}

// clampContext joins document contents with blank lines, keeping whole
// chunks while the running token count stays inside the budget.
func clampContext(docs []retrievers.Scored) string {
	var parts []string
	budget := contextTokenBudget

	for _, d := range docs {
		content := d.Document.Content
		if content == "" {
			continue
		}
		cost := countTokens(content)
		if cost > budget && len(parts) > 0 {
			break
		}
		if cost > budget {
			// A single oversized chunk still gets clamped in, cut to
			// the budget.
			parts = append(parts, truncateToTokens(content, budget))
			break
		}
		parts = append(parts, content)
		budget -= cost
	}
	return strings.Join(parts, "\n\n")
}

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// tokenEncoder returns the cl100k_base encoder, or nil when the
// encoding tables cannot be loaded (offline hosts); callers fall back
// to a character estimate.
func tokenEncoder() *tiktoken.Tiktoken {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("token encoder unavailable, using character estimate", "error", err)
			return
		}
		encoder = enc
	})
	return encoder
}

func countTokens(text string) int {
	if enc := tokenEncoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	// Rough heuristic: four characters per token.
	return (utf8.RuneCountInString(text) + 3) / 4
}

// truncateToTokens cuts text down to at most budget tokens.
func truncateToTokens(text string, budget int) string {
	if enc := tokenEncoder(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= budget {
			return text
		}
		return enc.Decode(tokens[:budget])
	}

	runes := []rune(text)
	max := budget * 4
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
