package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lexlanka/gavel/pkg/documents"
	"github.com/lexlanka/gavel/pkg/llms"
	"github.com/lexlanka/gavel/pkg/retrievers"
)

// fallbackSearchQuery is used when interest analysis fails and the
// user has no history to fall back on.
const fallbackSearchQuery = "Sri Lankan legal documents regulations"

// recommendRetrieveK fetches a wide candidate set; ranking keeps the
// top maxRecommendations.
const (
	recommendRetrieveK = 10
	maxRecommendations = 5
)

const interestsSystemPrompt = `You are an expert at understanding user interests in legal topics.

Analyze the user's query history and preferences to generate a comprehensive search query
that will retrieve relevant legal documents.

The search query should:
1. Identify main legal topics and areas of interest
2. Include relevant legal terminology
3. Cover related subtopics and adjacent areas
4. Be specific enough to find relevant documents
5. Be broad enough to capture diverse but related content

Generate ONLY the search query, nothing else.`

// Recommendation is one suggested document.
type Recommendation struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Preview  string `json:"preview"`
	URL      string `json:"url"`
}

// RecommendationResult carries the recommendation graph outcome.
type RecommendationResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	SearchQuery     string           `json:"search_query"`
	Success         bool             `json:"success"`
	Err             error            `json:"-"`
}

// Recommender suggests documents from a user's interests through a
// three-step graph: analyze interests, retrieve, rank.
type Recommender struct {
	retriever *retrievers.Retriever
	llm       llms.Provider
	host      string
}

// NewRecommender builds the recommendation graph. host names the
// public portal for citation URLs; empty selects the default.
func NewRecommender(retriever *retrievers.Retriever, llm llms.Provider, host string) *Recommender {
	return &Recommender{retriever: retriever, llm: llm, host: host}
}

// Recommend runs the graph. It never returns an error: analysis
// failures degrade to a history-derived query, retrieval failures to
// an empty list.
func (r *Recommender) Recommend(ctx context.Context, username string, preferences, history []string) RecommendationResult {
	searchQuery := r.analyzeInterests(ctx, username, preferences, history)

	result := RecommendationResult{SearchQuery: searchQuery, Success: true}

	docs, err := r.retriever.Retrieve(ctx, searchQuery, recommendRetrieveK)
	if err != nil {
		slog.Warn("recommendation retrieval failed", "error", err)
		result.Err = err
		return result
	}

	if len(docs) > maxRecommendations {
		docs = docs[:maxRecommendations]
	}
	for _, d := range docs {
		result.Recommendations = append(result.Recommendations, Recommendation{
			Filename: d.Document.Name,
			Type:     d.Document.Type,
			Preview:  preview(d.Document.Content),
			URL:      documents.URL(r.host, d.Document.Type, d.Document.Name),
		})
	}
	return result
}

// analyzeInterests asks the model for a comma-joined search query.
// Failure falls back to the first history entries, then to a fixed
// generic query.
func (r *Recommender) analyzeInterests(ctx context.Context, username string, preferences, history []string) string {
	prefs := "general legal topics"
	if len(preferences) > 0 {
		prefs = strings.Join(preferences, ", ")
	}
	hist := "No history"
	if len(history) > 0 {
		hist = strings.Join(history, "\n")
	}

	user := "Username: " + username +
		"\nPreferences: " + prefs +
		"\nQuery History: " + hist +
		"\n\nGenerate search query:"

	out, err := r.llm.Chat(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: interestsSystemPrompt},
		{Role: llms.RoleUser, Content: user},
	}, &llms.GenerateOptions{Temperature: llms.Temp(llms.TemperatureRecommend)})
	if err != nil {
		slog.Warn("interest analysis failed, using fallback query", "error", err)
		if len(history) > 0 {
			n := len(history)
			if n > 3 {
				n = 3
			}
			return strings.Join(history[:n], " ")
		}
		return fallbackSearchQuery
	}
	return strings.TrimSpace(out)
}

func preview(content string) string {
	if len(content) > 200 {
		content = content[:200]
	}
	return content + "..."
}
