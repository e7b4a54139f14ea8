package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lexlanka/gavel/pkg/documents"
	"github.com/lexlanka/gavel/pkg/indexstore"
	"github.com/lexlanka/gavel/pkg/llms"
)

// Canned texts used when content is missing or generation fails.
const (
	summaryNoContent = "This is an official legal document from the Sri Lankan government portal containing important regulatory information."
	summaryFallback  = "This document contains important legal information from Sri Lankan legislation."
)

var highlightsNoContent = []string{
	"This document contains key legal provisions enacted by the Parliament of Sri Lanka",
	"It includes important regulatory information and procedural guidelines",
	"The document may contain statutory requirements and compliance measures",
}

var highlightsFallback = []string{
	"Key legal provisions and regulations",
	"Important procedural guidelines",
	"Statutory requirements and compliance measures",
}

// summaryContentLimit caps the document text fed to the model.
const summaryContentLimit = 10000

// maxHighlights caps the parsed highlight list.
const maxHighlights = 7

const summarySystemPrompt = `You are an expert legal document summarizer for Sri Lankan law.

Generate a comprehensive summary of the provided legal document that:
1. Identifies the document type and purpose
2. Highlights key provisions and regulations
3. Notes important dates, amendments, or references
4. Explains the document's practical implications
5. Uses clear, accessible language

Keep the summary concise (2-3 paragraphs) but informative.

Provide the summary in {language}.`

const highlightsSystemPrompt = `You are an expert at extracting key points from legal documents.

Generate 5-7 concise bullet points that highlight:
1. Main objectives or purposes
2. Key provisions or regulations
3. Important definitions or terms
4. Rights, obligations, or penalties
5. Effective dates or amendments
6. Relevant authorities or procedures

Each point should be clear, specific, and actionable.

Provide highlights in {language}.
Return ONLY the bullet points, one per line, without numbering.`

// SummaryResult carries the summary graph outcome.
type SummaryResult struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
	Success    bool     `json:"success"`
	Err        error    `json:"-"`
}

// Summarizer generates document summaries and highlights through a
// three-step graph: load content, summarize, extract highlights.
type Summarizer struct {
	store *indexstore.Store
	llm   llms.Provider
}

// NewSummarizer builds the summary graph.
func NewSummarizer(store *indexstore.Store, llm llms.Provider) *Summarizer {
	return &Summarizer{store: store, llm: llm}
}

// Summarize runs the graph for one document. It never returns an
// error to callers: failures degrade to canned texts, recorded in Err.
func (s *Summarizer) Summarize(ctx context.Context, name, docType, language string) SummaryResult {
	if language == "" {
		language = "en"
	}

	content := s.loadContent(name, docType)
	if content == "" {
		return SummaryResult{
			Summary:    summaryNoContent,
			Highlights: append([]string(nil), highlightsNoContent...),
			Success:    true,
		}
	}

	result := SummaryResult{Success: true}
	result.Summary = s.generateSummary(ctx, name, content, language, &result)
	result.Highlights = s.generateHighlights(ctx, name, content, language, &result)
	return result
}

// loadContent joins the document's chunks, clamped for prompting.
func (s *Summarizer) loadContent(name, docType string) string {
	chunks := documents.Chunks(s.store, docType, name)
	if len(chunks) == 0 {
		slog.Warn("no content found for summary", "document", name, "type", docType)
		return ""
	}

	content := strings.Join(chunks, "\n\n")
	if len(content) > summaryContentLimit {
		content = content[:summaryContentLimit]
	}
	return content
}

func (s *Summarizer) generateSummary(ctx context.Context, name, content, language string, result *SummaryResult) string {
	system := strings.ReplaceAll(summarySystemPrompt, "{language}", language)
	user := "Document: " + name + "\n\nContent:\n" + content + "\n\nGenerate a comprehensive summary:"

	out, err := s.llm.Chat(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: system},
		{Role: llms.RoleUser, Content: user},
	}, &llms.GenerateOptions{Temperature: llms.Temp(llms.TemperatureSummary), MaxTokens: 1024})
	if err != nil {
		slog.Error("summary generation failed", "document", name, "error", err)
		result.Err = err
		return summaryFallback
	}
	return out
}

func (s *Summarizer) generateHighlights(ctx context.Context, name, content, language string, result *SummaryResult) []string {
	system := strings.ReplaceAll(highlightsSystemPrompt, "{language}", language)
	user := "Document: " + name + "\n\nContent:\n" + content + "\n\nGenerate key highlights:"

	out, err := s.llm.Chat(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: system},
		{Role: llms.RoleUser, Content: user},
	}, &llms.GenerateOptions{Temperature: llms.Temp(llms.TemperatureSummary), MaxTokens: 1024})
	if err != nil {
		slog.Error("highlights generation failed", "document", name, "error", err)
		result.Err = err
		return append([]string(nil), highlightsFallback...)
	}
	return parseHighlights(out)
}

// parseHighlights splits model output into bullet lines, stripping
// bullet markers and dropping fragments.
func parseHighlights(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "•-*"))
		if len(line) <= 10 {
			continue
		}
		out = append(out, line)
		if len(out) == maxHighlights {
			break
		}
	}
	return out
}
