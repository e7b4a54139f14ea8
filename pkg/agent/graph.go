// Package agent runs the question-answering pipeline as an explicit
// state machine: translate (conditional) → retrieve → generate. Two
// auxiliary graphs share the same building blocks: document summaries
// and personalized recommendations.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/lexlanka/gavel/pkg/llms"
	"github.com/lexlanka/gavel/pkg/retrievers"
	"github.com/lexlanka/gavel/pkg/sessions"
	"github.com/lexlanka/gavel/pkg/translators"
)

// Pipeline node identifiers.
type nodeID int

const (
	nodeTranslate nodeID = iota
	nodeRetrieve
	nodeGenerate
	nodeEnd
)

func (n nodeID) String() string {
	switch n {
	case nodeTranslate:
		return "translate"
	case nodeRetrieve:
		return "retrieve"
	case nodeGenerate:
		return "generate"
	default:
		return "end"
	}
}

// transitions is the linear edge table; entry is conditional (see
// entryNode).
var transitions = map[nodeID]nodeID{
	nodeTranslate: nodeRetrieve,
	nodeRetrieve:  nodeGenerate,
	nodeGenerate:  nodeEnd,
}

// Per-stage timeouts.
const (
	translateTimeout = 10 * time.Second
	retrieveTimeout  = 5 * time.Second
	generateTimeout  = 30 * time.Second
)

// retrieveK is the number of documents fetched for answer context.
const retrieveK = 5

// generateApology is returned when the generation stage fails; the
// user turn is still checkpointed so the conversation can continue.
const generateApology = "I apologize, but I encountered an error generating a response. Please try again."

// Frame is the mutable state threaded through the pipeline nodes.
type Frame struct {
	Query         string
	OriginalQuery string
	Language      string

	Context   string
	Docs      []retrievers.Scored
	Messages  []sessions.Message
	Response  string
	Citations []string

	// generateFailed marks a turn whose assistant message must not
	// be checkpointed.
	generateFailed bool
}

// Graph wires the pipeline stages to their services.
type Graph struct {
	translator translators.Translator
	retriever  *retrievers.Retriever
	llm        llms.Provider
}

// NewGraph builds the question-answering graph.
func NewGraph(translator translators.Translator, retriever *retrievers.Retriever, llm llms.Provider) *Graph {
	return &Graph{translator: translator, retriever: retriever, llm: llm}
}

// entryNode selects the first stage: non-English queries pass through
// translation first.
func entryNode(frame *Frame) nodeID {
	if frame.Language != "" && frame.Language != "en" {
		return nodeTranslate
	}
	return nodeRetrieve
}

// Run walks the state machine to completion. Cancellation is checked
// between nodes; a cancelled run returns ctx.Err() with the frame in
// its partial state.
func (g *Graph) Run(ctx context.Context, frame *Frame) error {
	for node := entryNode(frame); node != nodeEnd; node = transitions[node] {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch node {
		case nodeTranslate:
			g.translateNode(ctx, frame)
		case nodeRetrieve:
			g.retrieveNode(ctx, frame)
		case nodeGenerate:
			g.generateNode(ctx, frame)
		}
	}
	return ctx.Err()
}

// translateNode rewrites the query in English. Failures keep the
// original query and continue.
func (g *Graph) translateNode(ctx context.Context, frame *Frame) {
	tctx, cancel := context.WithTimeout(ctx, translateTimeout)
	defer cancel()

	translated, err := g.translator.Translate(tctx, frame.Query, frame.Language, "en")
	if err != nil {
		slog.Warn("query translation failed, continuing with original",
			"language", frame.Language, "error", err)
		return
	}
	frame.Query = translated
}

// retrieveNode fills the frame's context and citations. Failure or an
// empty result leaves the context empty and continues.
func (g *Graph) retrieveNode(ctx context.Context, frame *Frame) {
	rctx, cancel := context.WithTimeout(ctx, retrieveTimeout)
	defer cancel()

	docs, err := g.retriever.Retrieve(rctx, frame.Query, retrieveK)
	if err != nil {
		slog.Warn("retrieval failed, generating without context", "error", err)
		return
	}

	frame.Docs = docs
	frame.Context = clampContext(docs)
	frame.Citations = citationNames(docs)
	slog.Debug("retrieved context",
		"documents", len(docs), "citations", len(frame.Citations))
}

// citationNames returns document names in result order, first
// occurrence wins.
func citationNames(docs []retrievers.Scored) []string {
	seen := make(map[string]struct{}, len(docs))
	var out []string
	for _, d := range docs {
		name := d.Document.Name
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// generateNode produces the answer. Failure substitutes the fixed
// apology and flags the turn so the assistant message is not
// checkpointed.
func (g *Graph) generateNode(ctx context.Context, frame *Frame) {
	gctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	messages := buildChatMessages(frame)
	response, err := g.llm.Chat(gctx, messages, &llms.GenerateOptions{
		Temperature: llms.Temp(llms.TemperatureQA),
	})
	if err != nil {
		slog.Error("answer generation failed", "error", err)
		frame.Response = generateApology
		frame.generateFailed = true
		return
	}

	frame.Response = response
	frame.Messages = append(frame.Messages, sessions.NewMessage(llms.RoleAssistant, response))
}
