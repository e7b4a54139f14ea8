package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lexlanka/gavel/pkg/faults"
	"github.com/lexlanka/gavel/pkg/llms"
	"github.com/lexlanka/gavel/pkg/retrievers"
	"github.com/lexlanka/gavel/pkg/sessions"
)

// pipelineApology is the user-facing text for failures outside the
// generation stage.
const pipelineApology = "I apologize, but I encountered an error processing your request. Please try again."

// Request is one question-answering invocation.
type Request struct {
	Query     string
	Language  string
	SessionID string

	// History is caller-supplied conversation context. It seeds the
	// prompt only and is never checkpointed.
	History []llms.Message
}

// Result is the pipeline outcome.
type Result struct {
	Response  string
	Citations []string
	Docs      []retrievers.Scored
	Language  string
	Success   bool
	Err       error
}

// Runner executes the graph with session checkpointing around it.
type Runner struct {
	graph *Graph
	store sessions.Store
}

// NewRunner wires the graph to a checkpoint store.
func NewRunner(graph *Graph, store sessions.Store) *Runner {
	return &Runner{graph: graph, store: store}
}

// Run executes one turn. Checkpoint contract: a successful turn
// appends the user and assistant messages; a failed generation
// appends only the user turn; a cancelled run appends nothing.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	language := req.Language
	if language == "" {
		language = "en"
	}

	frame := &Frame{
		Query:         req.Query,
		OriginalQuery: req.Query,
		Language:      language,
	}

	// Caller history first, then the checkpointed turns: checkpoints
	// are the durable record, history is advisory context.
	for _, m := range req.History {
		frame.Messages = append(frame.Messages, sessions.Message{Role: m.Role, Content: m.Content})
	}
	prior, err := r.store.Messages(req.SessionID, 0)
	if err != nil {
		slog.Warn("loading session checkpoint failed", "session", req.SessionID, "error", err)
	} else {
		frame.Messages = append(frame.Messages, prior...)
	}

	if err := r.graph.Run(ctx, frame); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{
				Response: pipelineApology,
				Language: language,
				Err:      faults.New(faults.Cancelled, "agent", "run", "caller cancelled", err),
			}, nil
		}
		return Result{
			Response: pipelineApology,
			Language: language,
			Err:      err,
		}, nil
	}

	r.checkpoint(req.SessionID, frame)

	return Result{
		Response:  frame.Response,
		Citations: frame.Citations,
		Docs:      frame.Docs,
		Language:  language,
		Success:   !frame.generateFailed,
		Err:       generationErr(frame),
	}, nil
}

func generationErr(frame *Frame) error {
	if !frame.generateFailed {
		return nil
	}
	return faults.Newf(faults.ProviderTransient, "agent", "generate",
		"generation failed for session turn")
}

// checkpoint persists the turn per the +2/+1 contract.
func (r *Runner) checkpoint(sessionID string, frame *Frame) {
	msgs := []sessions.Message{
		sessions.NewMessage(llms.RoleUser, frame.OriginalQuery),
	}
	if !frame.generateFailed && frame.Response != "" {
		msgs = append(msgs, sessions.NewMessage(llms.RoleAssistant, frame.Response))
	}

	if err := r.store.AppendMessages(sessionID, msgs...); err != nil {
		slog.Warn("session checkpoint failed", "session", sessionID, "error", err)
	}
}
