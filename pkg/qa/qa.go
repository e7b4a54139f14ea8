// Package qa is the question-answering facade between HTTP handlers
// and the agent pipeline. It owns session id derivation, citation URL
// rendering and the never-throws contract: pipeline failures surface
// as Success=false with a diagnostic kind, never as a Go error.
package qa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/lexlanka/gavel/pkg/agent"
	"github.com/lexlanka/gavel/pkg/documents"
	"github.com/lexlanka/gavel/pkg/embedders"
	"github.com/lexlanka/gavel/pkg/faults"
	"github.com/lexlanka/gavel/pkg/llms"
	"github.com/lexlanka/gavel/pkg/sessions"
)

// Request is one question from a client.
type Request struct {
	Query     string         `json:"query"`
	Language  string         `json:"language,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	History   []llms.Message `json:"history,omitempty"`
}

// Response is the answer envelope returned to clients.
type Response struct {
	Response  string   `json:"response"`
	Citations []string `json:"citations"`
	Files     []string `json:"files"`
	SessionID string   `json:"session_id"`
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
}

// Service answers questions through the agent pipeline.
type Service struct {
	runner   *agent.Runner
	archive  *sessions.SQLArchive
	embedder embedders.Provider
	host     string
}

// New builds the facade. archive may be nil (history mirroring
// disabled); host selects the citation portal, empty for the default.
func New(runner *agent.Runner, archive *sessions.SQLArchive, embedder embedders.Provider, host string) *Service {
	return &Service{runner: runner, archive: archive, embedder: embedder, host: host}
}

// sessionIDPrefixLen bounds the query prefix hashed into a default
// session id.
const sessionIDPrefixLen = 50

// archiveTimeout bounds the asynchronous history mirror write.
const archiveTimeout = 5 * time.Second

// DeriveSessionID returns the deterministic default session id for a
// query: identical query prefixes land in the same session.
func DeriveSessionID(query string) string {
	prefix := query
	if len(prefix) > sessionIDPrefixLen {
		prefix = prefix[:sessionIDPrefixLen]
	}
	sum := sha256.Sum256([]byte(prefix))
	return "session_" + hex.EncodeToString(sum[:])[:16]
}

// Answer runs one question through the pipeline. The returned
// Response is always usable; pipeline failures set Success=false and
// a diagnostic error kind.
func (s *Service) Answer(ctx context.Context, req Request) Response {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DeriveSessionID(req.Query)
	}

	if s.embedder != nil && !s.embedder.Available() {
		slog.Warn("answering declined, embedder unavailable", "session", sessionID)
		return Response{
			Response:  "I apologize, but I encountered an error processing your request. Please try again.",
			Citations: []string{},
			Files:     []string{},
			SessionID: sessionID,
			Success:   false,
			Error:     string(faults.ModelUnavailable),
		}
	}

	result, err := s.runner.Run(ctx, agent.Request{
		Query:     req.Query,
		Language:  req.Language,
		SessionID: sessionID,
		History:   req.History,
	})
	if err != nil {
		// The runner contract reports pipeline failures in the
		// result; a returned error is unexpected.
		slog.Error("pipeline returned hard error", "session", sessionID, "error", err)
		result = agent.Result{Response: "I apologize, but I encountered an error processing your request. Please try again.", Err: err}
	}

	resp := Response{
		Response:  result.Response,
		Citations: result.Citations,
		Files:     s.fileURLs(result),
		SessionID: sessionID,
		Success:   result.Success,
	}
	if resp.Citations == nil {
		resp.Citations = []string{}
	}
	if result.Err != nil {
		resp.Error = errorKind(result.Err)
		slog.Warn("pipeline degraded", "session", sessionID, "kind", resp.Error, "error", result.Err)
	}

	s.mirrorToArchive(sessionID, req.Query, result)
	return resp
}

// fileURLs renders citation URLs over the retrieved documents in
// result order, first occurrence wins.
func (s *Service) fileURLs(result agent.Result) []string {
	seen := make(map[string]struct{}, len(result.Docs))
	out := []string{}
	for _, d := range result.Docs {
		if d.Document.Name == "" {
			continue
		}
		url := documents.URLForLang(s.host, d.Document.Type, d.Document.Name, result.Language)
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}

// errorKind renders the diagnostic error string: the fault kind when
// classified, a generic label otherwise. Raw provider text never
// leaks to clients.
func errorKind(err error) string {
	if kind := faults.KindOf(err); kind != "" {
		return string(kind)
	}
	return "PipelineError"
}

// mirrorToArchive copies successful turns into the durable archive.
// Archive failures only log.
func (s *Service) mirrorToArchive(sessionID, query string, result agent.Result) {
	if s.archive == nil || !result.Success {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if _, err := s.archive.AppendMessage(ctx, sessionID, llms.RoleUser, query, ""); err != nil {
			slog.Warn("archiving user turn failed", "session", sessionID, "error", err)
			return
		}
		if _, err := s.archive.AppendMessage(ctx, sessionID, llms.RoleAssistant, result.Response, ""); err != nil {
			slog.Warn("archiving assistant turn failed", "session", sessionID, "error", err)
		}
	}()
}
