package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lexlanka/gavel/pkg/documents"
	"github.com/lexlanka/gavel/pkg/qa"
)

// docSearchK bounds the document search result list.
const docSearchK = 10

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req qa.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.QA.Answer(r.Context(), req))
}

func (s *Server) handleDocSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	scored, err := s.svc.Retriever.Retrieve(r.Context(), req.Query, docSearchK)
	if err != nil {
		slog.Error("document search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	urls := []string{}
	seen := map[string]struct{}{}
	for _, sc := range scored {
		if sc.Document.Name == "" {
			continue
		}
		url := documents.URL("", sc.Document.Type, sc.Document.Name)
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}
	writeJSON(w, http.StatusOK, urls)
}

type summaryRequest struct {
	FileName string `json:"file_name"`
	Language string `json:"language,omitempty"`
}

// normalizeFileName maps client file names onto index document names:
// .pdf becomes .txt and path separators become dashes.
func normalizeFileName(name string) string {
	name = strings.ReplaceAll(name, ".pdf", ".txt")
	return strings.ReplaceAll(name, "/", "-")
}

// inferDocType guesses the collection from the file name.
func inferDocType(name string) string {
	lower := strings.ToLower(name)
	for _, t := range []string{"bill", "act", "gazette"} {
		if strings.Contains(lower, t) {
			return t
		}
	}
	return "unknown"
}

func (s *Server) summaryRequest(w http.ResponseWriter, r *http.Request) (name, docType, language string, ok bool) {
	var req summaryRequest
	if !decodeJSON(w, r, &req) {
		return "", "", "", false
	}
	if strings.TrimSpace(req.FileName) == "" {
		writeError(w, http.StatusBadRequest, "file_name is required")
		return "", "", "", false
	}
	language = req.Language
	if language == "" {
		language = "en"
	}
	name = normalizeFileName(req.FileName)
	return name, inferDocType(name), language, true
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	name, docType, language, ok := s.summaryRequest(w, r)
	if !ok {
		return
	}

	res := s.svc.Summarizer.Summarize(r.Context(), name, docType, language)
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": res.Summary,
		"status":  statusLabel(res.Success),
		"source":  name,
	})
}

func (s *Server) handleHighlights(w http.ResponseWriter, r *http.Request) {
	name, docType, language, ok := s.summaryRequest(w, r)
	if !ok {
		return
	}

	res := s.svc.Summarizer.Summarize(r.Context(), name, docType, language)
	writeJSON(w, http.StatusOK, map[string]any{
		"highlights": res.Highlights,
		"status":     statusLabel(res.Success),
		"source":     name,
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string   `json:"username"`
		History     []string `json:"history"`
		Preferences []string `json:"preferences"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res := s.svc.Recommender.Recommend(r.Context(), req.Username, req.Preferences, req.History)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	docType := chi.URLParam(r, "type")
	name := chi.URLParam(r, "name")

	chunks := documents.Chunks(s.svc.Store, docType, name)
	writeJSON(w, http.StatusOK, map[string]any{
		"document": name,
		"type":     docType,
		"chunks":   chunks,
	})
}

type healthResponse struct {
	Status           string `json:"status"`
	Database         string `json:"database"`
	LLMProvider      string `json:"llm_provider"`
	LLMModel         string `json:"llm_model"`
	RetrieverCached  bool   `json:"retriever_cached"`
	EmbeddingsCached bool   `json:"embeddings_cached"`
	Collections      int    `json:"collections"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Database:    "disabled",
		LLMProvider: string(s.cfg.LLM.Provider),
		LLMModel:    s.cfg.LLM.Model,
	}

	if s.svc.Archive != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Archive.Ping(ctx); err != nil {
			resp.Database = "unreachable"
		} else {
			resp.Database = "ok"
		}
	}

	resp.RetrieverCached = s.svc.Store.Loaded()
	if s.svc.Embedder != nil {
		resp.EmbeddingsCached = s.svc.Embedder.Available()
	}
	if snap := s.svc.Store.Snapshot(); snap != nil {
		resp.Collections = snap.UsableCount()
	}

	if !resp.RetrieverCached || !resp.EmbeddingsCached {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"collections": s.svc.Store.Status(),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Store.Initialize(r.Context(), true)
	if err != nil {
		slog.Error("index reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "reloaded",
		"collections": snap.UsableCount(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.svc.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "history archive is disabled")
		return
	}
	list, err := s.svc.Archive.ListSessions(r.Context())
	if err != nil {
		slog.Error("listing sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing sessions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if s.svc.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "history archive is disabled")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.svc.Archive.CreateSession(r.Context(), req.Name)
	if err != nil {
		slog.Error("creating session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "creating session failed")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.svc.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "history archive is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	session, messages, err := s.svc.Archive.SessionWithMessages(r.Context(), id)
	if err != nil {
		slog.Error("loading session failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, "loading session failed")
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  session,
		"messages": messages,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.svc.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "history archive is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.svc.Archive.DeleteSession(r.Context(), id); err != nil {
		slog.Error("deleting session failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, "deleting session failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (s *Server) handleClearSessions(w http.ResponseWriter, r *http.Request) {
	if s.svc.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "history archive is disabled")
		return
	}
	if err := s.svc.Archive.ClearAll(r.Context()); err != nil {
		slog.Error("clearing sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "clearing sessions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
