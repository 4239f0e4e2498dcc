// Package http provides the HTTP server infrastructure.
// Clean Architecture: framework/driver layer - outermost circle. It binds
// the external route table exactly; everything else belongs to the kb
// package.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/kberrors"
	"github.com/onlysaid/kb-orchestrator/internal/domain/kb"
	"go.uber.org/zap"
)

// Server is the HTTP surface binding the external route table to the
// Manager facade.
type Server struct {
	manager *kb.Manager
	logger  *zap.Logger
	addr    string
}

// NewServer wires a Server around an already-running Manager.
func NewServer(manager *kb.Manager, logger *zap.Logger, addr string) *Server {
	return &Server{manager: manager, logger: logger, addr: addr}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)

	r.Post("/api/register", s.handleRegister)
	r.Get("/api/view/{workspace}", s.handleView)
	r.Get("/api/kb_status/{workspace}/{kb}", s.handleKBStatus)
	r.Post("/api/sync", s.handleSync)
	r.Post("/api/update_kb_status", s.handleUpdateKBStatus)
	r.Post("/api/delete_kb", s.handleDeleteKB)
	r.Post("/api/query", s.handleQuery)
	r.Post("/api/retrieve", s.handleRetrieve)
	r.Get("/api/health", s.handleHealth)

	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // streaming responses run long
	}

	s.logger.Info("http server starting", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http server shutdown error", zap.Error(err))
		}
	}()

	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg entities.KnowledgeBaseRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.manager.Register(r.Context(), reg); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": reg.ID, "status": "accepted"})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	workspace := chi.URLParam(r, "workspace")
	if kbID := r.URL.Query().Get("kb_id"); kbID != "" {
		source, err := s.manager.GetSource(r.Context(), workspace, kbID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		folders, _ := s.manager.FolderStructure(r.Context(), workspace, kbID)
		docs, _ := s.manager.Documents(r.Context(), workspace, kbID)
		writeJSON(w, http.StatusOK, map[string]any{
			"source":  source,
			"folders": folders,
			"docs":    docs,
		})
		return
	}

	sources, err := s.manager.ListSources(r.Context(), workspace)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) handleKBStatus(w http.ResponseWriter, r *http.Request) {
	workspace := chi.URLParam(r, "workspace")
	kbID := chi.URLParam(r, "kb")
	status, err := s.manager.Status(r.Context(), workspace, kbID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// handleSync re-runs ingestion for every running KB in the requested
// workspace.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkspaceID string `json:"workspace_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sources, err := s.manager.ListSources(r.Context(), body.WorkspaceID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resynced := make([]string, 0, len(sources))
	for _, src := range sources {
		if err := s.manager.Register(r.Context(), entities.KnowledgeBaseRegistration{
			ID:          src.ID,
			WorkspaceID: body.WorkspaceID,
			Name:        src.Name,
			SourceType:  "local_store",
			Enabled:     true,
		}); err != nil {
			s.logger.Warn("sync: re-register failed", zap.String("kb", src.ID), zap.Error(err))
			continue
		}
		resynced = append(resynced, src.ID)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"resynced": resynced})
}

func (s *Server) handleUpdateKBStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkspaceID string `json:"workspace_id"`
		KBID        string `json:"kb_id"`
		Enabled     bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.manager.UpdateStatus(r.Context(), body.WorkspaceID, body.KBID, body.Enabled); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteKB(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkspaceID string `json:"workspace_id"`
		KBID        string `json:"kb_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.manager.Delete(r.Context(), body.WorkspaceID, body.KBID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleQuery serves both blocking and streaming answers: a body with
// "stream": true gets SSE framing, otherwise a single JSON ChatResponse.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		entities.QueryRequest
		Stream bool `json:"stream"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !body.Stream {
		resp, err := s.manager.Answer(r.Context(), body.QueryRequest)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	s.streamQuery(w, r, body.QueryRequest)
}

func (s *Server) streamQuery(w http.ResponseWriter, r *http.Request, req entities.QueryRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	sessionID, deltas, err := s.manager.StreamAnswer(ctx, req)
	if err != nil {
		writeSSE(w, flusher, "end", map[string]any{"error": err.Error()})
		return
	}
	defer s.manager.RemoveSession(sessionID)

	writeSSE(w, flusher, "start", map[string]any{})
	for d := range deltas {
		if d.Err != nil {
			writeSSE(w, flusher, "end", map[string]any{"error": d.Err.Error()})
			return
		}
		writeSSE(w, flusher, "token", map[string]any{"token": d.AsText()})
	}
	writeSSE(w, flusher, "end", map[string]any{})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req entities.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	results, err := s.manager.Retrieve(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps a kberrors.Kind to an HTTP status; anything
// unrecognized falls back to 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	kind, ok := kberrors.KindOf(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	switch kind {
	case kberrors.NotFound:
		writeError(w, http.StatusNotFound, err)
	case kberrors.InvalidSource:
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data map[string]any) {
	payload, _ := json.Marshal(data)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
