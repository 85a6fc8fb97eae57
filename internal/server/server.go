// Package server exposes the question answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/amit6537/agent-warren/internal/qa"
)

// Asker answers questions. Satisfied by *qa.Pipeline.
type Asker interface {
	Ask(ctx context.Context, question string) (*qa.Result, error)
}

// Server serves POST /ask and GET /healthz.
type Server struct {
	asker      Asker
	logger     *log.Logger
	httpServer *http.Server
}

// New creates a server bound to addr. logger may be nil.
func New(asker Asker, addr string, logger *log.Logger) *Server {
	s := &Server{asker: asker, logger: logger}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table. The pipeline owns the per-request
// deadline, so no timeout is applied here.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// ListenAndServe blocks serving requests until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.logf("listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed."})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Request body must be valid JSON."})
		return
	}

	result, err := s.asker.Ask(r.Context(), req.Question)
	if err != nil {
		kind := qa.ClassifyKind(err)
		s.logf("ask failed (%s): %v", kind, err)
		status, message := responseFor(kind)
		writeJSON(w, status, errorResponse{Error: message})
		return
	}

	s.logf("ask completed in %s with %d context item(s)", result.Elapsed, len(result.Items))
	writeJSON(w, http.StatusOK, askResponse{Answer: result.Answer})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// responseFor maps an error kind to a status code and a client-safe
// message. Provider diagnostics stay in the logs.
func responseFor(kind qa.Kind) (int, string) {
	switch kind {
	case qa.KindInvalidRequest:
		return http.StatusBadRequest, "Question is required."
	case qa.KindTimeout:
		return http.StatusInternalServerError, "The request timed out."
	case qa.KindCollectionNotFound:
		return http.StatusInternalServerError, "No documents have been ingested yet."
	case qa.KindProviderUnavailable:
		return http.StatusInternalServerError, "The model provider is unavailable."
	default:
		return http.StatusInternalServerError, fmt.Sprintf("Failed to answer the question (%s).", kind)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
