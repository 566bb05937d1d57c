package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/warehouse-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invoker runs a named pipeline to completion.
type Invoker interface {
	Invoke(ctx context.Context, name string) (pipeline.Result, error)
}

// Server exposes the pipeline trigger plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer        *http.Server
	invoker           Invoker
	invocationTimeout time.Duration
	logger            *slog.Logger
}

// NewServer creates an HTTP server with /pipelines/{name}/run, /healthz, /readyz,
// and /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, invoker Invoker, invocationTimeout time.Duration, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		invoker:           invoker,
		invocationTimeout: invocationTimeout,
		logger:            logger,
	}

	mux.HandleFunc("POST /pipelines/{name}/run", s.handleRun)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type runResponse struct {
	Pipeline string `json:"pipeline"`
	RunID    string `json:"run_id,omitempty"`
	Outcome  string `json:"outcome"`
	Status   string `json:"status"`
}

// handleRun ignores the request body. The invocation outlives a client
// disconnect and is bounded by the invocation timeout instead.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	_, _ = io.Copy(io.Discard, r.Body)

	// Runs can take minutes; lift the server-wide write deadline for this response.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("could not clear write deadline", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.invocationTimeout)
	defer cancel()

	res, err := s.invoker.Invoke(ctx, name)
	switch {
	case errors.Is(err, pipeline.ErrUnknownPipeline):
		writeJSON(w, http.StatusNotFound, runResponse{Pipeline: name, Outcome: "failure", Status: err.Error()})
		return
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, runResponse{Pipeline: name, Outcome: "failure", Status: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, runResponse{Pipeline: name, Outcome: "failure", Status: err.Error()})
		return
	}

	code := http.StatusOK
	if !res.Outcome.OK() {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, runResponse{
		Pipeline: res.Pipeline,
		RunID:    res.RunID,
		Outcome:  res.Outcome.String(),
		Status:   res.Status,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
