// Package api serves the evaluation pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/models"
	"loan-workers/internal/pipeline"
	"loan-workers/internal/store"
)

const maxBodyBytes = 1 << 20

// Runner is the orchestrator as seen by the handlers.
type Runner interface {
	Run(ctx context.Context, app pipeline.Application) pipeline.Result
	RunStreaming(ctx context.Context, app pipeline.Application) <-chan pipeline.Event
}

// StatusReader looks up the latest status of an application.
type StatusReader interface {
	GetStatus(ctx context.Context, applicationID string) (*models.ApplicationStatus, bool, error)
}

// ProcessStarter launches the loan approval process in the workflow engine.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error)
}

// Pinger is a readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Server struct {
	runner       Runner
	status       StatusReader
	starter      ProcessStarter
	processID    string
	documentsDir string
	documentsURL string
	checks       map[string]Pinger
	logger       logger.Logger
	mux          *http.ServeMux
}

type Option func(*Server)

func WithStatusReader(r StatusReader) Option {
	return func(s *Server) { s.status = r }
}

// WithProcessStarter enables POST /applications, which hands the application
// to the BPMN process processID instead of evaluating it inline.
func WithProcessStarter(p ProcessStarter, processID string) Option {
	return func(s *Server) {
		s.starter = p
		s.processID = processID
	}
}

// WithDocuments serves generated letters from dir under urlPrefix.
func WithDocuments(dir, urlPrefix string) Option {
	return func(s *Server) {
		s.documentsDir = dir
		s.documentsURL = urlPrefix
	}
}

func WithReadinessCheck(name string, p Pinger) Option {
	return func(s *Server) { s.checks[name] = p }
}

func NewServer(runner Runner, log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Server{
		runner: runner,
		checks: map[string]Pinger{},
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("POST /applications/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("POST /applications/evaluate/stream", s.handleEvaluateStream)
	if s.status != nil {
		s.mux.HandleFunc("GET /applications/{id}/status", s.handleStatus)
	}
	if s.starter != nil {
		s.mux.HandleFunc("POST /applications", s.handleSubmit)
	}
	if s.documentsDir != "" && s.documentsURL != "" {
		prefix := s.documentsURL + "/"
		s.mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(s.documentsDir))))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failures := map[string]string{}
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "failures": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	app, err := decodeApplication(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.runner.Run(r.Context(), app)
	writeJSON(w, http.StatusOK, res)
}

type submitResponse struct {
	ApplicationID      string `json:"applicationId"`
	ProcessID          string `json:"processId"`
	ProcessInstanceKey int64  `json:"processInstanceKey"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	app, err := decodeApplication(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if app.ID == "" {
		writeError(w, http.StatusBadRequest, "applicationId is required")
		return
	}

	key, err := s.starter.StartProcess(r.Context(), s.processID, map[string]interface{}{"application": app})
	if err != nil {
		s.logger.WithError(err).Error("process start failed", map[string]interface{}{
			"applicationId": app.ID,
			"processId":     s.processID,
		})
		writeError(w, http.StatusBadGateway, "workflow engine unavailable")
		return
	}
	s.logger.Info("process started", map[string]interface{}{
		"applicationId":      app.ID,
		"processInstanceKey": key,
	})
	writeJSON(w, http.StatusAccepted, submitResponse{ApplicationID: app.ID, ProcessID: s.processID, ProcessInstanceKey: key})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, fromCache, err := s.status.GetStatus(r.Context(), id)
	if errors.Is(err, store.ErrApplicationNotFound) {
		writeError(w, http.StatusNotFound, "application not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("status lookup failed", map[string]interface{}{"applicationId": id})
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	w.Header().Set("X-Cache", cacheHeader(fromCache))
	writeJSON(w, http.StatusOK, st)
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func decodeApplication(w http.ResponseWriter, r *http.Request) (pipeline.Application, error) {
	var app pipeline.Application
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&app); err != nil {
		return app, errors.New("invalid application body: " + err.Error())
	}
	return app, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
