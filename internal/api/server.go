// Package api serves the session API over HTTP with JSON bodies.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"grid-trading-lab/internal/archive"
	"grid-trading-lab/internal/config"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/observability"
	"grid-trading-lab/internal/reporting"
	"grid-trading-lab/internal/session"
	"grid-trading-lab/internal/storage"
	"grid-trading-lab/internal/verification"
)

// Server routes HTTP requests to the simulator.
type Server struct {
	sim      *session.Simulator
	cfg      *config.Config
	archiver *archive.Archiver
	verifier *verification.ReplayVerifier
	reports  *reporting.Generator
	metrics  *observability.Metrics
	logger   logrus.FieldLogger
	mux      *http.ServeMux

	// archived tracks saved session ids so replaced sessions are saved once.
	archivedMu sync.Mutex
	archived   map[string]bool
}

// Options contains configuration for creating a Server.
type Options struct {
	Simulator *session.Simulator // required
	Config    *config.Config     // required; supplies session defaults
	Archiver  *archive.Archiver  // optional; enables /api/sessions
	Metrics   *observability.Metrics
	Stream    http.Handler // mounted at /ws when set
	Gatherer  http.Handler // mounted at /metrics when set
	Reports   *reporting.Generator
	Logger    logrus.FieldLogger
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Simulator == nil || opts.Config == nil {
		return nil, errors.New("api: simulator and config are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	reports := opts.Reports
	if reports == nil {
		reports = reporting.NewGenerator()
	}

	s := &Server{
		sim:      opts.Simulator,
		cfg:      opts.Config,
		archiver: opts.Archiver,
		reports:  reports,
		metrics:  opts.Metrics,
		logger:   logger.WithField("component", "api"),
		mux:      http.NewServeMux(),
		archived: make(map[string]bool),
	}
	if opts.Archiver != nil {
		s.verifier = verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			Loader: opts.Archiver,
			Logger: logger,
		})
	}

	s.handle("GET /health", "health", s.handleHealth)
	s.handle("GET /api/scenarios", "scenarios", s.handleScenarios)
	s.handle("GET /api/session", "session", s.handleSession)
	s.handle("POST /api/session/start", "session_start", s.handleStart)
	s.handle("POST /api/session/pause", "session_pause", s.handlePause)
	s.handle("POST /api/session/resume", "session_resume", s.handleResume)
	s.handle("POST /api/session/stop", "session_stop", s.handleStop)
	s.handle("POST /api/session/tick", "session_tick", s.handleTick)
	s.handle("GET /api/price", "price", s.handlePrice)
	s.handle("GET /api/performance", "performance", s.handlePerformance)
	s.handle("GET /api/executions", "executions", s.handleExecutions)
	s.handle("GET /api/grids", "grids", s.handleListGrids)
	s.handle("POST /api/grids", "grid_create", s.handleCreateGrid)
	s.handle("GET /api/grids/{id}", "grid", s.handleGetGrid)
	s.handle("DELETE /api/grids/{id}", "grid_cancel", s.handleCancelGrid)
	s.handle("GET /api/sessions", "sessions", s.handleListSessions)
	s.handle("GET /api/sessions/{id}/report", "session_report", s.handleSessionReport)
	s.handle("GET /api/sessions/{id}/verify", "session_verify", s.handleVerify)

	if opts.Stream != nil {
		s.mux.Handle("/ws", opts.Stream)
	}
	if opts.Gatherer != nil {
		s.mux.Handle("/metrics", opts.Gatherer)
	}
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handle(pattern, route string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(route, strconv.Itoa(rec.status), time.Since(start).Seconds())
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain and storage sentinels to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidConfiguration), errors.Is(err, storage.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, storage.ErrNotFound),
		errors.Is(err, verification.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, storage.ErrDuplicateKey):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidConfiguration, err)
	}
	return nil
}

// archive saves a stopped snapshot once. Errors are logged, not returned,
// so a failing store never blocks the session API.
func (s *Server) archive(ctx context.Context, snap *domain.SessionSnapshot) bool {
	if s.archiver == nil || snap == nil {
		return false
	}
	s.archivedMu.Lock()
	defer s.archivedMu.Unlock()
	if s.archived[snap.SessionID] {
		return true
	}

	start := time.Now()
	err := s.archiver.Save(ctx, snap)
	if errors.Is(err, storage.ErrDuplicateKey) {
		err = nil
	}
	if s.metrics != nil {
		s.metrics.RecordArchive(time.Since(start).Seconds(), err)
	}
	if err != nil {
		s.logger.WithError(err).WithField("session_id", snap.SessionID).Error("archive session")
		return false
	}
	s.archived[snap.SessionID] = true
	return true
}
