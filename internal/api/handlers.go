package api

import (
	"fmt"
	"net/http"
	"strconv"

	"grid-trading-lab/internal/config"
	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/performance"
	"grid-trading-lab/internal/reporting"
	"grid-trading-lab/internal/session"
	"grid-trading-lab/internal/stream"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/scenarios
func (s *Server) handleScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"scenarios": s.sim.Registry().Names()})
}

func (s *Server) current() (*session.Session, error) {
	sess := s.sim.GetSession()
	if sess == nil {
		return nil, fmt.Errorf("%w: no active session", domain.ErrInvalidState)
	}
	return sess, nil
}

// GET /api/session
func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	sess, err := s.current()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess.Info()))
}

// startRequest overrides the configured session defaults. Omitted fields
// keep their configured values.
type startRequest struct {
	Simulation config.SimulationConfig `json:"simulation"`
	Portfolio  config.PortfolioConfig  `json:"portfolio"`
}

// POST /api/session/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	cfg := *s.cfg
	cfg.Portfolio.Holdings = make(map[string]float64, len(s.cfg.Portfolio.Holdings))
	for k, v := range s.cfg.Portfolio.Holdings {
		cfg.Portfolio.Holdings[k] = v
	}

	req := startRequest{Simulation: cfg.Simulation, Portfolio: cfg.Portfolio}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	cfg.Simulation = req.Simulation
	cfg.Portfolio = req.Portfolio

	simCfg, err := cfg.SimulationConfig()
	if err != nil {
		s.writeError(w, err)
		return
	}

	if prev := s.sim.GetSession(); prev != nil && prev.State() == domain.SessionStopped {
		s.archive(r.Context(), prev.Snapshot())
	}

	sess, err := s.sim.StartSimulation(simCfg, cfg.InitialPortfolio())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(sess.Info()))
}

// POST /api/session/pause
func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	if err := s.sim.PauseSimulation(); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleSession(w, nil)
}

// POST /api/session/resume
func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	if err := s.sim.ResumeSimulation(); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleSession(w, nil)
}

type stopResponse struct {
	SessionID   string      `json:"session_id"`
	Ticks       int         `json:"ticks"`
	Executions  int         `json:"executions"`
	FinalPrice  float64     `json:"final_price"`
	Performance summaryView `json:"performance"`
	Grids       []gridView  `json:"grids"`
	Archived    bool        `json:"archived"`
}

// POST /api/session/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sim.StopSimulation()
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := stopResponse{
		SessionID:   snap.SessionID,
		Ticks:       len(snap.Ticks),
		Executions:  len(snap.Executions),
		FinalPrice:  snap.FinalPrice(),
		Performance: newSummaryView(performance.Calculate(performance.InputFromSnapshot(snap))),
		Grids:       make([]gridView, 0, len(snap.Grids)),
		Archived:    s.archive(r.Context(), snap),
	}
	for _, g := range snap.Grids {
		resp.Grids = append(resp.Grids, newGridView(g, false))
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/session/tick advances one tick by hand.
func (s *Server) handleTick(w http.ResponseWriter, _ *http.Request) {
	sess, err := s.current()
	if err != nil {
		s.writeError(w, err)
		return
	}
	tick, err := sess.AdvanceOneTick()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stream.TickPayload(tick, sess.Info().Equity))
}

// GET /api/price
func (s *Server) handlePrice(w http.ResponseWriter, _ *http.Request) {
	sess, err := s.current()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id": sess.Config().TokenID,
		"price":    sess.CurrentPrice(),
	})
}

// GET /api/performance computes the summary over the session so far.
func (s *Server) handlePerformance(w http.ResponseWriter, _ *http.Request) {
	sess, err := s.current()
	if err != nil {
		s.writeError(w, err)
		return
	}
	info := sess.Info()
	summary := performance.Calculate(performance.Input{
		Values:       sess.ValueSeries(),
		Executions:   sess.Executions(),
		Ticks:        sess.Ticks(),
		StartTime:    info.StartedAt,
		RiskFreeRate: info.Config.RiskFreeRate,
	})
	writeJSON(w, http.StatusOK, newSummaryView(summary))
}

// GET /api/executions?limit=N returns the most recent executions.
func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current()
	if err != nil {
		s.writeError(w, err)
		return
	}
	execs := sess.Executions()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, fmt.Errorf("%w: bad limit %q", domain.ErrInvalidConfiguration, raw))
			return
		}
		if limit < len(execs) {
			execs = execs[len(execs)-limit:]
		}
	}
	out := make([]stream.ExecutionData, 0, len(execs))
	for _, e := range execs {
		out = append(out, stream.ExecutionPayload(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/grids
func (s *Server) handleListGrids(w http.ResponseWriter, _ *http.Request) {
	sess, err := s.current()
	if err != nil {
		s.writeError(w, err)
		return
	}
	grids := sess.Grids()
	out := make([]gridView, 0, len(grids))
	for _, g := range grids {
		out = append(out, newGridView(g, false))
	}
	writeJSON(w, http.StatusOK, out)
}

// gridRequest creates a grid. Without explicit bounds the range is
// RangePercent around the current price.
type gridRequest struct {
	TokenID      string  `json:"token_id"`
	BaseAmount   float64 `json:"base_amount"`
	OrderCount   int     `json:"order_count"`
	PriceMin     float64 `json:"price_min"`
	PriceMax     float64 `json:"price_max"`
	RangePercent float64 `json:"range_percent"`
}

// POST /api/grids
func (s *Server) handleCreateGrid(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current()
	if err != nil {
		s.writeError(w, err)
		return
	}

	req := gridRequest{
		BaseAmount:   s.cfg.Grid.BaseAmount,
		OrderCount:   s.cfg.Grid.OrderCount,
		RangePercent: s.cfg.Grid.RangePercent,
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	gc := domain.GridConfig{
		TokenID:    req.TokenID,
		BaseAmount: req.BaseAmount,
		OrderCount: req.OrderCount,
		PriceRange: domain.PriceRange{Min: req.PriceMin, Max: req.PriceMax},
	}
	if req.PriceMin == 0 && req.PriceMax == 0 {
		price := sess.CurrentPrice()
		gc.PriceRange = domain.PriceRange{
			Min: price * (1 - req.RangePercent),
			Max: price * (1 + req.RangePercent),
		}
	}

	g, err := sess.CreateGrid(gc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGridView(g, true))
}

// GET /api/grids/{id}
func (s *Server) handleGetGrid(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current()
	if err != nil {
		s.writeError(w, err)
		return
	}
	g, err := sess.Grid(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newGridView(g, true))
}

// DELETE /api/grids/{id}
func (s *Server) handleCancelGrid(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current()
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	released, err := sess.CancelGrid(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grid_id": id, "released": released})
}

func (s *Server) requireArchive(w http.ResponseWriter) bool {
	if s.archiver == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "archive disabled"})
		return false
	}
	return true
}

// GET /api/sessions lists archived sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchive(w) {
		return
	}
	records, err := s.archiver.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]sessionRecordView, 0, len(records))
	for _, rec := range records {
		out = append(out, newSessionRecordView(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/sessions/{id}/report?format=markdown|grids|trades|equity
func (s *Server) handleSessionReport(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchive(w) {
		return
	}
	snap, err := s.archiver.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	report, err := s.reports.Generate(snap)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordReport()
	}

	var body, contentType string
	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown":
		body, contentType = reporting.RenderMarkdown(report), "text/markdown; charset=utf-8"
	case "grids":
		body, contentType = reporting.RenderCSV(report.Grids), "text/csv"
	case "trades":
		body, contentType = reporting.RenderTradesCSV(report.Performance.Trades), "text/csv"
	case "equity":
		body, contentType = reporting.RenderEquityCSV(snap.ValueSeries), "text/csv"
	default:
		s.writeError(w, fmt.Errorf("%w: unknown report format %q", domain.ErrInvalidConfiguration, format))
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write([]byte(body))
}

// GET /api/sessions/{id}/verify replays an archived session.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchive(w) {
		return
	}
	result, err := s.verifier.VerifySession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
