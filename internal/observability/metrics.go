// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/session"
)

// DefaultNamespace prefixes every metric when no namespace is given.
const DefaultNamespace = "grid_trading_lab"

var sessionStates = []domain.SessionState{
	domain.SessionCreated,
	domain.SessionRunning,
	domain.SessionPaused,
	domain.SessionStopped,
}

// Metrics holds all Prometheus metrics for the application.
// It implements session.Observer.
type Metrics struct {
	// Simulation metrics
	TicksProcessed     prometheus.Counter
	CurrentPrice       prometheus.Gauge
	PortfolioEquity    prometheus.Gauge
	SessionState       *prometheus.GaugeVec
	SessionTransitions *prometheus.CounterVec

	// Execution metrics
	Executions    *prometheus.CounterVec
	FeesPaid      prometheus.Counter
	FillSlippage  prometheus.Histogram
	ActiveGrids   prometheus.Gauge
	GridsByStatus *prometheus.CounterVec

	// Archive and reporting metrics
	ArchiveRuns      *prometheus.CounterVec
	ArchiveDuration  prometheus.Histogram
	ReportsGenerated prometheus.Counter

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	mu     sync.Mutex
	active map[string]struct{} // grid ids counted in ActiveGrids
}

// NewMetrics creates a new Metrics instance with all metrics registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Simulation metrics
		TicksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "ticks_processed_total",
			Help:      "Total number of price ticks processed",
		}),
		CurrentPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "current_price",
			Help:      "Price of the latest tick",
		}),
		PortfolioEquity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "portfolio_equity",
			Help:      "Portfolio value including grid reserves at the latest tick",
		}),
		SessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current session state, 0 otherwise",
		}, []string{"state"}),
		SessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Total number of session state transitions",
		}, []string{"from", "to"}),

		// Execution metrics
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "executions_total",
			Help:      "Total number of order executions by side and result",
		}, []string{"side", "result"}),
		FeesPaid: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "fees_paid_total",
			Help:      "Total fees paid by successful executions, in base currency",
		}),
		FillSlippage: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "fill_slippage_ratio",
			Help:      "Applied slippage fraction per execution",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.05},
		}),
		ActiveGrids: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "active",
			Help:      "Number of active grids",
		}),
		GridsByStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "status_changes_total",
			Help:      "Total number of grid status changes by new status",
		}, []string{"status"}),

		// Archive and reporting metrics
		ArchiveRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "runs_total",
			Help:      "Total number of session archive runs by status",
		}, []string{"status"}),
		ArchiveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "duration_seconds",
			Help:      "Session archive duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "generated_total",
			Help:      "Total number of performance reports generated",
		}),

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		active: make(map[string]struct{}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// OnTick records a processed tick.
func (m *Metrics) OnTick(_ string, tick domain.PriceTick, equity float64) {
	m.TicksProcessed.Inc()
	m.CurrentPrice.Set(tick.Price)
	m.PortfolioEquity.Set(equity)
}

// OnExecution records an execution attempt.
func (m *Metrics) OnExecution(_ string, e *domain.OrderExecution) {
	result := "success"
	if !e.Success {
		result = "failed"
	}
	m.Executions.WithLabelValues(string(e.Side), result).Inc()
	if e.Success {
		m.FeesPaid.Add(e.Fee)
		m.FillSlippage.Observe(e.Slippage)
	}
}

// OnStateChange records a session transition.
func (m *Metrics) OnStateChange(_ string, from, to domain.SessionState) {
	m.SessionTransitions.WithLabelValues(string(from), string(to)).Inc()
	for _, s := range sessionStates {
		v := 0.0
		if s == to {
			v = 1
		}
		m.SessionState.WithLabelValues(string(s)).Set(v)
	}
}

// OnGridChange tracks the active grid count and status changes.
func (m *Metrics) OnGridChange(_ string, g *domain.SimulatedGrid) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, counted := m.active[g.ID]
	switch {
	case g.Status == domain.GridActive && !counted:
		m.active[g.ID] = struct{}{}
		m.ActiveGrids.Inc()
		m.GridsByStatus.WithLabelValues(string(g.Status)).Inc()
	case g.Status != domain.GridActive && counted:
		delete(m.active, g.ID)
		m.ActiveGrids.Dec()
		m.GridsByStatus.WithLabelValues(string(g.Status)).Inc()
	}
}

// RecordArchive records an archive run.
func (m *Metrics) RecordArchive(seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ArchiveRuns.WithLabelValues(status).Inc()
	m.ArchiveDuration.Observe(seconds)
}

// RecordReport increments the reports generated counter.
func (m *Metrics) RecordReport() {
	m.ReportsGenerated.Inc()
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(route, code string, seconds float64) {
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}

var _ session.Observer = (*Metrics)(nil)
