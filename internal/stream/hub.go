package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/session"
)

// Topic names a broadcast channel.
type Topic string

// Topic constants
const (
	TopicTicks      Topic = "ticks"
	TopicExecutions Topic = "executions"
	TopicSession    Topic = "session"
	TopicGrids      Topic = "grids"
)

// AllTopics lists every topic a client may subscribe to.
var AllTopics = []Topic{TopicTicks, TopicExecutions, TopicSession, TopicGrids}

func validTopic(t Topic) bool {
	for _, known := range AllTopics {
		if t == known {
			return true
		}
	}
	return false
}

// Message types sent by the hub.
const (
	MsgConnected    = "connection_established"
	MsgSubscribed   = "subscribed"
	MsgUnsubscribed = "unsubscribed"
	MsgPong         = "pong"
	MsgError        = "error"
	MsgTick         = "tick"
	MsgExecution    = "execution"
	MsgStateChange  = "state_change"
	MsgGridUpdate   = "grid_update"
)

// Message is the JSON envelope written to clients.
type Message struct {
	Type      string    `json:"type"`
	Topic     Topic     `json:"topic,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// ClientMessage is a command sent by a client.
type ClientMessage struct {
	Type  string `json:"type"` // subscribe, unsubscribe, ping
	Topic Topic  `json:"topic,omitempty"`
}

// TickData is the payload of a tick message.
type TickData struct {
	Index  int64   `json:"index"`
	Time   int64   `json:"time"` // simulated unix millis
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
	Equity float64 `json:"equity"`
}

// ExecutionData is the payload of an execution message.
type ExecutionData struct {
	ID            string  `json:"id"`
	OrderID       string  `json:"order_id"`
	GridID        string  `json:"grid_id"`
	Side          string  `json:"side"`
	Amount        float64 `json:"amount"`
	Price         float64 `json:"price"`
	MarketPrice   float64 `json:"market_price"`
	Fee           float64 `json:"fee"`
	Slippage      float64 `json:"slippage"`
	TickIndex     int64   `json:"tick_index"`
	Success       bool    `json:"success"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

// StateData is the payload of a state change message.
type StateData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GridData is the payload of a grid update message.
type GridData struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	PendingOrders int     `json:"pending_orders"`
	FilledOrders  int     `json:"filled_orders"`
	Reserved      float64 `json:"reserved"`
	PnL           float64 `json:"pnl"`
	TotalTrades   int     `json:"total_trades"`
	TotalFees     float64 `json:"total_fees"`
}

// HubConfig configures client connections.
type HubConfig struct {
	// SendBuffer is the number of queued messages per client before it is dropped.
	SendBuffer int
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// PingInterval is the interval between keepalive pings.
	PingInterval time.Duration
	// ReadTimeout is how long a client may stay silent, pongs included.
	ReadTimeout time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
	}
}

// Hub fans session events out to websocket clients by topic.
// It implements session.Observer; broadcasts never block the session.
type Hub struct {
	config   HubConfig
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader
	clock    func() time.Time

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

var _ session.Observer = (*Hub)(nil)

// HubOptions contains configuration for creating a Hub.
type HubOptions struct {
	Config *HubConfig
	Logger logrus.FieldLogger
	Clock  func() time.Time
}

// NewHub creates a hub with no clients.
func NewHub(opts HubOptions) *Hub {
	cfg := DefaultHubConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultHubConfig().SendBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Hub{
		config: cfg,
		logger: logger.WithField("component", "stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clock:   clock,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client.
// The optional topics query parameter is a comma-separated topic list;
// without it the client receives every topic.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topics, err := parseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.config.SendBuffer),
		topics: topics,
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("remote", r.RemoteAddr).Debug("stream client connected")

	c.enqueue(h.encode(Message{Type: MsgConnected, Data: c.topicList()}))
	go c.writePump()
	go c.readPump()
}

func parseTopics(raw string) (map[Topic]bool, error) {
	topics := make(map[Topic]bool)
	if strings.TrimSpace(raw) == "" {
		for _, t := range AllTopics {
			topics[t] = true
		}
		return topics, nil
	}
	for _, part := range strings.Split(raw, ",") {
		t := Topic(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !validTopic(t) {
			return nil, fmt.Errorf("unknown topic %q", t)
		}
		topics[t] = true
	}
	return topics, nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to every client subscribed to topic and
// returns the number of clients it was queued for. Clients whose send
// buffer is full are disconnected.
func (h *Hub) Broadcast(topic Topic, msgType, sessionID string, data any) int {
	payload := h.encode(Message{Type: msgType, Topic: topic, SessionID: sessionID, Data: data})
	if payload == nil {
		return 0
	}

	h.mu.RLock()
	var targets, slow []*client
	for c := range h.clients {
		if c.subscribed(topic) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.enqueue(payload) {
			sent++
		} else {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.logger.Warn("dropping slow stream client")
		h.remove(c)
	}
	return sent
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *Hub) encode(m Message) []byte {
	m.Timestamp = h.clock().UTC()
	b, err := json.Marshal(m)
	if err != nil {
		h.logger.WithError(err).WithField("type", m.Type).Error("encode stream message")
		return nil
	}
	return b
}

// TickPayload converts a tick to its wire form.
func TickPayload(tick domain.PriceTick, equity float64) TickData {
	return TickData{
		Index:  tick.Index,
		Time:   tick.Timestamp.UnixMilli(),
		Price:  tick.Price,
		Volume: tick.Volume,
		Equity: equity,
	}
}

// ExecutionPayload converts an execution to its wire form.
func ExecutionPayload(exec *domain.OrderExecution) ExecutionData {
	return ExecutionData{
		ID:            exec.ID,
		OrderID:       exec.OrderID,
		GridID:        exec.GridID,
		Side:          string(exec.Side),
		Amount:        exec.Amount,
		Price:         exec.Price,
		MarketPrice:   exec.MarketPrice,
		Fee:           exec.Fee,
		Slippage:      exec.Slippage,
		TickIndex:     exec.TickIndex,
		Success:       exec.Success,
		FailureReason: exec.FailureReason,
	}
}

// GridPayload converts a grid to its wire form.
func GridPayload(g *domain.SimulatedGrid) GridData {
	return GridData{
		ID:            g.ID,
		Status:        string(g.Status),
		PendingOrders: len(g.PendingOrders()),
		FilledOrders:  len(g.FilledOrders()),
		Reserved:      g.Reserved,
		PnL:           g.PnL,
		TotalTrades:   g.Metrics.TotalTrades,
		TotalFees:     g.Metrics.TotalFees,
	}
}

// OnTick implements session.Observer.
func (h *Hub) OnTick(sessionID string, tick domain.PriceTick, equity float64) {
	h.Broadcast(TopicTicks, MsgTick, sessionID, TickPayload(tick, equity))
}

// OnExecution implements session.Observer.
func (h *Hub) OnExecution(sessionID string, exec *domain.OrderExecution) {
	h.Broadcast(TopicExecutions, MsgExecution, sessionID, ExecutionPayload(exec))
}

// OnStateChange implements session.Observer.
func (h *Hub) OnStateChange(sessionID string, from, to domain.SessionState) {
	h.Broadcast(TopicSession, MsgStateChange, sessionID, StateData{From: string(from), To: string(to)})
}

// OnGridChange implements session.Observer.
func (h *Hub) OnGridChange(sessionID string, g *domain.SimulatedGrid) {
	h.Broadcast(TopicGrids, MsgGridUpdate, sessionID, GridPayload(g))
}
