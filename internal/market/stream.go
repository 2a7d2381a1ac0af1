package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agilanloganathan/coinfox/internal/domain"
	"github.com/agilanloganathan/coinfox/internal/infra"
	"github.com/gorilla/websocket"
)

// ErrOffline is reported once the client has exhausted its reconnect
// attempts and stopped trying.
var ErrOffline = errors.New("stream offline: max reconnect attempts exceeded")

// ConnState is the streaming connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// StreamStatus is the externally visible connection status.
type StreamStatus struct {
	State    ConnState
	Attempts int
	Offline  bool
}

// controlMessage is the subscribe/unsubscribe frame for the combined
// market stream.
type controlMessage struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// combinedMessage is an inbound combined-stream frame.
type combinedMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		LastPrice     json.Number `json:"c"`
		ChangePercent json.Number `json:"P"`
		Volume        json.Number `json:"v"`
	} `json:"data"`
}

// StreamClient maintains one WebSocket connection to the exchange's
// combined market stream and multiplexes per-symbol subscriptions over
// it. Every inbound tick merges into the TickerStore and immediately
// drives the alert evaluation hook; this is the low-latency path.
//
// Connection loss is recoverable: reconnects are attempted with
// delay = baseDelay * attempt, and after maxAttempts the client stops
// and surfaces a persistent offline status instead of crashing.
type StreamClient struct {
	url         string
	store       *TickerStore
	evalHook    EvalHook
	baseDelay   time.Duration
	maxAttempts int

	ReadTimeout  time.Duration
	PingInterval time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	state     ConnState
	attempts  int
	offline   bool
	refs      map[string]int
	listeners map[string]map[int]func(domain.Ticker)
	nextID    int
	msgID     int64

	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewStreamClient creates a client for the given combined-stream URL.
func NewStreamClient(url string, store *TickerStore, hook EvalHook) *StreamClient {
	return &StreamClient{
		url:          url,
		store:        store,
		evalHook:     hook,
		baseDelay:    infra.DefaultBaseDelay,
		maxAttempts:  infra.DefaultMaxAttempts,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		refs:         make(map[string]int),
		listeners:    make(map[string]map[int]func(domain.Ticker)),
	}
}

// SetBackoff overrides the reconnect policy. Zero values keep the
// defaults.
func (c *StreamClient) SetBackoff(baseDelay time.Duration, maxAttempts int) {
	if baseDelay > 0 {
		c.baseDelay = baseDelay
	}
	if maxAttempts > 0 {
		c.maxAttempts = maxAttempts
	}
}

// Start launches the connection loop.
func (c *StreamClient) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.runLoop(ctx)
}

// Stop terminates the client. Safe to call at any time; it leaves no
// dangling goroutines or open sockets.
func (c *StreamClient) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.closeConn()
	c.wg.Wait()
}

// Status returns the current connection status.
func (c *StreamClient) Status() StreamStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StreamStatus{State: c.state, Attempts: c.attempts, Offline: c.offline}
}

// Subscribe attaches a listener for one symbol's ticks and returns an
// unsubscribe handle. A remote SUBSCRIBE frame is only sent for the
// first listener on a symbol; UNSUBSCRIBE only when the last detaches.
// A nil fn holds the stream open without delivering ticks.
func (c *StreamClient) Subscribe(symbol string, fn func(domain.Ticker)) (unsubscribe func()) {
	stream := streamName(symbol)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	if c.listeners[stream] == nil {
		c.listeners[stream] = make(map[int]func(domain.Ticker))
	}
	if fn != nil {
		c.listeners[stream][id] = fn
	}
	c.refs[stream]++
	first := c.refs[stream] == 1
	connected := c.state == StateConnected
	c.mu.Unlock()

	if first && connected {
		if err := c.sendControl("SUBSCRIBE", stream); err != nil {
			slog.Warn("subscribe frame failed", "stream", stream, "err", err)
		}
	}

	return func() {
		c.mu.Lock()
		delete(c.listeners[stream], id)
		c.refs[stream]--
		last := c.refs[stream] <= 0
		if last {
			delete(c.refs, stream)
			delete(c.listeners, stream)
		}
		connected := c.state == StateConnected
		c.mu.Unlock()

		if last && connected {
			if err := c.sendControl("UNSUBSCRIBE", stream); err != nil {
				slog.Warn("unsubscribe frame failed", "stream", stream, "err", err)
			}
		}
	}
}

func streamName(symbol string) string {
	return strings.ToLower(symbol) + "usdt@ticker"
}

func (c *StreamClient) runLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			if !c.scheduleReconnect(ctx, err) {
				return
			}
			continue
		}

		c.readLoop(ctx)

		// Unexpected close while connected: back to Disconnected,
		// then reconnect from attempt 1.
		c.setState(StateDisconnected)
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !c.scheduleReconnect(ctx, errors.New("connection closed")) {
			return
		}
	}
}

// scheduleReconnect waits out the backoff delay for the next attempt.
// Returns false once the attempt budget is spent, after marking the
// client offline.
func (c *StreamClient) scheduleReconnect(ctx context.Context, cause error) bool {
	c.mu.Lock()
	c.attempts++
	attempt := c.attempts
	if attempt > c.maxAttempts {
		c.offline = true
		c.state = StateDisconnected
		c.mu.Unlock()
		slog.Error("stream offline", "attempts", attempt-1, "err", cause)
		return false
	}
	c.mu.Unlock()

	delay := infra.ReconnectDelay(attempt, c.baseDelay)
	slog.Warn("stream reconnecting", "attempt", attempt, "delay", delay, "err", cause)

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func (c *StreamClient) connect(ctx context.Context) error {
	c.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	streams := make([]string, 0, len(c.refs))
	for stream := range c.refs {
		streams = append(streams, stream)
	}
	c.mu.Unlock()

	// Re-establish every refcounted subscription on the new socket.
	for _, stream := range streams {
		if err := c.sendControl("SUBSCRIBE", stream); err != nil {
			c.closeConn()
			c.setState(StateDisconnected)
			return fmt.Errorf("resubscribe failed: %w", err)
		}
	}

	if c.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(ctx, conn)
	}

	slog.Info("stream connected", "url", c.url, "streams", len(streams))
	return nil
}

func (c *StreamClient) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				slog.Warn("stream read error", "err", err)
			}
			c.closeConn()
			return
		}

		c.handleMessage(msg)
	}
}

// handleMessage parses one inbound frame. Malformed frames are dropped
// and logged, never fatal.
func (c *StreamClient) handleMessage(msg []byte) {
	var m combinedMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		slog.Debug("dropping malformed stream message", "err", err)
		return
	}
	if m.Stream == "" || m.Data.LastPrice.String() == "" {
		// Control acknowledgements and heartbeats land here.
		return
	}

	symbol := strings.ToUpper(strings.TrimSuffix(strings.Split(m.Stream, "@")[0], "usdt"))
	price, err := parseDecimal(m.Data.LastPrice)
	if err != nil {
		slog.Debug("dropping malformed stream price", "stream", m.Stream, "err", err)
		return
	}

	update := domain.PartialTicker{
		Price:     &price,
		Change24h: decimalPtr(m.Data.ChangePercent),
		Volume24h: decimalPtr(m.Data.Volume),
	}
	merged := c.store.Merge(symbol, update, SourceStream, time.Now())

	if c.evalHook != nil {
		c.evalHook(symbol, merged)
	}

	c.mu.Lock()
	var fns []func(domain.Ticker)
	for _, fn := range c.listeners[m.Stream] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(merged)
	}
}

func (c *StreamClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			current := c.conn
			c.mu.Unlock()
			if current != conn {
				return
			}
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				slog.Warn("stream ping failed", "err", err)
				c.closeConn()
				return
			}
		}
	}
}

func (c *StreamClient) sendControl(method, stream string) error {
	c.mu.Lock()
	conn := c.conn
	offline := c.offline
	c.msgID++
	id := c.msgID
	c.mu.Unlock()
	if conn == nil {
		if offline {
			return ErrOffline
		}
		return errors.New("stream not connected")
	}

	frame, err := json.Marshal(controlMessage{Method: method, Params: []string{stream}, ID: id})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *StreamClient) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *StreamClient) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
