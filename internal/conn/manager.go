package conn

import (
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/entities"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Buffered outbound frames per connection.
	sendBuffer = 256

	// Buffered events per subscriber.
	subscriberBuffer = 64
)

// Config carries the connection policy. The policy shape (exponential,
// capped, jittered backoff; ping-driven liveness) is the contract, the
// constants are tunable.
type Config struct {
	URL string

	// TokenProvider yields the bearer token for the handshake. Called per
	// attempt so a refreshed token is picked up on reconnect.
	TokenProvider func() (string, error)

	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	// PongTimeout bounds dead-connection detection: no pong or frame within
	// this window declares the connection dead even if the transport has not
	// signalled closure.
	PongTimeout time.Duration

	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Manager owns the single logical connection to the orchestration service
// and hides reconnection from callers. Only the manager opens or closes the
// socket; only the manager mutates the connection state.
type Manager struct {
	cfg    Config
	logger *zap.Logger
	dialer *websocket.Dialer

	mu          sync.Mutex
	state       entities.ConnectionState
	attempt     int
	nextRetryAt time.Time
	latency     time.Duration
	reason      string
	conn        *websocket.Conn
	send        chan *OutboundFrame
	done        chan struct{}
	gen         int
	retryTimer  *time.Timer
	lastPingAt  time.Time
	closed      bool

	frameSubs map[int]chan *InboundFrame
	stateSubs map[int]chan entities.ConnectionSnapshot
	nextSub   int
}

// NewManager creates a connection manager. Call Connect to start.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 3 * cfg.PingInterval
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Second
	}

	return &Manager{
		cfg:    cfg,
		logger: logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		state:     entities.ConnectionStateDisconnected,
		frameSubs: make(map[int]chan *InboundFrame),
		stateSubs: make(map[int]chan entities.ConnectionSnapshot),
	}
}

// Connect starts a connection attempt. Idempotent: a call while already
// connecting or connected is a no-op. Also serves as the manual retry action
// after a terminal auth failure. An outstanding retry timer is cancelled so
// an out-of-band connect cannot race the scheduled one.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.state == entities.ConnectionStateConnecting || m.state == entities.ConnectionStateConnected {
		m.mu.Unlock()
		return
	}
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}

	m.gen++
	gen := m.gen
	m.state = entities.ConnectionStateConnecting
	m.reason = ""
	m.publishStateLocked()
	m.mu.Unlock()

	go m.dial(gen)
}

// Send transmits a frame if and only if the connection is up. Returns false
// immediately otherwise: no queuing, no blocking. At-most-once transmission;
// delivery confirmation arrives asynchronously as an ack or echo frame.
func (m *Manager) Send(frame *OutboundFrame) bool {
	m.mu.Lock()
	if m.state != entities.ConnectionStateConnected || m.send == nil {
		m.mu.Unlock()
		return false
	}
	send := m.send
	m.mu.Unlock()

	select {
	case send <- frame:
		return true
	default:
		m.logger.Warn("Outbound buffer full, frame dropped")
		return false
	}
}

// Snapshot returns the current observable connection status.
func (m *Manager) Snapshot() entities.ConnectionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// SubscribeFrames registers a consumer of inbound frames. Frames from the
// socket are delivered in arrival order. The returned func unsubscribes.
func (m *Manager) SubscribeFrames() (<-chan *InboundFrame, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan *InboundFrame, subscriberBuffer)
	m.frameSubs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.frameSubs[id]; ok {
			delete(m.frameSubs, id)
			close(sub)
		}
	}
}

// SubscribeState registers a consumer of connection state transitions.
func (m *Manager) SubscribeState() (<-chan entities.ConnectionSnapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan entities.ConnectionSnapshot, subscriberBuffer)
	m.stateSubs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.stateSubs[id]; ok {
			delete(m.stateSubs, id)
			close(sub)
		}
	}
}

// Close tears the connection down permanently.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.teardownConnLocked()
	m.state = entities.ConnectionStateDisconnected
	m.publishStateLocked()

	for id, sub := range m.frameSubs {
		delete(m.frameSubs, id)
		close(sub)
	}
	for id, sub := range m.stateSubs {
		delete(m.stateSubs, id)
		close(sub)
	}
}

// dial performs one handshake attempt for the given connection generation.
func (m *Manager) dial(gen int) {
	token, err := m.cfg.TokenProvider()
	if err != nil {
		m.logger.Error("Token unavailable, handshake aborted", zap.Error(err))
		m.failTerminal(gen, fmt.Sprintf("token unavailable: %v", err))
		return
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := m.dialer.Dial(m.cfg.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			m.logger.Warn("Handshake rejected", zap.Int("status", resp.StatusCode))
			m.failTerminal(gen, "handshake rejected by server")
			return
		}
		m.logger.Warn("Dial failed", zap.Error(err))
		m.scheduleRetry(gen, err.Error())
		return
	}

	// Authenticate in-band and wait for the ack before declaring the
	// connection usable.
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(CreateAuthFrame(token)); err != nil {
		ws.Close()
		m.scheduleRetry(gen, "auth frame write failed")
		return
	}

	ws.SetReadDeadline(time.Now().Add(m.cfg.HandshakeTimeout))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		m.scheduleRetry(gen, "no handshake response")
		return
	}

	frame, err := DecodeFrame(raw)
	if err != nil {
		ws.Close()
		m.scheduleRetry(gen, "malformed handshake response")
		return
	}
	if frame.IsAuthRejection() {
		ws.Close()
		m.logger.Warn("Authentication rejected", zap.String("code", frame.Code))
		m.failTerminal(gen, frame.Message)
		return
	}
	if frame.Kind != FrameKindAck {
		ws.Close()
		m.scheduleRetry(gen, fmt.Sprintf("unexpected handshake frame: %s", frame.Kind))
		return
	}

	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		ws.Close()
		return
	}
	m.conn = ws
	m.send = make(chan *OutboundFrame, sendBuffer)
	m.done = make(chan struct{})
	m.state = entities.ConnectionStateConnected
	m.attempt = 0
	m.nextRetryAt = time.Time{}
	m.publishStateLocked()
	send, done := m.send, m.done
	m.mu.Unlock()

	m.logger.Info("Connected", zap.String("url", m.cfg.URL))

	go m.writePump(ws, gen, send, done)
	go m.readPump(ws, gen)
}

// readPump pumps frames from the websocket to subscribers.
func (m *Manager) readPump(ws *websocket.Conn, gen int) {
	ws.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
		m.mu.Lock()
		if !m.lastPingAt.IsZero() {
			m.latency = time.Since(m.lastPingAt)
		}
		m.mu.Unlock()
		return nil
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("Read failed", zap.Error(err))
			}
			m.handleDisconnect(gen, "read failure")
			return
		}

		// Any inbound traffic proves liveness.
		ws.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))

		frame, err := DecodeFrame(raw)
		if err != nil {
			m.logger.Warn("Dropping malformed frame", zap.Error(err))
			continue
		}

		if frame.IsAuthRejection() {
			m.logger.Warn("Session revoked by server", zap.String("code", frame.Code))
			m.failTerminal(gen, frame.Message)
			return
		}

		m.publishFrame(frame)
	}
}

// writePump pumps outbound frames and heartbeat pings to the websocket.
func (m *Manager) writePump(ws *websocket.Conn, gen int, send chan *OutboundFrame, done chan struct{}) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(frame); err != nil {
				m.logger.Error("Failed to write frame", zap.Error(err))
				m.handleDisconnect(gen, "write failure")
				return
			}

		case <-ticker.C:
			m.mu.Lock()
			m.lastPingAt = time.Now()
			m.mu.Unlock()
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.handleDisconnect(gen, "ping failure")
				return
			}

		case <-done:
			return
		}
	}
}

// handleDisconnect reacts to a dead connection: tear down, move to
// reconnecting, schedule exactly one retry. Stale generations are ignored so
// a pump outliving its connection cannot disturb the replacement.
func (m *Manager) handleDisconnect(gen int, reason string) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	// Both pumps die on the same drop; only the first one past this point
	// schedules the retry.
	if m.state != entities.ConnectionStateConnected {
		m.mu.Unlock()
		return
	}
	m.teardownConnLocked()
	m.mu.Unlock()

	m.scheduleRetry(gen, reason)
}

// scheduleRetry transitions to reconnecting and arms the single retry timer.
func (m *Manager) scheduleRetry(gen int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.gen {
		return
	}

	m.attempt++
	delay := jitter(baseDelay(m.attempt, m.cfg.BackoffBase, m.cfg.BackoffCap))
	m.state = entities.ConnectionStateReconnecting
	m.reason = reason
	m.nextRetryAt = time.Now().Add(delay)

	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.retryTimer = time.AfterFunc(delay, m.retryFire)

	m.logger.Info("Reconnect scheduled",
		zap.Int("attempt", m.attempt),
		zap.Duration("delay", delay),
		zap.String("reason", reason))

	m.publishStateLocked()
}

// retryFire is the retry timer callback: one connect attempt, reusing the
// idempotent entry point.
func (m *Manager) retryFire() {
	m.mu.Lock()
	if m.closed || m.state != entities.ConnectionStateReconnecting {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	m.gen++
	gen := m.gen
	m.state = entities.ConnectionStateConnecting
	m.publishStateLocked()
	m.mu.Unlock()

	go m.dial(gen)
}

// failTerminal records an unrecoverable failure. External action (a fresh
// token, a manual retry) is required to leave this state.
func (m *Manager) failTerminal(gen int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.gen {
		return
	}
	m.teardownConnLocked()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.state = entities.ConnectionStateFailed
	m.reason = reason
	m.attempt = 0
	m.nextRetryAt = time.Time{}
	m.publishStateLocked()
}

func (m *Manager) teardownConnLocked() {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	m.send = nil
	m.lastPingAt = time.Time{}
}

func (m *Manager) snapshotLocked() entities.ConnectionSnapshot {
	return entities.ConnectionSnapshot{
		State:       m.state,
		Attempt:     m.attempt,
		NextRetryAt: m.nextRetryAt,
		LatencyMs:   m.latency.Milliseconds(),
		Reason:      m.reason,
	}
}

func (m *Manager) publishStateLocked() {
	snap := m.snapshotLocked()
	for _, sub := range m.stateSubs {
		select {
		case sub <- snap:
		default:
		}
	}
}

func (m *Manager) publishFrame(frame *InboundFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.frameSubs {
		select {
		case sub <- frame:
		default:
			m.logger.Warn("Frame subscriber lagging, frame dropped")
		}
	}
}

// baseDelay returns the un-jittered delay for the given attempt:
// base doubling per attempt, held at cap.
func baseDelay(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	if delay > float64(cap) {
		delay = float64(cap)
	}
	return time.Duration(delay)
}

// jitter spreads a delay across [d/2, d) so simultaneously dropped clients
// do not reconnect in lockstep.
func jitter(d time.Duration) time.Duration {
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
