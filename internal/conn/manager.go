package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/trackdeck/realtime/internal/core/domain"
	"github.com/trackdeck/realtime/internal/metrics"
)

var (
	// ErrAlreadyConnected is returned by Connect while a connection is live.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrBinaryDisabled is returned by SendBinary when binary framing is
	// not configured. The message is not enqueued.
	ErrBinaryDisabled = errors.New("binary framing is not enabled")
)

// SendResult reports what happened to an outbound message.
type SendResult int

const (
	SendSent    SendResult = iota // written to the socket
	SendQueued                    // held for the next flush
	SendDropped                   // queue at capacity
	SendFailed                    // write error or binary framing disabled
)

func (r SendResult) String() string {
	switch r {
	case SendSent:
		return "sent"
	case SendQueued:
		return "queued"
	case SendDropped:
		return "dropped"
	case SendFailed:
		return "failed"
	}
	return "unknown"
}

// Config holds connection manager settings.
type Config struct {
	Endpoint             string        `yaml:"endpoint"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	MaxReconnectDelay    time.Duration `yaml:"max_reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	QueueCapacity        int           `yaml:"queue_capacity"`
	DialTimeout          time.Duration `yaml:"dial_timeout"`
	BinaryFrames         bool          `yaml:"binary_frames"`
	Compression          bool          `yaml:"compression"`
}

func (c *Config) applyDefaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 100
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// Metrics is a point-in-time snapshot of connection counters. Counters are
// cumulative and reset only via ResetMetrics.
type Metrics struct {
	State             State
	ConnectedFor      time.Duration
	LastMessageAt     time.Time
	MessagesReceived  uint64
	MessagesSent      uint64
	Errors            uint64
	ReconnectAttempts int
	QueueDepth        int
}

// Manager owns the socket, the lifecycle state machine, the outbound queue,
// and the heartbeat. It emits typed events on its Bus.
type Manager struct {
	cfg     Config
	dial    Dialer
	log     *slog.Logger
	bus     *Bus
	backoff Backoff
	queue   *Queue

	// writeMu serializes socket writes; gorilla/websocket supports only one
	// concurrent writer per connection.
	writeMu sync.Mutex

	mu         sync.Mutex
	state      State
	sock       Socket
	attempts   int
	gen        int // connection generation, invalidates stale dials, loops, and timers
	hbStop     chan struct{}
	retryTimer *time.Timer

	connectedAt   time.Time
	lastMessageAt time.Time
	received      uint64
	sent          uint64
	errCount      uint64
}

// NewManager creates a connection manager. A nil dialer means the
// gorilla/websocket dialer; a nil logger means slog.Default.
func NewManager(cfg Config, dial Dialer, log *slog.Logger) *Manager {
	cfg.applyDefaults()
	if dial == nil {
		dial = WebsocketDialer(cfg.Compression)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		dial:    dial,
		log:     log,
		bus:     NewBus(),
		backoff: Backoff{Base: cfg.ReconnectBaseDelay, Max: cfg.MaxReconnectDelay},
		queue:   NewQueue(cfg.QueueCapacity),
	}
}

// Events returns the manager's event bus for subscriptions.
func (m *Manager) Events() *Bus { return m.bus }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Metrics returns a snapshot of the connection counters.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var connectedFor time.Duration
	if m.state == StateConnected {
		connectedFor = time.Since(m.connectedAt)
	}
	return Metrics{
		State:             m.state,
		ConnectedFor:      connectedFor,
		LastMessageAt:     m.lastMessageAt,
		MessagesReceived:  m.received,
		MessagesSent:      m.sent,
		Errors:            m.errCount,
		ReconnectAttempts: m.attempts,
		QueueDepth:        m.queue.Len(),
	}
}

// ResetMetrics zeroes the cumulative counters. State and queue depth are
// live values and unaffected.
func (m *Manager) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = 0
	m.sent = 0
	m.errCount = 0
	m.lastMessageAt = time.Time{}
}

// Connect dials the configured endpoint. Fails fast when already connected.
// On dial failure the manager moves to StateError and the error is returned.
// A Disconnect (or newer Connect) arriving while the dial is in flight wins:
// the late socket is closed and the newer state stands.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()
	m.publishState(StateConnecting)

	sock, err := m.dial(ctx, m.cfg.Endpoint)
	if err != nil {
		connErr := fmt.Errorf("failed to connect to %s: %w", m.cfg.Endpoint, err)
		m.mu.Lock()
		if gen != m.gen {
			// Superseded mid-dial; whoever bumped the generation owns the state.
			m.mu.Unlock()
			return connErr
		}
		m.state = StateError
		m.errCount++
		m.mu.Unlock()
		metrics.TransportErrors.Inc()
		m.publishState(StateError)
		m.publishError(connErr, domain.SeverityHigh)
		return connErr
	}

	m.finishConnect(sock, gen)
	return nil
}

// Disconnect tears everything down: reconnect timer, heartbeat, queue, and
// the socket (after a best-effort unsubscribe and close handshake).
// Idempotent.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.teardownTimersLocked()
	m.gen++
	sock := m.sock
	m.sock = nil
	wasConnected := m.state == StateConnected
	alreadyDown := m.state == StateDisconnected && sock == nil
	m.state = StateDisconnected
	m.attempts = 0
	m.queue.Clear()
	m.mu.Unlock()

	if sock != nil {
		if wasConnected {
			if data, err := json.Marshal(domain.ControlMessage(domain.MessageTypeUnsubscribe)); err == nil {
				_ = m.writeMessage(sock, websocket.TextMessage, data)
			}
			_ = m.writeMessage(sock, websocket.CloseMessage, closeMessage())
		}
		_ = sock.Close()
	}

	if !alreadyDown {
		m.publishState(StateDisconnected)
	}
	return nil
}

// writeMessage is the single funnel for socket writes. Callers on every
// goroutine (senders, queue flush, heartbeat, close handshake) go through it
// so the socket never sees two writers at once.
func (m *Manager) writeMessage(sock Socket, msgType int, data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return sock.WriteMessage(msgType, data)
}

// Redial cycles the connection. Used by the connection recovery plan.
func (m *Manager) Redial(ctx context.Context) error {
	if err := m.Disconnect(); err != nil {
		return err
	}
	return m.Connect(ctx)
}

// Send serializes and transmits an envelope when connected; otherwise it is
// queued (subject to capacity). Never returns an error for the disconnected
// path.
func (m *Manager) Send(env *domain.Envelope) (SendResult, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return SendFailed, fmt.Errorf("failed to serialize message: %w", err)
	}
	return m.writeOrQueue(websocket.TextMessage, data)
}

// SendBinary encodes and transmits a binary frame. Fails without enqueueing
// when binary framing is not configured.
func (m *Manager) SendBinary(f Frame) (SendResult, error) {
	if !m.cfg.BinaryFrames {
		return SendFailed, ErrBinaryDisabled
	}
	return m.writeOrQueue(websocket.BinaryMessage, EncodeFrame(f))
}

func (m *Manager) writeOrQueue(msgType int, data []byte) (SendResult, error) {
	m.mu.Lock()
	sock := m.sock
	connected := m.state == StateConnected
	m.mu.Unlock()

	if connected && sock != nil {
		if err := m.writeMessage(sock, msgType, data); err != nil {
			m.mu.Lock()
			m.errCount++
			m.mu.Unlock()
			metrics.TransportErrors.Inc()
			return SendFailed, fmt.Errorf("failed to send message: %w", err)
		}
		m.mu.Lock()
		m.sent++
		m.mu.Unlock()
		metrics.MessagesSent.Inc()
		return SendSent, nil
	}

	if m.queue.Push(msgType, data) {
		return SendQueued, nil
	}
	metrics.MessagesDropped.Inc()
	return SendDropped, nil
}

// finishConnect installs a freshly dialed socket. dialGen is the generation
// captured before the dial started; when it no longer matches, a Disconnect
// or a newer connection won the race while the dial was in flight, and the
// late socket is closed instead of installed.
func (m *Manager) finishConnect(sock Socket, dialGen int) bool {
	m.mu.Lock()
	if dialGen != m.gen {
		m.mu.Unlock()
		_ = sock.Close()
		return false
	}
	m.teardownTimersLocked()
	m.sock = sock
	m.state = StateConnected
	m.attempts = 0
	m.connectedAt = time.Now()
	m.gen++
	gen := m.gen
	m.hbStop = make(chan struct{})
	hbStop := m.hbStop
	m.mu.Unlock()

	m.publishState(StateConnected)

	go m.readLoop(sock, gen)
	go m.heartbeat(sock, gen, hbStop)

	m.flushQueue(sock)
	return true
}

// flushQueue writes pending messages in insertion order. A failed write is
// counted and skipped; remaining messages are still attempted.
func (m *Manager) flushQueue(sock Socket) {
	for _, qm := range m.queue.Drain() {
		if err := m.writeMessage(sock, qm.Type, qm.Data); err != nil {
			m.log.Warn("failed to flush queued message", "error", err)
			m.mu.Lock()
			m.errCount++
			m.mu.Unlock()
			metrics.TransportErrors.Inc()
			continue
		}
		m.mu.Lock()
		m.sent++
		m.mu.Unlock()
		metrics.MessagesSent.Inc()
	}
}

func (m *Manager) readLoop(sock Socket, gen int) {
	for {
		msgType, data, err := sock.ReadMessage()
		if err != nil {
			m.handleReadError(gen, err)
			return
		}
		m.handleMessage(msgType, data)
	}
}

func (m *Manager) handleMessage(msgType int, data []byte) {
	m.mu.Lock()
	m.lastMessageAt = time.Now()
	m.received++
	m.mu.Unlock()
	metrics.MessagesReceived.Inc()

	if msgType == websocket.BinaryMessage {
		frame, err := DecodeFrame(data)
		if err != nil {
			m.log.Warn("dropping malformed binary frame", "error", err)
			metrics.ProtocolErrors.Inc()
			return
		}
		m.bus.Publish(Event{Kind: EventFrameData, Frame: &frame})
		return
	}

	env, err := domain.ParseEnvelope(data)
	if err != nil {
		m.log.Warn("dropping malformed message", "error", err)
		metrics.ProtocolErrors.Inc()
		return
	}

	kind, ok := eventKindFor(env.Type)
	if !ok {
		m.log.Debug("dropping message with unrouted type", "type", env.Type)
		return
	}
	m.bus.Publish(Event{Kind: kind, Envelope: env})
}

func (m *Manager) handleReadError(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen {
		// Disconnect or a newer connection already took over.
		m.mu.Unlock()
		return
	}
	m.teardownTimersLocked()
	if m.sock != nil {
		_ = m.sock.Close()
		m.sock = nil
	}
	m.gen++

	if isNormalClose(err) {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.publishState(StateDisconnected)
		return
	}

	m.errCount++
	m.mu.Unlock()
	metrics.TransportErrors.Inc()
	m.log.Warn("connection lost", "error", err)
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.state = StateError
		m.mu.Unlock()
		m.publishState(StateError)
		exhausted := fmt.Errorf("reconnect attempts exhausted after %d tries", m.cfg.MaxReconnectAttempts)
		m.publishError(exhausted, domain.SeverityCritical)
		return
	}
	m.attempts++
	attempt := m.attempts
	m.state = StateReconnecting
	delay := m.backoff.Delay(attempt)
	m.retryTimer = time.AfterFunc(delay, m.retry)
	m.mu.Unlock()

	m.publishState(StateReconnecting)
	m.bus.Publish(Event{
		Kind:        EventReconnectAttempt,
		Attempt:     attempt,
		MaxAttempts: m.cfg.MaxReconnectAttempts,
	})
	metrics.ReconnectAttempts.Inc()
	m.log.Info("scheduling reconnect",
		"attempt", attempt,
		"max_attempts", m.cfg.MaxReconnectAttempts,
		"delay", delay)
}

func (m *Manager) retry() {
	m.mu.Lock()
	if m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	gen := m.gen
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	defer cancel()

	sock, err := m.dial(ctx, m.cfg.Endpoint)
	if err != nil {
		m.mu.Lock()
		if gen != m.gen {
			// Disconnect arrived while the dial was in flight; stay down.
			m.mu.Unlock()
			return
		}
		m.errCount++
		m.mu.Unlock()
		metrics.TransportErrors.Inc()
		m.log.Warn("reconnect failed", "error", err)
		m.scheduleReconnect()
		return
	}

	m.finishConnect(sock, gen)
}

// teardownTimersLocked stops the reconnect timer and the heartbeat together
// so neither can fire into a closed socket. Caller holds m.mu.
func (m *Manager) teardownTimersLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.hbStop != nil {
		close(m.hbStop)
		m.hbStop = nil
	}
}

func (m *Manager) heartbeat(sock Socket, gen int, stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			live := m.gen == gen && m.state == StateConnected
			m.mu.Unlock()
			if !live {
				return
			}
			data, err := json.Marshal(domain.ControlMessage(domain.MessageTypePing))
			if err != nil {
				return
			}
			if err := m.writeMessage(sock, websocket.TextMessage, data); err != nil {
				// The read loop observes the close and drives reconnection.
				m.log.Debug("heartbeat write failed", "error", err)
				return
			}
		}
	}
}

func (m *Manager) publishState(s State) {
	metrics.ConnectionState.Set(float64(s))
	m.bus.Publish(Event{Kind: EventStateChange, State: s})
}

func (m *Manager) publishError(err error, sev domain.Severity) {
	m.bus.Publish(Event{
		Kind: EventError,
		Err:  err,
		Report: &domain.ErrorReport{
			Type:     domain.FailureTypeConnection,
			Severity: sev,
			Message:  err.Error(),
		},
	})
}
