// Package websocket maintains the market-data connection to the Polymarket
// CLOB feed: one connection, ping/pong liveness, and automatic reconnection
// with exponential backoff. Parsed events are fanned out on a buffered
// channel; the feed is never allowed to block on a slow consumer.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Envelope is one event from the feed, with its type peeked so the consumer
// can pick the right wire struct to decode Data into.
type Envelope struct {
	EventType string
	Data      json.RawMessage
	Received  time.Time
}

// Config holds WebSocket manager configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// Manager manages a single WebSocket connection to the market feed.
type Manager struct {
	url          string
	conn         *websocket.Conn
	logger       *zap.Logger
	backoff      *Backoff
	config       Config
	eventChan    chan *Envelope
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	subscribed   map[string]bool // token ids
	connected    atomic.Bool
	lastPongUnix atomic.Int64
	connStart    atomic.Int64
}

// New creates a new WebSocket manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		url:    cfg.URL,
		logger: cfg.Logger,
		backoff: NewBackoff(BackoffConfig{
			InitialDelay: cfg.ReconnectInitialDelay,
			MaxDelay:     cfg.ReconnectMaxDelay,
			Multiplier:   cfg.ReconnectBackoffMult,
			JitterFrac:   0.2,
		}, cfg.Logger),
		config:     cfg,
		eventChan:  make(chan *Envelope, cfg.MessageBufferSize),
		ctx:        ctx,
		cancel:     cancel,
		subscribed: make(map[string]bool),
	}
}

// Start dials the feed and launches the read, ping and reconnect loops.
func (m *Manager) Start() error {
	m.logger.Info("websocket-manager-starting", zap.String("url", m.url))

	err := m.connect(m.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	m.wg.Add(3)
	go m.readLoop()
	go m.pingLoop()
	go m.reconnectLoop()

	return nil
}

func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.DialTimeout,
	}

	m.logger.Info("connecting-to-websocket", zap.String("url", m.url))

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		m.lastPongUnix.Store(time.Now().Unix())
		return nil
	})

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	now := time.Now()
	m.connected.Store(true)
	m.lastPongUnix.Store(now.Unix())
	m.connStart.Store(now.Unix())
	ActiveConnections.Set(1)

	m.logger.Info("websocket-connected")

	return nil
}

// Subscribe subscribes to market channels for the given token IDs. Already
// subscribed tokens are skipped; on write failure the subscription state is
// rolled back so a later retry resends them.
func (m *Manager) Subscribe(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	m.mu.Lock()

	newTokens := make([]string, 0, len(tokenIDs))
	for _, tokenID := range tokenIDs {
		if !m.subscribed[tokenID] {
			newTokens = append(newTokens, tokenID)
			m.subscribed[tokenID] = true
		}
	}

	if len(newTokens) == 0 {
		m.mu.Unlock()
		m.logger.Debug("all-tokens-already-subscribed")
		return nil
	}

	// Initial subscription uses "type"; later additions use "operation".
	var subscribeMsg map[string]interface{}
	if len(m.subscribed) == len(newTokens) {
		subscribeMsg = map[string]interface{}{
			"assets_ids": newTokens,
			"type":       "market",
		}
	} else {
		subscribeMsg = map[string]interface{}{
			"assets_ids": newTokens,
			"operation":  "subscribe",
		}
	}

	totalSubscribed := len(m.subscribed)
	m.mu.Unlock()

	// Network I/O without holding the lock.
	err := m.conn.WriteJSON(subscribeMsg)
	if err != nil {
		m.mu.Lock()
		for _, tokenID := range newTokens {
			delete(m.subscribed, tokenID)
		}
		totalSubscribed = len(m.subscribed)
		m.mu.Unlock()

		SubscriptionCount.Set(float64(totalSubscribed))
		return fmt.Errorf("write subscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(totalSubscribed))

	m.logger.Info("subscribed-to-tokens",
		zap.Int("new-count", len(newTokens)),
		zap.Int("total-count", totalSubscribed))

	return nil
}

// Unsubscribe removes market channel subscriptions for the given token IDs.
func (m *Manager) Unsubscribe(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	m.mu.Lock()

	toRemove := make([]string, 0, len(tokenIDs))
	for _, tokenID := range tokenIDs {
		if m.subscribed[tokenID] {
			toRemove = append(toRemove, tokenID)
			delete(m.subscribed, tokenID)
		}
	}

	if len(toRemove) == 0 {
		m.mu.Unlock()
		return nil
	}

	unsubscribeMsg := map[string]interface{}{
		"assets_ids": toRemove,
		"operation":  "unsubscribe",
	}

	totalSubscribed := len(m.subscribed)
	m.mu.Unlock()

	err := m.conn.WriteJSON(unsubscribeMsg)
	if err != nil {
		m.mu.Lock()
		for _, tokenID := range toRemove {
			m.subscribed[tokenID] = true
		}
		totalSubscribed = len(m.subscribed)
		m.mu.Unlock()

		SubscriptionCount.Set(float64(totalSubscribed))
		return fmt.Errorf("write unsubscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(totalSubscribed))

	m.logger.Info("unsubscribed-from-tokens",
		zap.Int("count", len(toRemove)),
		zap.Int("remaining-count", totalSubscribed))

	return nil
}

// eventTypePeek is the minimal decode used to route feed events.
type eventTypePeek struct {
	EventType string `json:"event_type"`
}

func (m *Manager) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			m.logger.Warn("read-error", zap.Error(err))
			m.markDisconnected()
			return
		}

		m.dispatch(message)
	}
}

// dispatch splits a feed frame (an array of events) into envelopes and fans
// them out without blocking.
func (m *Manager) dispatch(message []byte) {
	var raws []json.RawMessage
	err := json.Unmarshal(message, &raws)
	if err != nil {
		// Heartbeats and subscription acks arrive as non-array frames.
		if len(message) < 10 {
			m.logger.Debug("websocket-heartbeat-received", zap.Int("bytes", len(message)))
			return
		}
		var control map[string]interface{}
		if json.Unmarshal(message, &control) == nil {
			m.logger.Debug("websocket-control-message", zap.Int("bytes", len(message)))
			return
		}
		preview := message
		if len(preview) > 100 {
			preview = preview[:100]
		}
		m.logger.Debug("websocket-unparseable-message",
			zap.Error(err),
			zap.Int("bytes", len(message)),
			zap.ByteString("preview", preview))
		return
	}

	now := time.Now()
	for _, raw := range raws {
		var peek eventTypePeek
		if err := json.Unmarshal(raw, &peek); err != nil || peek.EventType == "" {
			continue
		}

		MessagesReceivedTotal.WithLabelValues(peek.EventType).Inc()

		env := &Envelope{EventType: peek.EventType, Data: raw, Received: now}
		select {
		case m.eventChan <- env:
		default:
			m.logger.Warn("event-channel-full", zap.String("event-type", peek.EventType))
			MessagesDroppedTotal.WithLabelValues("channel_full").Inc()
		}
	}
}

// pingLoop sends periodic pings and forces a reconnect when the peer stops
// answering within the pong timeout.
func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}

			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()

			if conn == nil {
				continue
			}

			lastPong := time.Unix(m.lastPongUnix.Load(), 0)
			if time.Since(lastPong) > m.config.PongTimeout {
				m.logger.Warn("pong-timeout-forcing-reconnect",
					zap.Duration("since-last-pong", time.Since(lastPong)))
				conn.Close()
				m.markDisconnected()
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				m.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

func (m *Manager) markDisconnected() {
	if !m.connected.Swap(false) {
		return
	}
	if start := m.connStart.Load(); start > 0 {
		lived := time.Since(time.Unix(start, 0))
		ConnectionDuration.Observe(lived.Seconds())
		// Only a connection that survived a full liveness window earns the
		// base retry delay back; a flapping feed keeps escalating.
		if lived >= m.config.PongTimeout {
			m.backoff.Reset()
		}
	}
	ActiveConnections.Set(0)
}

// reconnectLoop restores the connection and subscriptions after a drop.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if m.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		m.logger.Warn("connection-lost-initiating-reconnect")

		err := m.backoff.Retry(m.ctx, m.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			m.logger.Error("reconnection-failed", zap.Error(err))
			continue
		}

		err = m.resubscribeAll()
		if err != nil {
			m.logger.Error("resubscribe-failed", zap.Error(err))
			m.connected.Store(false)
			continue
		}

		m.logger.Info("reconnection-complete-restarting-read-loop")

		m.wg.Add(1)
		go m.readLoop()
	}
}

func (m *Manager) resubscribeAll() error {
	m.mu.RLock()
	tokenIDs := make([]string, 0, len(m.subscribed))
	for tokenID := range m.subscribed {
		tokenIDs = append(tokenIDs, tokenID)
	}
	m.mu.RUnlock()

	if len(tokenIDs) == 0 {
		return nil
	}

	subscribeMsg := map[string]interface{}{
		"assets_ids": tokenIDs,
		"type":       "market",
	}

	m.mu.RLock()
	err := m.conn.WriteJSON(subscribeMsg)
	m.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}

	m.logger.Info("resubscribed-to-all-tokens", zap.Int("count", len(tokenIDs)))

	return nil
}

// Events returns the channel of feed events.
func (m *Manager) Events() <-chan *Envelope {
	return m.eventChan
}

// Connected reports whether the feed connection is currently up.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Close shuts the connection down and waits for loops to exit.
func (m *Manager) Close() error {
	m.logger.Info("closing-websocket-manager")

	m.cancel()

	m.mu.RLock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.RUnlock()

	m.wg.Wait()

	close(m.eventChan)

	ActiveConnections.Set(0)

	m.logger.Info("websocket-manager-closed")

	return nil
}
