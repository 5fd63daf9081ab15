package kana

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/copyvault/trader/pkg/models"
)

// subscribeMessage is the literal text the order-book socket expects after
// the handshake before it starts streaming snapshots.
const subscribeMessage = "Request data from endpoint"

const (
	defaultReconnectDelay       = 3 * time.Second
	defaultMaxReconnectAttempts = 5
)

// OrderBookConfig configures the stream client. ReconnectDelay is the base
// of the exponential backoff schedule; MaxReconnectAttempts bounds how many
// times a dropped connection is retried before the client gives up.
type OrderBookConfig struct {
	URL                  string
	MarketID             string
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration
}

// OrderBookClient maintains a websocket subscription to a single market's
// order book and redials with exponential backoff when the connection drops.
// Callbacks are single-slot: registering a handler replaces the previous one.
type OrderBookClient struct {
	cfg    OrderBookConfig
	logger *logrus.Logger

	mu                sync.Mutex
	conn              *websocket.Conn
	reconnectAttempts int
	reconnectTimer    *time.Timer
	closedByUser      bool

	onMessage      func(*models.OrderBook)
	onError        func(error)
	onConnected    func()
	onDisconnected func()
}

func NewOrderBookClient(cfg OrderBookConfig, logger *logrus.Logger) *OrderBookClient {
	if cfg.URL == "" {
		cfg.URL = DefaultWSURL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	return &OrderBookClient{
		cfg:    cfg,
		logger: logger,
	}
}

func (c *OrderBookClient) OnMessage(handler func(*models.OrderBook)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = handler
}

func (c *OrderBookClient) OnError(handler func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

func (c *OrderBookClient) OnConnected(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = handler
}

func (c *OrderBookClient) OnDisconnected(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnected = handler
}

// Connect dials the order-book feed and starts the read loop. Calling it on
// an already connected client is a no-op. A failed dial counts as a
// reconnect attempt and schedules a retry, so callers get the same backoff
// behavior whether the first dial or a later one fails.
func (c *OrderBookClient) Connect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closedByUser = false
	c.mu.Unlock()

	return c.dial()
}

func (c *OrderBookClient) dial() error {
	wsURL := fmt.Sprintf("%s?marketId=%s", c.cfg.URL, c.cfg.MarketID)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		err = fmt.Errorf("failed to connect to order book feed: %w", err)
		c.logger.WithError(err).WithField("market_id", c.cfg.MarketID).Error("Order book dial failed")
		c.emitError(err)
		c.emitDisconnected()
		c.scheduleReconnect()
		return err
	}

	c.mu.Lock()
	if c.closedByUser {
		// Disconnect won the race while the dial was in flight.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.reconnectAttempts = 0
	c.mu.Unlock()

	c.logger.WithField("market_id", c.cfg.MarketID).Info("Order book feed connected")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(subscribeMessage)); err != nil {
		c.logger.WithError(err).Error("Failed to send order book subscribe message")
		c.teardownConn()
		c.emitError(err)
		c.emitDisconnected()
		c.scheduleReconnect()
		return err
	}

	c.emitConnected()
	go c.readLoop(conn)
	return nil
}

func (c *OrderBookClient) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closedByUser
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()

			conn.Close()
			if closed {
				return
			}

			c.logger.WithError(err).Warn("Order book feed dropped")
			c.emitError(err)
			c.emitDisconnected()
			c.scheduleReconnect()
			return
		}

		var book models.OrderBook
		if err := json.Unmarshal(data, &book); err != nil {
			// A malformed frame does not invalidate the connection.
			c.emitError(fmt.Errorf("failed to parse order book message: %w", err))
			continue
		}

		c.mu.Lock()
		handler := c.onMessage
		c.mu.Unlock()
		if handler != nil {
			handler(&book)
		}
	}
}

func (c *OrderBookClient) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closedByUser {
		return
	}
	if c.reconnectAttempts >= c.cfg.MaxReconnectAttempts {
		c.logger.WithField("attempts", c.reconnectAttempts).Error("Order book reconnect attempts exhausted, giving up")
		return
	}

	c.reconnectAttempts++
	delay := backoffDelay(c.cfg.ReconnectDelay, c.reconnectAttempts)
	c.logger.WithFields(logrus.Fields{
		"attempt": c.reconnectAttempts,
		"delay":   delay,
	}).Info("Scheduling order book reconnect")

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		closed := c.closedByUser
		c.mu.Unlock()
		if closed {
			return
		}
		c.dial()
	})
}

// backoffDelay doubles the base delay for each attempt: base, 2*base,
// 4*base, and so on for attempt 1, 2, 3.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<uint(attempt-1))
}

// Disconnect closes the connection and cancels any pending reconnect. The
// client stays usable; a later Connect starts a fresh attempt counter.
func (c *OrderBookClient) Disconnect() {
	c.mu.Lock()
	c.closedByUser = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.reconnectAttempts = 0
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (c *OrderBookClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *OrderBookClient) teardownConn() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *OrderBookClient) emitError(err error) {
	c.mu.Lock()
	handler := c.onError
	c.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func (c *OrderBookClient) emitConnected() {
	c.mu.Lock()
	handler := c.onConnected
	c.mu.Unlock()
	if handler != nil {
		handler()
	}
}

func (c *OrderBookClient) emitDisconnected() {
	c.mu.Lock()
	handler := c.onDisconnected
	c.mu.Unlock()
	if handler != nil {
		handler()
	}
}
