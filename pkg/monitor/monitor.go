package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/copyvault/trader/pkg/kana"
	"github.com/copyvault/trader/pkg/models"
	"github.com/copyvault/trader/pkg/vault"
)

type Config struct {
	UserAddress   string
	TraderAddress string
	MarketID      string
	PollInterval  time.Duration
}

// Monitor keeps a live snapshot of everything the dashboard shows: the
// streamed order book, polled positions and orders, and on-chain vault
// state. Reads are served from an in-memory cache guarded by mu.
type Monitor struct {
	cfg    Config
	rest   kana.Client
	stream *kana.OrderBookClient
	vault  *vault.Client
	logger *logrus.Logger

	mu              sync.RWMutex
	orderBook       *models.OrderBook
	marketPrice     *models.MarketPrice
	positions       []models.Position
	openOrders      []models.Order
	vaultInfo       *models.VaultInfo
	traderStats     *models.TraderStats
	streamConnected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(cfg Config, rest kana.Client, stream *kana.OrderBookClient, vaultClient *vault.Client, logger *logrus.Logger) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Monitor{
		cfg:    cfg,
		rest:   rest,
		stream: stream,
		vault:  vaultClient,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start wires up the order-book stream and launches the polling loop. The
// stream client handles its own reconnects; a failed initial dial is not
// fatal here because a retry is already scheduled.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("Starting market monitor")

	m.stream.OnMessage(func(book *models.OrderBook) {
		if err := book.Validate(); err != nil {
			m.logger.WithError(err).Warn("Discarding inconsistent order book snapshot")
			return
		}
		m.mu.Lock()
		m.orderBook = book
		m.mu.Unlock()
	})
	m.stream.OnConnected(func() {
		m.mu.Lock()
		m.streamConnected = true
		m.mu.Unlock()
	})
	m.stream.OnDisconnected(func() {
		m.mu.Lock()
		m.streamConnected = false
		m.mu.Unlock()
	})
	m.stream.OnError(func(err error) {
		m.logger.WithError(err).Warn("Order book stream error")
	})

	if err := m.stream.Connect(); err != nil {
		m.logger.WithError(err).Warn("Initial order book connect failed, reconnect scheduled")
	}

	go m.pollLoop(ctx)
	return nil
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.logger.Info("Stopping market monitor")
		close(m.stopCh)
		m.stream.Disconnect()
	})
}

func (m *Monitor) pollLoop(ctx context.Context) {
	// Prime the cache immediately instead of waiting a full interval.
	m.refresh(ctx)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *Monitor) refresh(ctx context.Context) {
	price, err := m.rest.GetMarketPrice(ctx, m.cfg.MarketID)
	if err != nil {
		m.logger.WithError(err).Error("Failed to get market price")
	} else {
		m.mu.Lock()
		m.marketPrice = price
		m.mu.Unlock()
	}

	if m.cfg.UserAddress != "" {
		positions, err := m.rest.GetPositions(ctx, m.cfg.UserAddress, m.cfg.MarketID)
		if err != nil {
			m.logger.WithError(err).Error("Failed to get positions")
		} else {
			m.mu.Lock()
			m.positions = positions
			m.mu.Unlock()
		}

		orders, err := m.rest.GetOpenOrders(ctx, m.cfg.UserAddress, m.cfg.MarketID)
		if err != nil {
			m.logger.WithError(err).Error("Failed to get open orders")
		} else {
			m.mu.Lock()
			m.openOrders = orders
			m.mu.Unlock()
		}

		m.refreshVault(ctx)
	}

	if m.cfg.TraderAddress != "" {
		stats, err := m.vault.GetTraderStats(ctx, m.cfg.TraderAddress)
		if err != nil {
			if !errors.Is(err, vault.ErrVaultNotFound) {
				m.logger.WithError(err).Error("Failed to get trader stats")
			}
		} else {
			m.mu.Lock()
			m.traderStats = stats
			m.mu.Unlock()
		}
	}
}

func (m *Monitor) refreshVault(ctx context.Context) {
	info, err := m.vault.GetVaultInfo(ctx, m.cfg.UserAddress)
	if err != nil {
		if errors.Is(err, vault.ErrVaultNotFound) {
			m.mu.Lock()
			m.vaultInfo = nil
			m.mu.Unlock()
			return
		}
		m.logger.WithError(err).Error("Failed to get vault info")
		return
	}

	m.mu.Lock()
	m.vaultInfo = info
	m.mu.Unlock()
}

func (m *Monitor) OrderBook() *models.OrderBook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orderBook
}

func (m *Monitor) MarketPrice() *models.MarketPrice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marketPrice
}

func (m *Monitor) Positions() []models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Position, 0, len(m.positions))
	return append(out, m.positions...)
}

func (m *Monitor) OpenOrders() []models.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Order, 0, len(m.openOrders))
	return append(out, m.openOrders...)
}

// VaultInfo returns the cached vault state, or nil when the configured user
// has no vault.
func (m *Monitor) VaultInfo() *models.VaultInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vaultInfo
}

func (m *Monitor) TraderStats() *models.TraderStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.traderStats
}

func (m *Monitor) StreamConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streamConnected
}
