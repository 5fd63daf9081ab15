package monitor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyvault/trader/pkg/aptos"
	"github.com/copyvault/trader/pkg/kana"
	"github.com/copyvault/trader/pkg/models"
	"github.com/copyvault/trader/pkg/vault"
)

// fakeRestClient overrides the few endpoints the monitor polls; the
// embedded interface panics on anything else, which would flag an
// unexpected call.
type fakeRestClient struct {
	kana.Client
	price     *models.MarketPrice
	positions []models.Position
	orders    []models.Order
}

func (f *fakeRestClient) GetMarketPrice(ctx context.Context, marketID string) (*models.MarketPrice, error) {
	return f.price, nil
}

func (f *fakeRestClient) GetPositions(ctx context.Context, userAddress, marketID string) ([]models.Position, error) {
	return f.positions, nil
}

func (f *fakeRestClient) GetOpenOrders(ctx context.Context, userAddress, marketID string) ([]models.Order, error) {
	return f.orders, nil
}

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/v1/view" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch {
		case strings.Contains(string(body), "get_vault_info"):
			w.Write([]byte(`["0xTRADER","1000000000","10",true]`))
		case strings.Contains(string(body), "get_trader_stats"):
			w.Write([]byte(`["12","340","6725"]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"not found","error_code":"resource_not_found"}`))
		}
	}))
	t.Cleanup(node.Close)

	rest := &fakeRestClient{
		price:     &models.MarketPrice{BestAskPrice: 10.55, BestBidPrice: 10.50},
		positions: []models.Position{{MarketID: "1338", TradeSide: true, Size: "100"}},
		orders:    []models.Order{{MarketID: "1338", OrderID: "42"}},
	}

	vaultClient := vault.NewClient(vault.Config{ModuleAddress: "0xcafe"},
		aptos.NewClient(node.URL, logger), nil, logger)

	return New(Config{
		UserAddress:   "0xabc",
		TraderAddress: "0xTRADER",
		MarketID:      "1338",
	}, rest, nil, vaultClient, logger)
}

func TestRefreshPopulatesCaches(t *testing.T) {
	m := newTestMonitor(t)
	m.refresh(context.Background())

	price := m.MarketPrice()
	require.NotNil(t, price)
	assert.Equal(t, 10.55, price.BestAskPrice)

	positions := m.Positions()
	require.Len(t, positions, 1)
	assert.True(t, positions[0].TradeSide)

	orders := m.OpenOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, "42", orders[0].OrderID)

	info := m.VaultInfo()
	require.NotNil(t, info)
	assert.Equal(t, "1000000000", info.Collateral)

	stats := m.TraderStats()
	require.NotNil(t, stats)
	assert.Equal(t, uint64(6725), stats.WinRate)
}

func TestRefreshMissingVaultClearsCache(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found","error_code":"resource_not_found"}`))
	}))
	t.Cleanup(node.Close)

	rest := &fakeRestClient{price: &models.MarketPrice{BestAskPrice: 10.55, BestBidPrice: 10.50}}
	vaultClient := vault.NewClient(vault.Config{ModuleAddress: "0xcafe"},
		aptos.NewClient(node.URL, logger), nil, logger)

	m := New(Config{
		UserAddress:   "0xabc",
		TraderAddress: "0xTRADER",
		MarketID:      "1338",
	}, rest, nil, vaultClient, logger)

	m.refresh(context.Background())

	assert.Nil(t, m.VaultInfo())
	assert.Nil(t, m.TraderStats())
	require.NotNil(t, m.MarketPrice())
}

func TestGettersEmptyBeforeRefresh(t *testing.T) {
	m := newTestMonitor(t)

	assert.Nil(t, m.OrderBook())
	assert.Nil(t, m.MarketPrice())
	assert.NotNil(t, m.Positions())
	assert.Empty(t, m.Positions())
	assert.False(t, m.StreamConnected())
}
