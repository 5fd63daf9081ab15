package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyvault/trader/pkg/monitor"
)

func newTestServer() *Server {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	mon := monitor.New(monitor.Config{}, nil, nil, nil, logger)
	return NewServer(mon, NewAuthenticator("test-key"), logger, "0")
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["stream_connected"])
}

func TestHandleOrderBookUnavailable(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/orderbook", nil)
	rec := httptest.NewRecorder()
	s.handleOrderBook(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlePositionsEmpty(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	rec := httptest.NewRecorder()
	s.handlePositions(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleVaultNotFound(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/vault", nil)
	rec := httptest.NewRecorder()
	s.handleVault(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlersRejectNonGet(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/positions", nil)
	rec := httptest.NewRecorder()
	s.handlePositions(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
