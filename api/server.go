package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/copyvault/trader/pkg/monitor"
	"github.com/copyvault/trader/pkg/vault"
)

// Server exposes the monitor's cached state as a small read-only JSON API
// for the dashboard frontend.
type Server struct {
	monitor *monitor.Monitor
	auth    *Authenticator
	logger  *logrus.Logger
	port    string

	httpServer *http.Server
}

func NewServer(mon *monitor.Monitor, auth *Authenticator, logger *logrus.Logger, port string) *Server {
	return &Server{
		monitor: mon,
		auth:    auth,
		logger:  logger,
		port:    port,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/orderbook", s.handleOrderBook)
	mux.HandleFunc("/api/price", s.handlePrice)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/orders", s.handleOrders)
	mux.HandleFunc("/api/vault", s.handleVault)
	mux.HandleFunc("/api/trader", s.handleTrader)

	// CORS for the dashboard frontend, auth for everything but health
	handler := corsMiddleware(s.auth.Middleware(mux))

	s.httpServer = &http.Server{
		Addr:    ":" + s.port,
		Handler: handler,
	}

	s.logger.Infof("Starting API server on port %s", s.port)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":           "healthy",
		"stream_connected": s.monitor.StreamConnected(),
		"timestamp":        time.Now().UTC(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	book := s.monitor.OrderBook()
	if book == nil {
		http.Error(w, "Order book not available yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	price := s.monitor.MarketPrice()
	if price == nil {
		http.Error(w, "Market price not available yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, price)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, s.monitor.Positions())
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, s.monitor.OpenOrders())
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := s.monitor.VaultInfo()
	if info == nil {
		http.Error(w, "No vault for configured user", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"trader_following": info.TraderFollowing,
		"collateral_octas": info.Collateral,
		"max_leverage":     info.MaxLeverage,
		"is_active":        info.IsActive,
	}
	if apt, err := vault.OctasToAPT(info.Collateral); err == nil {
		response["collateral_apt"] = apt
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleTrader(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := s.monitor.TraderStats()
	if stats == nil {
		http.Error(w, "Trader stats not available", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"total_followers": stats.TotalFollowers,
		"total_positions": stats.TotalPositions,
		"win_rate":        vault.FormatWinRate(stats.WinRate),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
