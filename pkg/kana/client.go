package kana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/copyvault/trader/pkg/models"
)

const (
	DefaultBaseURL = "https://perps-tradeapi.kanalabs.io"
	DefaultWSURL   = "wss://perps-sdk-ws.kanalabs.io/wsOrderBook"
)

// Config carries everything the REST client needs. It is passed in
// explicitly so tests can point the client at fixtures instead of reading
// ambient environment state.
type Config struct {
	BaseURL string
	WSURL   string
	APIKey  string
	Timeout time.Duration

	// RequestsPerSecond throttles outbound calls; 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int
}

type Client interface {
	GetMarketInfo(ctx context.Context, marketID string) (*models.MarketInfo, error)
	GetAllMarkets(ctx context.Context) ([]models.MarketInfo, error)
	GetMarketPrice(ctx context.Context, marketID string) (*models.MarketPrice, error)
	GetLastExecutionPrice(ctx context.Context, marketID string) (float64, error)
	GetAllTrades(ctx context.Context, marketID string) ([]models.TradeFill, error)

	GetWalletAccountBalance(ctx context.Context, userAddress string) (float64, error)
	GetProfileBalanceSnapshot(ctx context.Context, userAddress string) (float64, error)
	GetNetProfileBalance(ctx context.Context, userAddress string) (float64, error)
	GetAccountAPTBalance(ctx context.Context, userAddress string) (float64, error)
	GetProfileAddress(ctx context.Context, userAddress string) (string, error)

	GetPositions(ctx context.Context, userAddress, marketID string) ([]models.Position, error)
	GetPositionsFromContract(ctx context.Context, userAddress, marketID string) ([]models.Position, error)
	GetOpenOrders(ctx context.Context, userAddress, marketID string) ([]models.Order, error)
	GetOpenOrdersFromContract(ctx context.Context, userAddress, marketID string) ([]models.Order, error)
	GetAllOpenOrderIDs(ctx context.Context, userAddress, marketID string) ([]string, error)
	GetOrderHistory(ctx context.Context, userAddress, marketID string) ([]models.Order, error)
	GetTradeHistory(ctx context.Context, userAddress, marketID string) ([]models.TradeFill, error)
	GetOrderStatusByID(ctx context.Context, marketID, orderID string) (*models.OrderStatusDetail, error)
	GetFillsForTimestampRange(ctx context.Context, userAddress string, from, to int64, marketID string) ([]models.TradeFill, error)
	GetDepositAndWithdrawHistory(ctx context.Context, userAddress string) ([]json.RawMessage, error)
	GetFundingHistory(ctx context.Context, userAddress string, opts *FundingHistoryOptions) ([]json.RawMessage, error)

	BuildDepositPayload(ctx context.Context, userAddress string, amount float64) (models.TransactionPayload, error)
	BuildWithdrawPayload(ctx context.Context, marketID, userAddress string, amount float64) (models.TransactionPayload, error)
	BuildPlaceLimitOrderPayload(ctx context.Context, p *LimitOrderParams) (models.TransactionPayload, error)
	BuildPlaceMarketOrderPayload(ctx context.Context, p *MarketOrderParams) (models.TransactionPayload, error)
	BuildPlaceMultipleOrdersPayload(ctx context.Context, p *BatchOrderParams) (models.TransactionPayload, error)
	BuildCancelMultipleOrdersPayload(ctx context.Context, marketID string, orderIDs []string, orderSides []bool) (models.TransactionPayload, error)
	BuildUpdateTakeProfitPayload(ctx context.Context, marketID string, tradeSide bool, newPrice float64) (models.TransactionPayload, error)
	BuildUpdateStopLossPayload(ctx context.Context, marketID string, tradeSide bool, newPrice float64) (models.TransactionPayload, error)
	BuildAddMarginPayload(ctx context.Context, marketID string, tradeSide bool, amount float64) (models.TransactionPayload, error)
	BuildCollapsePositionPayload(ctx context.Context, marketID string) (models.TransactionPayload, error)
	BuildSettlePnLPayload(ctx context.Context, userAddress, marketID string) (models.TransactionPayload, error)
}

// RestClient talks to the perps trade API. It is stateless apart from the
// rate limiter; it never holds private keys, and mutation-intent endpoints
// only return unsigned payloads for an external wallet to submit.
type RestClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

var _ Client = (*RestClient)(nil)

func NewRestClient(cfg Config, logger *logrus.Logger) *RestClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &RestClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// envelope is the uniform response wrapper every endpoint uses.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *RestClient) doRequest(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"path":   path,
		}).Debug("Trade API request failed")
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(respBody)}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	if !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: env.Message}
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode data from %s: %w", path, err)
		}
	}
	return nil
}

func (c *RestClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	return c.doRequest(ctx, http.MethodGet, path, params, nil, out)
}

func (c *RestClient) post(ctx context.Context, path string, body, out interface{}) error {
	return c.doRequest(ctx, http.MethodPost, path, nil, body, out)
}

// userParams builds the common userAddress/marketId query, omitting marketId
// when empty so the endpoint returns all markets.
func userParams(userAddress, marketID string) url.Values {
	params := url.Values{}
	params.Set("userAddress", userAddress)
	if marketID != "" {
		params.Set("marketId", marketID)
	}
	return params
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *RestClient) GetMarketInfo(ctx context.Context, marketID string) (*models.MarketInfo, error) {
	params := url.Values{}
	params.Set("marketId", marketID)

	var markets []models.MarketInfo
	if err := c.get(ctx, "/getMarketInfo", params, &markets); err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("no market info returned for market %s", marketID)
	}
	return &markets[0], nil
}

func (c *RestClient) GetAllMarkets(ctx context.Context) ([]models.MarketInfo, error) {
	var markets []models.MarketInfo
	if err := c.get(ctx, "/getPerpetualAssetsInfo/allMarkets", nil, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

func (c *RestClient) GetMarketPrice(ctx context.Context, marketID string) (*models.MarketPrice, error) {
	params := url.Values{}
	params.Set("marketId", marketID)

	var price models.MarketPrice
	if err := c.get(ctx, "/getMarketPrice", params, &price); err != nil {
		return nil, err
	}
	return &price, nil
}

func (c *RestClient) GetLastExecutionPrice(ctx context.Context, marketID string) (float64, error) {
	params := url.Values{}
	params.Set("marketId", marketID)

	var price float64
	if err := c.get(ctx, "/getLastPlacedPrice", params, &price); err != nil {
		return 0, err
	}
	return price, nil
}

func (c *RestClient) GetAllTrades(ctx context.Context, marketID string) ([]models.TradeFill, error) {
	params := url.Values{}
	params.Set("marketId", marketID)

	var trades []models.TradeFill
	if err := c.get(ctx, "/getAllTrades", params, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

func (c *RestClient) GetWalletAccountBalance(ctx context.Context, userAddress string) (float64, error) {
	var balance float64
	if err := c.get(ctx, "/getWalletAccountBalance", userParams(userAddress, ""), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (c *RestClient) GetProfileBalanceSnapshot(ctx context.Context, userAddress string) (float64, error) {
	var balance float64
	if err := c.get(ctx, "/getProfileBalanceSnapshot", userParams(userAddress, ""), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (c *RestClient) GetNetProfileBalance(ctx context.Context, userAddress string) (float64, error) {
	var balance float64
	if err := c.get(ctx, "/getNetProfileBalance", userParams(userAddress, ""), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (c *RestClient) GetAccountAPTBalance(ctx context.Context, userAddress string) (float64, error) {
	var balance float64
	if err := c.get(ctx, "/getAccountAptBalance", userParams(userAddress, ""), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (c *RestClient) GetProfileAddress(ctx context.Context, userAddress string) (string, error) {
	var address string
	if err := c.get(ctx, "/getProfileAddress", userParams(userAddress, ""), &address); err != nil {
		return "", err
	}
	return address, nil
}

func (c *RestClient) GetPositions(ctx context.Context, userAddress, marketID string) ([]models.Position, error) {
	var positions []models.Position
	if err := c.get(ctx, "/getPositions", userParams(userAddress, marketID), &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (c *RestClient) GetPositionsFromContract(ctx context.Context, userAddress, marketID string) ([]models.Position, error) {
	var positions []models.Position
	if err := c.get(ctx, "/getPositionsFromContract", userParams(userAddress, marketID), &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (c *RestClient) GetOpenOrders(ctx context.Context, userAddress, marketID string) ([]models.Order, error) {
	var orders []models.Order
	if err := c.get(ctx, "/getOpenOrders", userParams(userAddress, marketID), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *RestClient) GetOpenOrdersFromContract(ctx context.Context, userAddress, marketID string) ([]models.Order, error) {
	var orders []models.Order
	if err := c.get(ctx, "/getOpenOrdersFromContract", userParams(userAddress, marketID), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *RestClient) GetAllOpenOrderIDs(ctx context.Context, userAddress, marketID string) ([]string, error) {
	var ids []string
	if err := c.get(ctx, "/getAllOpenOrderIds", userParams(userAddress, marketID), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *RestClient) GetOrderHistory(ctx context.Context, userAddress, marketID string) ([]models.Order, error) {
	var orders []models.Order
	if err := c.get(ctx, "/getOrderHistory", userParams(userAddress, marketID), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *RestClient) GetTradeHistory(ctx context.Context, userAddress, marketID string) ([]models.TradeFill, error) {
	var fills []models.TradeFill
	if err := c.get(ctx, "/getTradeHistory", userParams(userAddress, marketID), &fills); err != nil {
		return nil, err
	}
	return fills, nil
}

func (c *RestClient) GetOrderStatusByID(ctx context.Context, marketID, orderID string) (*models.OrderStatusDetail, error) {
	params := url.Values{}
	params.Set("marketId", marketID)
	params.Set("orderId", orderID)

	var status models.OrderStatusDetail
	if err := c.get(ctx, "/fetchOrderStatusById", params, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *RestClient) GetFillsForTimestampRange(ctx context.Context, userAddress string, from, to int64, marketID string) ([]models.TradeFill, error) {
	params := userParams(userAddress, marketID)
	params.Set("fromTimestamp", strconv.FormatInt(from, 10))
	params.Set("toTimestamp", strconv.FormatInt(to, 10))

	var fills []models.TradeFill
	if err := c.get(ctx, "/getFillsForGivenTimestamp", params, &fills); err != nil {
		return nil, err
	}
	return fills, nil
}

func (c *RestClient) GetDepositAndWithdrawHistory(ctx context.Context, userAddress string) ([]json.RawMessage, error) {
	var entries []json.RawMessage
	if err := c.get(ctx, "/getDepositAndWithdrawHistory", userParams(userAddress, ""), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// FundingHistoryOptions are the optional paging controls of the
// funding-history endpoint.
type FundingHistoryOptions struct {
	MarketID string
	Offset   *int
	Limit    *int
	Order    string // "asc" or "desc"
}

func (c *RestClient) GetFundingHistory(ctx context.Context, userAddress string, opts *FundingHistoryOptions) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("userAddress", userAddress)
	if opts != nil {
		if opts.MarketID != "" {
			params.Set("marketId", opts.MarketID)
		}
		if opts.Offset != nil {
			params.Set("offset", strconv.Itoa(*opts.Offset))
		}
		if opts.Limit != nil {
			params.Set("limit", strconv.Itoa(*opts.Limit))
		}
		if opts.Order != "" {
			params.Set("order", opts.Order)
		}
	}

	var entries []json.RawMessage
	if err := c.get(ctx, "/getFundingHistory", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *RestClient) BuildDepositPayload(ctx context.Context, userAddress string, amount float64) (models.TransactionPayload, error) {
	params := url.Values{}
	params.Set("userAddress", userAddress)
	params.Set("amount", formatFloat(amount))

	var payload models.TransactionPayload
	if err := c.get(ctx, "/deposit", params, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *RestClient) BuildWithdrawPayload(ctx context.Context, marketID, userAddress string, amount float64) (models.TransactionPayload, error) {
	params := url.Values{}
	params.Set("marketId", marketID)
	params.Set("userAddress", userAddress)
	params.Set("amount", formatFloat(amount))

	var payload models.TransactionPayload
	if err := c.get(ctx, "/withdrawSpecifiMarket", params, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// LimitOrderParams describe a limit order to be built by the venue.
// TradeSide is true for long; Direction is true for close. The venue
// validates ranges (leverage bounds, tick size); no client-side validation
// is applied.
type LimitOrderParams struct {
	MarketID   string
	TradeSide  bool
	Direction  bool
	Size       float64
	Price      float64
	Leverage   int
	Restriction *int
	TakeProfit *float64
	StopLoss   *float64
}

func (c *RestClient) BuildPlaceLimitOrderPayload(ctx context.Context, p *LimitOrderParams) (models.TransactionPayload, error) {
	params := url.Values{}
	params.Set("marketId", p.MarketID)
	params.Set("tradeSide", strconv.FormatBool(p.TradeSide))
	params.Set("direction", strconv.FormatBool(p.Direction))
	params.Set("size", formatFloat(p.Size))
	params.Set("price", formatFloat(p.Price))
	params.Set("leverage", strconv.Itoa(p.Leverage))
	if p.Restriction != nil {
		params.Set("restriction", strconv.Itoa(*p.Restriction))
	}
	if p.TakeProfit != nil {
		params.Set("takeProfit", formatFloat(*p.TakeProfit))
	}
	if p.StopLoss != nil {
		params.Set("stopLoss", formatFloat(*p.StopLoss))
	}

	var payload models.TransactionPayload
	if err := c.get(ctx, "/placeLimitOrder", params, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

type MarketOrderParams struct {
	MarketID   string
	TradeSide  bool
	Direction  bool
	Size       float64
	Leverage   int
	TakeProfit *float64
	StopLoss   *float64
}

func (c *RestClient) BuildPlaceMarketOrderPayload(ctx context.Context, p *MarketOrderParams) (models.TransactionPayload, error) {
	params := url.Values{}
	params.Set("marketId", p.MarketID)
	params.Set("tradeSide", strconv.FormatBool(p.TradeSide))
	params.Set("direction", strconv.FormatBool(p.Direction))
	params.Set("size", formatFloat(p.Size))
	params.Set("leverage", strconv.Itoa(p.Leverage))
	if p.TakeProfit != nil {
		params.Set("takeProfit", formatFloat(*p.TakeProfit))
	}
	if p.StopLoss != nil {
		params.Set("stopLoss", formatFloat(*p.StopLoss))
	}

	var payload models.TransactionPayload
	if err := c.get(ctx, "/placeMarketOrder", params, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// BatchOrderParams is the POST body of the place-multiple-orders endpoint.
// The parallel slices must all have the same length; the venue rejects
// mismatches.
type BatchOrderParams struct {
	MarketID    string    `json:"marketId"`
	OrderTypes  []bool    `json:"orderTypes"`
	TradeSides  []bool    `json:"tradeSides"`
	Directions  []bool    `json:"directions"`
	Sizes       []float64 `json:"sizes"`
	Prices      []float64 `json:"prices"`
	Leverages   []int     `json:"leverages"`
	Restriction *int      `json:"restriction,omitempty"`
	TakeProfits []float64 `json:"takeProfits,omitempty"`
	StopLosses  []float64 `json:"stopLosses,omitempty"`
}

func (c *RestClient) BuildPlaceMultipleOrdersPayload(ctx context.Context, p *BatchOrderParams) (models.TransactionPayload, error) {
	var payload models.TransactionPayload
	if err := c.post(ctx, "/placeMultipleOrders", p, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

type cancelOrdersRequest struct {
	MarketID       string   `json:"marketId"`
	CancelOrderIDs []string `json:"cancelOrderIds"`
	OrderSides     []bool   `json:"orderSides"`
}

func (c *RestClient) BuildCancelMultipleOrdersPayload(ctx context.Context, marketID string, orderIDs []string, orderSides []bool) (models.TransactionPayload, error) {
	body := cancelOrdersRequest{
		MarketID:       marketID,
		CancelOrderIDs: orderIDs,
		OrderSides:     orderSides,
	}

	var payload models.TransactionPayload
	if err := c.post(ctx, "/cancelMultipleOrders", body, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *RestClient) BuildUpdateTakeProfitPayload(ctx context.Context, marketID string, tradeSide bool, newPrice float64) (models.TransactionPayload, error) {
	params := url.Values{}
	params.Set("marketId", marketID)
	params.Set("tradeSide", strconv.FormatBool(tradeSide))
	params.Set("newTakeProfitPrice", formatFloat(newPrice))

	var payload models.TransactionPayload
	if err := c.get(ctx, "/updateTakeProfit", params, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *RestClient) BuildUpdateStopLossPayload(ctx context.Context, marketID string, tradeSide bool, newPrice float64) (models.TransactionPayload, error) {
	params := url.Values{}
	params.Set("marketId", marketID)
	params.Set("tradeSide", strconv.FormatBool(tradeSide))
	params.Set("newStopLossPrice", formatFloat(newPrice))

	var payload models.TransactionPayload
	if err := c.get(ctx, "/updateStopLoss", params, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *RestClient) BuildAddMarginPayload(ctx context.Context, marketID string, tradeSide bool, amount float64) (models.TransactionPayload, error) {
	params := url.Values{}
	params.Set("marketId", marketID)
	params.Set("tradeSide", strconv.FormatBool(tradeSide))
	params.Set("amount", formatFloat(amount))

	var payload models.TransactionPayload
	if err := c.get(ctx, "/addMargin", params, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *RestClient) BuildCollapsePositionPayload(ctx context.Context, marketID string) (models.TransactionPayload, error) {
	params := url.Values{}
	params.Set("marketId", marketID)

	var payload models.TransactionPayload
	if err := c.get(ctx, "/collapsePosition", params, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *RestClient) BuildSettlePnLPayload(ctx context.Context, userAddress, marketID string) (models.TransactionPayload, error) {
	params := url.Values{}
	params.Set("userAddress", userAddress)
	params.Set("marketId", marketID)

	var payload models.TransactionPayload
	if err := c.get(ctx, "/settlePnl", params, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
