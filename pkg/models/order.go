package models

import (
	"encoding/json"
)

type OrderStatus string

// Order lifecycle states are owned by the exchange; this code only observes
// them via polling or the stream.
const (
	OrderStatusOpen            OrderStatus = "Open"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusPartiallyFilled OrderStatus = "Partially Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
)

// Order is a resting or historical order as reported by the trade API.
type Order struct {
	Address            string `json:"address"`
	MarketID           string `json:"market_id"`
	Leverage           int    `json:"leverage"`
	OrderType          int    `json:"order_type"`
	Timestamp          int64  `json:"timestamp"`
	Price              string `json:"price"`
	TotalSize          string `json:"total_size"`
	RemainingSize      string `json:"remaining_size"`
	OrderValue         string `json:"order_value"`
	OrderID            string `json:"order_id"`
	TradeID            string `json:"trade_id"`
	LastUpdated        int64  `json:"last_updated"`
	TransactionVersion int64  `json:"transaction_version"`
}

// OrderStatusDetail is the per-order view returned by the order-status
// endpoint, including fill progress.
type OrderStatusDetail struct {
	Address            string      `json:"address"`
	MarketID           string      `json:"market_id"`
	Leverage           int         `json:"leverage"`
	OrderType          int         `json:"order_type"`
	Timestamp          int64       `json:"timestamp"`
	IsMarketOrder      bool        `json:"is_market_order"`
	Size               string      `json:"size"`
	Price              string      `json:"price"`
	OrderValue         string      `json:"order_value"`
	Status             OrderStatus `json:"status"`
	OrderID            string      `json:"order_id"`
	TradeID            string      `json:"trade_id"`
	LastUpdated        int64       `json:"last_updated"`
	TransactionVersion int64       `json:"transaction_version"`
	TotalFilled        string      `json:"total_filled,omitempty"`
	RemainingSize      string      `json:"remaining_size,omitempty"`
	TotalTradeSize     string      `json:"total_trade_size,omitempty"`
}

type TradeFill struct {
	Address            string `json:"address"`
	Leverage           int    `json:"leverage"`
	MarketID           string `json:"market_id"`
	Timestamp          int64  `json:"timestamp"`
	Size               string `json:"size"`
	OrderType          int    `json:"order_type"`
	Price              string `json:"price"`
	OrderValue         string `json:"order_value"`
	PnL                string `json:"pnl"`
	Fee                string `json:"fee"`
	TradeID            string `json:"trade_id"`
	LastUpdated        int64  `json:"last_updated"`
	TransactionVersion int64  `json:"transaction_version"`
	EntryPrice         string `json:"entry_price"`
	OrderID            string `json:"order_id"`
}

// TransactionPayload is an unsigned transaction description built by the
// trade API for a mutation-intent call. It is opaque to this service and is
// handed to an external wallet component for signing and submission.
type TransactionPayload json.RawMessage

func (p TransactionPayload) MarshalJSON() ([]byte, error) {
	return json.RawMessage(p).MarshalJSON()
}

func (p *TransactionPayload) UnmarshalJSON(data []byte) error {
	return (*json.RawMessage)(p).UnmarshalJSON(data)
}
