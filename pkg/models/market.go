package models

import (
	"fmt"
)

// MarketInfo is the static metadata for one perpetual market as returned by
// the trade API. Numeric fields arrive as strings on the wire and are kept
// that way; callers convert at the point of use.
type MarketInfo struct {
	Variant           string `json:"__variant__"`
	BaseDecimals      int    `json:"base_decimals"`
	BaseName          string `json:"base_name"`
	Counter           string `json:"counter"`
	Creator           string `json:"creator"`
	FeeAddress        string `json:"fee_address"`
	IsRecognised      bool   `json:"is_recognised"`
	LastUpdated       string `json:"last_updated"`
	LotSize           string `json:"lot_size"`
	MaintenanceMargin string `json:"maintenance_margin"`
	MarketAddress     string `json:"market_address"`
	MarketID          string `json:"market_id"`
	MarketStatus      int    `json:"market_status"`
	MaxLeverage       string `json:"max_leverage"`
	MaxLots           string `json:"max_lots"`
	MaxPositionValue  string `json:"max_position_value"`
	MinLots           string `json:"min_lots"`
	QuoteDecimals     int    `json:"quote_decimals"`
	QuotePrecision    int    `json:"quote_precision"`
	TickSize          string `json:"tick_size"`
}

// MarketPrice is the current best bid/ask for a market.
type MarketPrice struct {
	BestAskPrice float64 `json:"bestAskPrice"`
	BestBidPrice float64 `json:"bestBidPrice"`
}

type Position struct {
	Address            string `json:"address"`
	MarketID           string `json:"market_id"`
	Leverage           int    `json:"leverage"`
	TradeSide          bool   `json:"trade_side"` // true = long, false = short
	Size               string `json:"size"`
	AvailableOrderSize string `json:"available_order_size"`
	Value              string `json:"value"`
	EntryPrice         string `json:"entry_price"`
	LiqPrice           string `json:"liq_price"`
	Margin             string `json:"margin"`
	TakeProfit         string `json:"tp"`
	StopLoss           string `json:"sl"`
	TradeID            string `json:"trade_id"`
	LastUpdated        int64  `json:"last_updated,omitempty"`
	TransactionVersion int64  `json:"transaction_version,omitempty"`
}

// OrderBookLevel is one price rung of the book. Total is the cumulative size
// from the top of the side down to and including this level.
type OrderBookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
	Total float64 `json:"total,omitempty"`
}

// OrderBook is a snapshot pushed over the order-book stream. Bids are ordered
// by descending price, asks by ascending price.
type OrderBook struct {
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
	Timestamp int64            `json:"timestamp"`
}

func (ob *OrderBook) BestBid() (OrderBookLevel, bool) {
	if len(ob.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return ob.Bids[0], true
}

func (ob *OrderBook) BestAsk() (OrderBookLevel, bool) {
	if len(ob.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return ob.Asks[0], true
}

// Validate checks the snapshot invariants: the book must not be crossed and
// cumulative totals must be non-decreasing within each side.
func (ob *OrderBook) Validate() error {
	bid, hasBid := ob.BestBid()
	ask, hasAsk := ob.BestAsk()
	if hasBid && hasAsk && bid.Price >= ask.Price {
		return fmt.Errorf("crossed book: best bid %.8f >= best ask %.8f", bid.Price, ask.Price)
	}
	for i := 1; i < len(ob.Bids); i++ {
		if ob.Bids[i].Total < ob.Bids[i-1].Total {
			return fmt.Errorf("bid total decreases at level %d", i)
		}
	}
	for i := 1; i < len(ob.Asks); i++ {
		if ob.Asks[i].Total < ob.Asks[i-1].Total {
			return fmt.Errorf("ask total decreases at level %d", i)
		}
	}
	return nil
}
