package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBookBestLevels(t *testing.T) {
	book := &OrderBook{
		Bids: []OrderBookLevel{
			{Price: 10.50, Size: 100, Total: 100},
			{Price: 10.45, Size: 200, Total: 300},
			{Price: 10.40, Size: 150, Total: 450},
		},
		Asks: []OrderBookLevel{
			{Price: 10.55, Size: 120, Total: 120},
			{Price: 10.60, Size: 180, Total: 300},
			{Price: 10.65, Size: 90, Total: 390},
		},
	}

	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, 10.50, bid.Price)

	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 10.55, ask.Price)

	assert.Less(t, bid.Price, ask.Price)
	assert.NoError(t, book.Validate())
}

func TestOrderBookBestLevelsEmpty(t *testing.T) {
	book := &OrderBook{}

	_, ok := book.BestBid()
	assert.False(t, ok)
	_, ok = book.BestAsk()
	assert.False(t, ok)

	assert.NoError(t, book.Validate())
}

func TestOrderBookValidateCrossed(t *testing.T) {
	book := &OrderBook{
		Bids: []OrderBookLevel{{Price: 10.60, Size: 10, Total: 10}},
		Asks: []OrderBookLevel{{Price: 10.55, Size: 10, Total: 10}},
	}

	err := book.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crossed book")
}

func TestOrderBookValidateDecreasingTotals(t *testing.T) {
	book := &OrderBook{
		Bids: []OrderBookLevel{
			{Price: 10.50, Size: 100, Total: 300},
			{Price: 10.45, Size: 200, Total: 100},
		},
		Asks: []OrderBookLevel{{Price: 10.55, Size: 10, Total: 10}},
	}

	assert.Error(t, book.Validate())
}

func TestOrderBookUnmarshal(t *testing.T) {
	raw := `{"bids":[{"price":10.5,"size":100,"total":100}],"asks":[{"price":10.55,"size":120,"total":120}],"timestamp":1700000000000}`

	var book OrderBook
	require.NoError(t, json.Unmarshal([]byte(raw), &book))

	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, 10.5, book.Bids[0].Price)
	assert.Equal(t, int64(1700000000000), book.Timestamp)
}
