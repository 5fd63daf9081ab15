package kana

// CalculatePnL estimates the unrealized P&L of a position for display.
// tradeSide is true for long, false for short. The exchange is authoritative
// for realized P&L; this is only a local estimate.
func CalculatePnL(tradeSide bool, entryPrice, currentPrice, size, leverage float64) float64 {
	priceDiff := currentPrice - entryPrice
	if !tradeSide {
		priceDiff = entryPrice - currentPrice
	}

	pnlPercent := (priceDiff / entryPrice) * leverage
	collateralUsed := (size * entryPrice) / leverage

	return collateralUsed * pnlPercent
}
