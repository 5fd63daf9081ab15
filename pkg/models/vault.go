package models

// VaultInfo mirrors the on-chain vault resource. Collateral is in octas and
// max leverage is a stringified integer, exactly as the view function returns
// them.
type VaultInfo struct {
	TraderFollowing string `json:"trader_following"`
	Collateral      string `json:"collateral"`
	MaxLeverage     string `json:"max_leverage"`
	IsActive        bool   `json:"is_active"`
}

// TraderStats are aggregate stats the contract keeps per followed trader.
// WinRate is in basis points.
type TraderStats struct {
	TotalFollowers uint64 `json:"total_followers"`
	TotalPositions uint64 `json:"total_positions"`
	WinRate        uint64 `json:"win_rate"`
}
