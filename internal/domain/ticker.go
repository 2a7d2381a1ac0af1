package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is the latest known price snapshot for one asset symbol.
// Source tags the last writer (e.g. "binance", "stream").
type Ticker struct {
	Symbol        string           `json:"symbol"`
	Price         decimal.Decimal  `json:"price"`
	Change24h     *decimal.Decimal `json:"change_24h,omitempty"`
	Volume24h     *decimal.Decimal `json:"volume_24h,omitempty"`
	MarketCap     *decimal.Decimal `json:"market_cap,omitempty"`
	High24h       *decimal.Decimal `json:"high_24h,omitempty"`
	Low24h        *decimal.Decimal `json:"low_24h,omitempty"`
	Source        string           `json:"source"`
	LastUpdatedAt time.Time        `json:"last_updated_at"`
}

// PartialTicker carries only the fields one source knows about.
// Nil fields are preserved from the prior record on merge.
type PartialTicker struct {
	Price     *decimal.Decimal
	Change24h *decimal.Decimal
	Volume24h *decimal.Decimal
	MarketCap *decimal.Decimal
	High24h   *decimal.Decimal
	Low24h    *decimal.Decimal
}

// Age returns how old the snapshot is at the given instant.
func (t Ticker) Age(now time.Time) time.Duration {
	return now.Sub(t.LastUpdatedAt)
}
