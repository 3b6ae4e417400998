package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote represents one instrument's session summary for a single trading day
type Quote struct {
	ID          int             `json:"id"`
	Ticker      string          `json:"ticker"`
	TradingDate time.Time       `json:"trading_date"`
	Open        decimal.Decimal `json:"open"`
	Close       decimal.Decimal `json:"close"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Volume      int64           `json:"volume"`
	IngestedAt  time.Time       `json:"ingested_at"`
}
