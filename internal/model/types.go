package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one market entry in the canonical collection.
type Record struct {
	ID     string `json:"id"`     // Upstream coin id (e.g., "bitcoin")
	Rank   int    `json:"rank"`   // Market-cap rank, 0 = unranked
	Symbol string `json:"symbol"` // Ticker symbol (e.g., "btc")
	Name   string `json:"name"`   // Display name
	Image  string `json:"image"`  // Icon URL

	CurrentPrice   decimal.NullDecimal `json:"current_price"`
	PriceChange24h decimal.NullDecimal `json:"price_change_percentage_24h"`
	MarketCap      decimal.NullDecimal `json:"market_cap"`
	TotalVolume    decimal.NullDecimal `json:"total_volume"`
	High24h        decimal.NullDecimal `json:"high_24h"`
	Low24h         decimal.NullDecimal `json:"low_24h"`

	LastUpdated string `json:"last_updated"` // Upstream ISO 8601 timestamp, passed through
}

// HasRank reports whether the record carries a market-cap rank.
func (r Record) HasRank() bool {
	return r.Rank > 0
}

// CoinDetail is the single-resource view of a coin.
type CoinDetail struct {
	Record

	Description string `json:"description"` // Plain text, truncated
	Homepage    string `json:"homepage"`    // Empty unless an absolute http(s) URL
}

// Tick is one observed price point, as recorded by the history writer.
type Tick struct {
	CoinID     string
	ObservedAt time.Time
	Rank       int
	Price      decimal.NullDecimal
	MarketCap  decimal.NullDecimal
	Volume     decimal.NullDecimal
	Change24h  decimal.NullDecimal
}

// TickFromRecord converts a record observed at the given time.
func TickFromRecord(r Record, at time.Time) Tick {
	return Tick{
		CoinID:     r.ID,
		ObservedAt: at,
		Rank:       r.Rank,
		Price:      r.CurrentPrice,
		MarketCap:  r.MarketCap,
		Volume:     r.TotalVolume,
		Change24h:  r.PriceChange24h,
	}
}
