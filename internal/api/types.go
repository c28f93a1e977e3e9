package api

import "github.com/shopspring/decimal"

// APICoinMarket is one row of GET /coins/markets.
type APICoinMarket struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Image         string `json:"image"`
	MarketCapRank *int   `json:"market_cap_rank"`

	CurrentPrice             decimal.NullDecimal `json:"current_price"`
	MarketCap                decimal.NullDecimal `json:"market_cap"`
	TotalVolume              decimal.NullDecimal `json:"total_volume"`
	High24h                  decimal.NullDecimal `json:"high_24h"`
	Low24h                   decimal.NullDecimal `json:"low_24h"`
	PriceChangePercentage24h decimal.NullDecimal `json:"price_change_percentage_24h"`

	LastUpdated string `json:"last_updated"`
}

// APICoinDetail is the response of GET /coins/{id}.
type APICoinDetail struct {
	ID            string            `json:"id"`
	Symbol        string            `json:"symbol"`
	Name          string            `json:"name"`
	MarketCapRank *int              `json:"market_cap_rank"`
	Image         APIImage          `json:"image"`
	MarketData    APIMarketData     `json:"market_data"`
	Description   map[string]string `json:"description"`
	Links         APILinks          `json:"links"`
	LastUpdated   string            `json:"last_updated"`
}

// APIImage holds icon URLs in several sizes.
type APIImage struct {
	Thumb string `json:"thumb"`
	Small string `json:"small"`
	Large string `json:"large"`
}

// APIMarketData holds per-currency market figures for a coin.
type APIMarketData struct {
	CurrentPrice             map[string]decimal.Decimal `json:"current_price"`
	MarketCap                map[string]decimal.Decimal `json:"market_cap"`
	TotalVolume              map[string]decimal.Decimal `json:"total_volume"`
	High24h                  map[string]decimal.Decimal `json:"high_24h"`
	Low24h                   map[string]decimal.Decimal `json:"low_24h"`
	PriceChangePercentage24h decimal.NullDecimal        `json:"price_change_percentage_24h"`
}

// APILinks holds external links for a coin.
type APILinks struct {
	Homepage []string `json:"homepage"`
}
