package api

import (
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/cryptotracker/marketview/internal/model"
)

// MaxDescriptionLen is the number of characters kept from a coin description.
const MaxDescriptionLen = 800

// ToModel converts an API market row to a model.Record.
func (m APICoinMarket) ToModel() model.Record {
	return model.Record{
		ID:             m.ID,
		Rank:           derefRank(m.MarketCapRank),
		Symbol:         m.Symbol,
		Name:           m.Name,
		Image:          m.Image,
		CurrentPrice:   m.CurrentPrice,
		PriceChange24h: m.PriceChangePercentage24h,
		MarketCap:      m.MarketCap,
		TotalVolume:    m.TotalVolume,
		High24h:        m.High24h,
		Low24h:         m.Low24h,
		LastUpdated:    m.LastUpdated,
	}
}

// ToModel converts a coin detail response, picking figures in currency.
func (d APICoinDetail) ToModel(currency string) model.CoinDetail {
	image := d.Image.Large
	if image == "" {
		image = d.Image.Small
	}

	return model.CoinDetail{
		Record: model.Record{
			ID:             d.ID,
			Rank:           derefRank(d.MarketCapRank),
			Symbol:         d.Symbol,
			Name:           d.Name,
			Image:          image,
			CurrentPrice:   pick(d.MarketData.CurrentPrice, currency),
			PriceChange24h: d.MarketData.PriceChangePercentage24h,
			MarketCap:      pick(d.MarketData.MarketCap, currency),
			TotalVolume:    pick(d.MarketData.TotalVolume, currency),
			High24h:        pick(d.MarketData.High24h, currency),
			Low24h:         pick(d.MarketData.Low24h, currency),
			LastUpdated:    d.LastUpdated,
		},
		Description: Truncate(StripHTML(d.Description["en"]), MaxDescriptionLen),
		Homepage:    firstValidURL(d.Links.Homepage),
	}
}

func derefRank(rank *int) int {
	if rank == nil || *rank < 0 {
		return 0
	}
	return *rank
}

func pick(values map[string]decimal.Decimal, currency string) decimal.NullDecimal {
	v, ok := values[currency]
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}

// StripHTML returns the text content of an HTML fragment with runs of
// whitespace collapsed to single spaces.
func StripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				break
			}
			return strings.Join(strings.Fields(b.String()), " ")
		}
		if tt == html.TextToken {
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Truncate shortens s to at most n characters, appending "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// IsValidURL reports whether raw is an absolute http or https URL.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func firstValidURL(urls []string) string {
	if len(urls) == 0 || !IsValidURL(urls[0]) {
		return ""
	}
	return urls[0]
}
