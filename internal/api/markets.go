package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cryptotracker/marketview/internal/model"
)

// PageKey is the logical request key for a listing page.
func PageKey(page int) string {
	return "markets-page-" + strconv.Itoa(page)
}

// DetailKey is the logical request key shared by all detail requests, so
// opening a second coin cancels the first.
const DetailKey = "coin-details"

// MarketsPage fetches one page of the market listing, ordered by market cap.
func (c *Client) MarketsPage(ctx context.Context, page, perPage int) ([]model.Record, error) {
	query := url.Values{}
	query.Set("vs_currency", c.vsCurrency)
	query.Set("order", c.order)
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))
	query.Set("sparkline", "false")

	var rows []APICoinMarket
	if err := c.get(ctx, PageKey(page), "/coins/markets", query, &rows); err != nil {
		return nil, fmt.Errorf("get markets page %d: %w", page, err)
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.ToModel())
	}

	return records, nil
}

// Coin fetches the detail view of a single coin.
func (c *Client) Coin(ctx context.Context, id string) (*model.CoinDetail, error) {
	query := url.Values{}
	query.Set("localization", "false")
	query.Set("tickers", "false")
	query.Set("community_data", "false")
	query.Set("developer_data", "false")

	var resp APICoinDetail
	if err := c.get(ctx, DetailKey, "/coins/"+url.PathEscape(id), query, &resp); err != nil {
		return nil, fmt.Errorf("get coin %s: %w", id, err)
	}

	detail := resp.ToModel(c.vsCurrency)
	return &detail, nil
}
