package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cryptotracker/marketview/internal/model"
)

const selectRecent = `
	SELECT coin_id, observed_at, COALESCE(rank, 0), price, market_cap, volume, change_24h
	FROM market_ticks
	WHERE coin_id = $1
	ORDER BY observed_at DESC
	LIMIT $2
`

// Querier runs a query. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Recent returns up to limit ticks for coinID, newest first.
func Recent(ctx context.Context, db Querier, coinID string, limit int) ([]model.Tick, error) {
	rows, err := db.Query(ctx, selectRecent, coinID, limit)
	if err != nil {
		return nil, fmt.Errorf("query market_ticks: %w", err)
	}

	ticks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Tick, error) {
		var t model.Tick
		err := row.Scan(&t.CoinID, &t.ObservedAt, &t.Rank, &t.Price, &t.MarketCap, &t.Volume, &t.Change24h)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan market_ticks: %w", err)
	}
	return ticks, nil
}
