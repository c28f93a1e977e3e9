package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the market_ticks table.
const Schema = `
CREATE TABLE IF NOT EXISTS market_ticks (
	coin_id     TEXT        NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	rank        INTEGER,
	price       NUMERIC,
	market_cap  NUMERIC,
	volume      NUMERIC,
	change_24h  NUMERIC,
	PRIMARY KEY (coin_id, observed_at)
)`

// Execer executes a statement.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the market_ticks table if it does not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create market_ticks: %w", err)
	}
	return nil
}
