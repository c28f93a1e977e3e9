// Package database provides the PostgreSQL connection pool for price
// history (the market_ticks table).
package database
