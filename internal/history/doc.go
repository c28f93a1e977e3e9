// Package history records every fetched market row as a price tick.
//
// The Writer is a tracker sink: Consume converts records to ticks and queues
// them without blocking, and a background loop inserts them into the
// market_ticks table in batches using pgx.Batch. Ticks are append-only;
// a repeated (coin_id, observed_at) pair is ignored.
//
// History is write-mostly. Nothing in a view's state is restored from it.
package history
