// Package model defines shared data types used across marketview.
//
// Conventions:
//   - Records are value snapshots; a fetch produces new values, nothing is
//     mutated in place
//   - Prices and percentages: decimal.NullDecimal, null when upstream omits them
//   - Rank: market-cap rank, 0 when upstream has none
package model
