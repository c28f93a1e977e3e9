// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Upstream fetch outcomes by kind
//   - Poll delay and rate-limited cycles
//   - Canonical collection size per tracker
//   - Live websocket sessions
//   - History writer inserts and errors
package metrics
