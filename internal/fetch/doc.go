// Package fetch implements the request gateway used by every upstream call.
//
// The gateway:
//   - Deduplicates in-flight requests by logical key (last writer wins)
//   - Cancels superseded requests and reports them as KindCancelled
//   - Classifies HTTP 429 as KindRateLimited, everything else as KindFailed
//   - Never retains a registry entry for a settled request
package fetch
