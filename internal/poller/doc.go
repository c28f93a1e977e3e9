// Package poller implements the adaptive poll scheduler.
//
// The Scheduler:
//   - Owns a single pending timer and never arms a second one
//   - Never starts a poll while the previous one is unresolved
//   - Doubles its delay on each rate-limited outcome, bounded by a
//     multiplier cap and a maximum interval, and resets on success
//   - Suspends while the view is hidden and re-arms on resume
//
// The scheduler does no fetching itself. When its timer fires it calls the
// fire callback; the owner starts a poll with Begin and reports the result
// with Complete.
package poller
