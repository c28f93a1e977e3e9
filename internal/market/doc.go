// Package market holds the pure collection operations behind the tracker:
// folding freshly fetched pages into the rank-ordered canonical collection
// and deriving the searched subset shown to the user.
//
// Both Merge and Filter treat their inputs as read-only and return new
// slices, so a published collection can be shared with readers while the
// next merge is computed.
package market
