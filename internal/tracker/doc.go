// Package tracker implements the per-view synchronization engine.
//
// A Tracker owns one canonical collection, one poll scheduler and one
// source of market pages. Every mutation of that state happens on the
// tracker's event loop goroutine; fetch goroutines and timers post their
// results back to the loop. Readers on other goroutines use View, which
// returns the most recently published snapshot.
//
// Inbound operations (StartInitialLoad, LoadNextPage, SetSearchQuery,
// SetVisible, Retry, Refresh, Teardown) are asynchronous. Outbound
// notifications are delivered to a Listener on the loop goroutine.
package tracker
