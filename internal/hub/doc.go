// Package hub serves the websocket render transport.
//
// Every connection is a view session: it owns one tracker.Tracker (and with
// it one request registry and one poll scheduler), forwards the tracker's
// notifications to the browser as JSON messages, and turns inbound commands
// into tracker operations. Closing the socket tears the tracker down.
package hub
