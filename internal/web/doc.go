// Package web serves the HTTP surface of a marketview instance.
//
// Routes:
//
//	GET /health            component status (database, cache, recorder)
//	GET /metrics           Prometheus collectors
//	GET /api/markets       recorder snapshot, optional ?q= filter
//	GET /api/coins/{id}    coin detail from the upstream API
//	GET /api/quotes/{id}   latest cached quote
//	GET /api/history/{id}  recent recorded ticks, ?limit= (default 100)
//	GET /ws                live view sessions
package web
