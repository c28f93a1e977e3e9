package hub

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/cryptotracker/marketview/internal/model"
)

// Outbound message types.
const (
	TypeCollection       = "collection"
	TypeLoading          = "loading"
	TypeError            = "error"
	TypeRateLimited      = "rate_limited"
	TypeRateLimitCleared = "rate_limit_cleared"
	TypeLastUpdated      = "last_updated"
	TypeLoadMore         = "load_more"
	TypeHello            = "hello"
)

// Inbound command types.
const (
	CmdSearch     = "search"
	CmdLoadMore   = "load_more"
	CmdVisibility = "visibility"
	CmdRetry      = "retry"
	CmdRefresh    = "refresh"
)

// Errors
var (
	ErrUnknownCommand = errors.New("unknown command")
)

// Message is the envelope for every outbound message.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// HelloData is sent once when a session opens.
type HelloData struct {
	SessionID string `json:"session_id"`
	Currency  string `json:"currency,omitempty"`
}

// CollectionData carries the filtered collection.
type CollectionData struct {
	Records []model.Record `json:"records"`
	Count   int            `json:"count"`
}

// LoadingData carries the loading flag.
type LoadingData struct {
	Loading bool `json:"loading"`
}

// ErrorData carries a user-visible failure.
type ErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RateLimitedData carries the backoff delay.
type RateLimitedData struct {
	RetryInSeconds int `json:"retry_in_seconds"`
}

// LastUpdatedData carries the time of the last successful merge.
type LastUpdatedData struct {
	At time.Time `json:"at"`
}

// LoadMoreData says whether another page can be requested.
type LoadMoreData struct {
	Available bool `json:"available"`
}

// Command is an inbound message from the browser.
type Command struct {
	Type    string `json:"type"`
	Query   string `json:"query,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
}

// ParseCommand decodes and checks an inbound command.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, err
	}
	switch cmd.Type {
	case CmdSearch, CmdLoadMore, CmdRetry, CmdRefresh:
	case CmdVisibility:
		if cmd.Visible == nil {
			return Command{}, errors.New("visibility command missing visible")
		}
	default:
		return Command{}, ErrUnknownCommand
	}
	return cmd, nil
}
