// Package tui renders a live market view in the terminal.
//
// A Bridge is the tracker's Listener. Every notification collapses into a
// single pending changedMsg; the model then reads the tracker's snapshot,
// so bursts of updates never block the tracker loop.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cryptotracker/marketview/internal/fetch"
	"github.com/cryptotracker/marketview/internal/model"
)

// changedMsg tells the model to re-read the tracker view.
type changedMsg struct{}

// Bridge adapts tracker notifications to Bubble Tea messages.
type Bridge struct {
	changed chan struct{}
}

// NewBridge creates a Bridge.
func NewBridge() *Bridge {
	return &Bridge{changed: make(chan struct{}, 1)}
}

func (b *Bridge) notify() {
	select {
	case b.changed <- struct{}{}:
	default:
	}
}

// wait blocks until the next notification.
func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		<-b.changed
		return changedMsg{}
	}
}

func (b *Bridge) CollectionUpdated([]model.Record) { b.notify() }
func (b *Bridge) LoadingStateChanged(bool)         { b.notify() }
func (b *Bridge) Error(fetch.Kind, string)         { b.notify() }
func (b *Bridge) RateLimited(time.Duration)        { b.notify() }
func (b *Bridge) RateLimitCleared()                { b.notify() }
func (b *Bridge) LastUpdated(time.Time)            { b.notify() }
func (b *Bridge) LoadMoreAvailable(bool)           { b.notify() }
