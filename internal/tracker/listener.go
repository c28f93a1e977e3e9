package tracker

import (
	"time"

	"github.com/cryptotracker/marketview/internal/fetch"
	"github.com/cryptotracker/marketview/internal/model"
)

// Listener receives tracker notifications. Methods are called on the
// tracker's loop goroutine and must not block.
type Listener interface {
	// CollectionUpdated delivers the filtered view after every merge or
	// query change. The slice must not be modified.
	CollectionUpdated(records []model.Record)
	LoadingStateChanged(loading bool)
	Error(kind fetch.Kind, message string)
	RateLimited(retryIn time.Duration)
	RateLimitCleared()
	LastUpdated(at time.Time)
	LoadMoreAvailable(available bool)
}

// ListenerFuncs adapts optional functions to a Listener. Nil fields are
// skipped.
type ListenerFuncs struct {
	OnCollectionUpdated   func(records []model.Record)
	OnLoadingStateChanged func(loading bool)
	OnError               func(kind fetch.Kind, message string)
	OnRateLimited         func(retryIn time.Duration)
	OnRateLimitCleared    func()
	OnLastUpdated         func(at time.Time)
	OnLoadMoreAvailable   func(available bool)
}

func (f ListenerFuncs) CollectionUpdated(records []model.Record) {
	if f.OnCollectionUpdated != nil {
		f.OnCollectionUpdated(records)
	}
}

func (f ListenerFuncs) LoadingStateChanged(loading bool) {
	if f.OnLoadingStateChanged != nil {
		f.OnLoadingStateChanged(loading)
	}
}

func (f ListenerFuncs) Error(kind fetch.Kind, message string) {
	if f.OnError != nil {
		f.OnError(kind, message)
	}
}

func (f ListenerFuncs) RateLimited(retryIn time.Duration) {
	if f.OnRateLimited != nil {
		f.OnRateLimited(retryIn)
	}
}

func (f ListenerFuncs) RateLimitCleared() {
	if f.OnRateLimitCleared != nil {
		f.OnRateLimitCleared()
	}
}

func (f ListenerFuncs) LastUpdated(at time.Time) {
	if f.OnLastUpdated != nil {
		f.OnLastUpdated(at)
	}
}

func (f ListenerFuncs) LoadMoreAvailable(available bool) {
	if f.OnLoadMoreAvailable != nil {
		f.OnLoadMoreAvailable(available)
	}
}

// Sink receives every successfully fetched batch. Consume is called from
// fetch goroutines and must be safe for concurrent use.
type Sink interface {
	Consume(records []model.Record, at time.Time)
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(records []model.Record, at time.Time)

func (f SinkFunc) Consume(records []model.Record, at time.Time) {
	f(records, at)
}
