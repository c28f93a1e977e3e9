package tracker

import (
	"time"

	"github.com/cryptotracker/marketview/internal/model"
)

// View is a read-only snapshot of a tracker's state.
type View struct {
	Collection  []model.Record // canonical, rank ordered
	Filtered    []model.Record // Collection matched against Query
	Query       string
	Page        int
	HasMore     bool
	Loading     bool
	Loaded      bool
	RateLimited bool
	RetryIn     time.Duration
	LastUpdated time.Time
	Err         string
}

// LoadMoreAvailable reports whether the view should offer another page.
// It is hidden while a search is active.
func (v View) LoadMoreAvailable() bool {
	return v.Loaded && v.HasMore && !v.searching()
}

func (v View) searching() bool {
	return v.Query != ""
}
