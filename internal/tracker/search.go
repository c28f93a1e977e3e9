package tracker

import "github.com/cryptotracker/marketview/internal/market"

// setSearchQuery applies text once no newer query arrives within the
// debounce delay.
func (t *Tracker) setSearchQuery(text string) {
	if t.searchTimer != nil {
		t.searchTimer.Stop()
		t.searchTimer = nil
	}
	t.searchGen++

	if t.cfg.SearchDebounce <= 0 {
		t.applyQuery(text)
		return
	}

	gen := t.searchGen
	t.searchTimer = t.clock.AfterFunc(t.cfg.SearchDebounce, func() {
		t.post(func() {
			if gen != t.searchGen {
				return
			}
			t.searchTimer = nil
			t.applyQuery(text)
		})
	})
}

func (t *Tracker) applyQuery(text string) {
	q := market.NormalizeQuery(text)
	if q == t.query {
		return
	}
	t.query = q
	t.publish()
}
