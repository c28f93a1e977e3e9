package tracker

import (
	"github.com/cryptotracker/marketview/internal/fetch"
	"github.com/cryptotracker/marketview/internal/market"
	"github.com/cryptotracker/marketview/internal/model"
	"github.com/cryptotracker/marketview/internal/poller"
)

func (t *Tracker) initialLoad() {
	if t.loading || t.loaded {
		return
	}
	if !t.sched.Begin() {
		// A poll holds the scheduler; it will populate the collection.
		return
	}

	t.page = 1
	t.initialCancelled = false
	t.setLoading(true)

	epoch := t.epoch
	t.fetchPage(1, func(records []model.Record, err error) {
		if epoch != t.epoch {
			return
		}
		t.finishInitialLoad(records, err)
	})
}

func (t *Tracker) finishInitialLoad(records []model.Record, err error) {
	t.setLoading(false)

	if err != nil {
		kind := fetch.KindOf(err)
		switch kind {
		case fetch.KindCancelled:
			t.initialCancelled = true
			t.sched.Complete(poller.OutcomeCancelled)
			t.logger.Debug("initial load cancelled")
		case fetch.KindRateLimited:
			d, armed := t.sched.Complete(poller.OutcomeRateLimited)
			t.logger.Warn("initial load rate limited", "retry_in", d)
			if armed {
				t.setRateLimited(d)
			}
		default:
			if t.autoRetry {
				t.sched.Start()
			}
			d, armed := t.sched.Complete(poller.OutcomeFailed)
			if armed {
				t.logger.Info("initial load will retry", "retry_in", d)
			}
			t.lastErr = err.Error()
			t.logger.Warn("initial load failed", "err", err)
			t.listener.Error(kind, t.lastErr)
			t.snapshot()
		}
		return
	}

	t.canonical = market.Merge(nil, records)
	t.hasMore = len(records) == t.cfg.PerPage
	t.loaded = true
	t.touch()
	t.clearRateLimited()
	t.publish()

	t.sched.Start()
	t.sched.Complete(poller.OutcomeSuccess)

	t.logger.Info("initial load complete", "records", len(records), "has_more", t.hasMore)
}

func (t *Tracker) loadNextPage() {
	if t.loading || !t.loaded || !t.hasMore {
		return
	}
	if t.polling {
		t.deferredLoadMore = true
		return
	}

	t.page++
	page := t.page
	t.pendingPage = page
	t.setLoading(true)

	epoch := t.epoch
	t.fetchPage(page, func(records []model.Record, err error) {
		if epoch != t.epoch {
			return
		}
		t.finishLoadMore(page, records, err)
	})
}

func (t *Tracker) finishLoadMore(page int, records []model.Record, err error) {
	t.pendingPage = 0

	if err != nil || len(records) == 0 {
		t.page = page - 1
	}

	switch {
	case err == nil && len(records) == 0:
		t.hasMore = false
		t.logger.Debug("no more pages", "page", page)
	case err == nil:
		t.canonical = market.Merge(t.canonical, records)
		t.hasMore = len(records) == t.cfg.PerPage
		t.touch()
		t.sched.Recover()
		t.clearRateLimited()
	case fetch.IsCancelled(err):
		t.logger.Debug("load more cancelled", "page", page)
	case fetch.IsRateLimited(err):
		d, armed := t.sched.Throttle()
		t.logger.Warn("load more rate limited", "page", page, "retry_in", d, "armed", armed)
		t.setRateLimited(d)
	default:
		t.lastErr = err.Error()
		t.logger.Warn("load more failed", "page", page, "err", err)
		t.listener.Error(fetch.KindOf(err), t.lastErr)
	}

	t.setLoading(false)
	t.publish()
}

func (t *Tracker) retry() {
	t.epoch++
	t.source.CancelAll()
	t.sched.Reset()

	t.canonical = nil
	t.page = 0
	t.pendingPage = 0
	t.hasMore = false
	t.loaded = false
	t.polling = false
	t.deferredLoadMore = false
	t.lastErr = ""
	t.setLoading(false)
	t.clearRateLimited()
	t.publish()

	t.logger.Info("retrying initial load")
	t.initialLoad()
}

func (t *Tracker) setVisible(visible bool) {
	if t.visible == visible {
		return
	}
	t.visible = visible

	if !visible {
		t.sched.Suspend()
		t.source.CancelAll()
		t.logger.Debug("view hidden, polling suspended")
		return
	}

	d, armed := t.sched.Resume()
	if armed && t.rateLimited {
		t.setRateLimited(d)
	}
	if !t.loaded && t.initialCancelled {
		t.initialLoad()
	}
	t.logger.Debug("view visible, polling resumed", "next", d, "armed", armed)
}
