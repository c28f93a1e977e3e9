package tracker

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/cryptotracker/marketview/internal/fetch"
	"github.com/cryptotracker/marketview/internal/market"
	"github.com/cryptotracker/marketview/internal/model"
	"github.com/cryptotracker/marketview/internal/poller"
)

type pageResult struct {
	page    int
	records []model.Record
	err     error
}

// poll refreshes every loaded page. It is dropped when the view is hidden
// or another poll holds the scheduler.
func (t *Tracker) poll() {
	if !t.visible {
		return
	}
	if !t.sched.Begin() {
		return
	}
	t.polling = true

	pages := t.page
	if t.pendingPage > 0 {
		pages = t.pendingPage - 1
	}
	if pages < 1 {
		pages = 1
	}

	ctx := t.ctx
	epoch := t.epoch
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		results := t.fetchPages(ctx, pages)
		t.post(func() {
			if epoch != t.epoch {
				return
			}
			t.finishPoll(results)
		})
	}()
}

// fetchPages fetches pages 1..n concurrently. Every page is attempted; a
// failed page does not cancel the others.
func (t *Tracker) fetchPages(ctx context.Context, n int) []pageResult {
	results := make([]pageResult, n)

	var g errgroup.Group
	g.SetLimit(t.cfg.Concurrency)
	for i := range n {
		page := i + 1
		g.Go(func() error {
			records, err := t.source.MarketsPage(ctx, page, t.cfg.PerPage)
			if err == nil {
				t.deliver(records)
			}
			results[i] = pageResult{page: page, records: records, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// classify reduces per-page results to one scheduler outcome. Any throttled
// page makes the cycle rate limited; otherwise any success makes it a
// success.
func classify(results []pageResult) (poller.Outcome, error) {
	var (
		succeeded, throttled bool
		cancelled            int
		errs                 []error
	)
	for _, r := range results {
		switch {
		case r.err == nil:
			succeeded = true
		case fetch.IsRateLimited(r.err):
			throttled = true
		case fetch.IsCancelled(r.err):
			cancelled++
		default:
			errs = append(errs, r.err)
		}
	}

	switch {
	case throttled:
		return poller.OutcomeRateLimited, nil
	case succeeded:
		return poller.OutcomeSuccess, errors.Join(errs...)
	case cancelled == len(results):
		return poller.OutcomeCancelled, nil
	default:
		return poller.OutcomeFailed, errors.Join(errs...)
	}
}

func (t *Tracker) finishPoll(results []pageResult) {
	t.polling = false

	var batch []model.Record
	for _, r := range results {
		if r.err == nil {
			batch = append(batch, r.records...)
		}
	}

	outcome, err := classify(results)

	if len(batch) > 0 || (outcome == poller.OutcomeSuccess && !t.loaded) {
		t.canonical = market.Merge(t.canonical, batch)
		if !t.loaded {
			t.loaded = true
			t.page = 1
			t.hasMore = len(results[0].records) == t.cfg.PerPage
		}
	}
	if outcome == poller.OutcomeSuccess || len(batch) > 0 {
		t.touch()
	}

	if err != nil {
		t.logger.Warn("poll cycle had failures", "outcome", outcome, "err", err)
	}
	if outcome == poller.OutcomeFailed {
		t.lastErr = err.Error()
		t.listener.Error(fetch.KindFailed, t.lastErr)
	}

	if t.loaded {
		t.sched.Start()
	}
	d, armed := t.sched.Complete(outcome)

	switch outcome {
	case poller.OutcomeRateLimited:
		if armed {
			t.setRateLimited(d)
		}
	case poller.OutcomeSuccess:
		t.clearRateLimited()
	}

	t.publish()
	t.logger.Debug("poll cycle complete",
		"pages", len(results),
		"records", len(batch),
		"outcome", outcome,
		"next", d,
	)

	if t.deferredLoadMore {
		t.deferredLoadMore = false
		t.loadNextPage()
	}
}
