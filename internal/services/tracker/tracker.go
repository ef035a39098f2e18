// Package tracker runs the per-page change detection cycle:
// normalize, extract, diff against the latest snapshot, persist.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Houeta/rival-radar/internal/extract"
	"github.com/Houeta/rival-radar/internal/models"
	"github.com/Houeta/rival-radar/internal/normalize"
	"github.com/Houeta/rival-radar/internal/repository"
	"github.com/Houeta/rival-radar/internal/services/differ"
	"golang.org/x/sync/errgroup"
)

// Fetcher is the external collaborator that retrieves page bytes. The
// tracker never performs network I/O itself.
type Fetcher interface {
	Fetch(ctx context.Context, page models.TrackedPage) models.FetchResult
}

// Tracker is an orchestrator that performs full page cycles.
type Tracker struct {
	log       *slog.Logger
	norm      *normalize.Normalizer
	extractor *extract.Extractor
	differ    *differ.Differ
	repo      repository.SnapshotRepository
	// budget bounds structured extraction per page; past it the cycle
	// degrades to the generic shape instead of blocking the pool.
	budget  time.Duration
	workers int

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates a Tracker. workers <= 0 defaults to 5; budget <= 0 disables
// the extraction deadline.
func New(
	log *slog.Logger,
	norm *normalize.Normalizer,
	extractor *extract.Extractor,
	dif *differ.Differ,
	repo repository.SnapshotRepository,
	budget time.Duration,
	workers int,
) *Tracker {
	if workers <= 0 {
		workers = 5
	}
	return &Tracker{
		log:       log,
		norm:      norm,
		extractor: extractor,
		differ:    dif,
		repo:      repo,
		budget:    budget,
		workers:   workers,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// RunCycle performs one full cycle for a single page. Cycles for the same
// page are serialized; unrelated pages never contend. A failed fetch is a
// no-op result; only repository failures propagate as errors, in which case
// nothing was committed and the cycle is eligible for immediate retry.
func (t *Tracker) RunCycle(
	ctx context.Context,
	page models.TrackedPage,
	fetch models.FetchResult,
) (*models.CycleResult, error) {
	const opn = "tracker.RunCycle"
	log := t.log.With("op", opn, "competitor", page.Competitor, "url", page.URL)

	lock := t.pageLock(page.ID)
	lock.Lock()
	defer lock.Unlock()

	if !fetch.Succeeded {
		log.WarnContext(ctx, "Fetch failed, skipping cycle", "fetch_error", fetch.FetchError)
		return &models.CycleResult{PageID: page.ID}, nil
	}

	snap := t.buildSnapshot(ctx, page, fetch)

	prev, err := t.repo.LatestSnapshot(ctx, page.ID)
	if err != nil && !errors.Is(err, repository.ErrSnapshotNotFound) {
		return nil, fmt.Errorf("%s: failed to get latest snapshot: %w", opn, err)
	}

	events := t.differ.Diff(prev, snap)
	if prev != nil && prev.Hash == snap.Hash {
		log.DebugContext(ctx, "Page hash has not changed")
	}

	// Append the snapshot first so recorded events only ever reference a
	// committed snapshot.
	stored, err := t.repo.AppendSnapshot(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to append snapshot: %w", opn, err)
	}

	now := time.Now().UTC()
	for i := range events {
		events[i].NewSnapshotID = stored.ID
		events[i].DetectedAt = now
	}

	count, err := t.repo.RecordChanges(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to record changes: %w", opn, err)
	}

	if count > 0 {
		log.InfoContext(ctx, "Change detection complete", "changes", count)
	}

	return &models.CycleResult{
		PageID:      page.ID,
		SnapshotID:  stored.ID,
		ChangeCount: count,
		Changes:     events,
	}, nil
}

// RunAll fetches and cycles every page on a bounded worker pool. Cycles for
// distinct pages run concurrently; a failing cycle is logged and does not
// stop the rest. Returns the total number of recorded changes.
func (t *Tracker) RunAll(ctx context.Context, fetcher Fetcher, pages []models.TrackedPage) int {
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(t.workers)

	var total atomic.Int64
	for _, page := range pages {
		grp.Go(func() error {
			fetch := fetcher.Fetch(grpCtx, page)
			result, err := t.RunCycle(grpCtx, page, fetch)
			if err != nil {
				t.log.ErrorContext(grpCtx, "Cycle failed", "competitor", page.Competitor, "url", page.URL, "error", err)
				return nil
			}
			total.Add(int64(result.ChangeCount))
			return nil
		})
	}
	_ = grp.Wait()

	return int(total.Load())
}

// buildSnapshot normalizes and extracts one fetched page into an uncommitted
// snapshot. Any extraction trouble degrades to the generic shape; this step
// never fails the cycle.
func (t *Tracker) buildSnapshot(
	ctx context.Context,
	page models.TrackedPage,
	fetch models.FetchResult,
) *models.Snapshot {
	capturedAt := fetch.FetchedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	res, err := t.norm.Canonicalize(ctx, fetch.Content, page.Selector)
	if err != nil {
		// Unparseable markup: fall back to collapsed raw text.
		t.log.WarnContext(ctx, "Markup not parseable, degrading to raw text", "url", page.URL, "error", err)
		canonical := normalize.CollapseText(normalize.StripVolatile(string(fetch.Content)))
		return &models.Snapshot{
			PageID:     page.ID,
			Hash:       normalize.HashText(canonical),
			Canonical:  canonical,
			Structured: models.Structured{Kind: models.PageTypeGeneric, Text: canonical},
			CapturedAt: capturedAt,
		}
	}

	structured := t.extractWithBudget(ctx, page, res)

	return &models.Snapshot{
		PageID:     page.ID,
		Hash:       res.Hash,
		Canonical:  res.Canonical,
		Structured: structured,
		Meta: models.SnapshotMeta{
			Truncated:    res.Truncated,
			ElementCount: res.ElementCount,
			SelectorMiss: res.SelectorMiss,
		},
		CapturedAt: capturedAt,
	}
}

// extractWithBudget runs structured extraction, aborting to the generic
// shape once the per-page budget elapses. A runaway extraction finishes on
// its own goroutine and its result is dropped.
func (t *Tracker) extractWithBudget(
	ctx context.Context,
	page models.TrackedPage,
	res *normalize.Result,
) models.Structured {
	if t.budget <= 0 {
		return t.extractor.Extract(ctx, res.Scope, page.Type, res.Canonical)
	}

	done := make(chan models.Structured, 1)
	go func() {
		done <- t.extractor.Extract(ctx, res.Scope, page.Type, res.Canonical)
	}()

	timer := time.NewTimer(t.budget)
	defer timer.Stop()

	select {
	case structured := <-done:
		return structured
	case <-timer.C:
		t.log.WarnContext(ctx, "Extraction exceeded budget, degrading to generic shape",
			"url", page.URL, "budget", t.budget)
	case <-ctx.Done():
	}

	return models.Structured{Kind: models.PageTypeGeneric, Text: res.Canonical}
}

// pageLock returns the exclusive-section mutex for one page.
func (t *Tracker) pageLock(pageID int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[pageID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[pageID] = lock
	}
	return lock
}
