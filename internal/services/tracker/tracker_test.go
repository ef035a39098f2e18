package tracker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Houeta/rival-radar/internal/extract"
	"github.com/Houeta/rival-radar/internal/models"
	"github.com/Houeta/rival-radar/internal/normalize"
	"github.com/Houeta/rival-radar/internal/repository"
	"github.com/Houeta/rival-radar/internal/services/differ"
	"github.com/Houeta/rival-radar/internal/services/tracker"
	"github.com/Houeta/rival-radar/test/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const pricingHTML = `
<html><body>
	<div class="plan"><h3>Pro</h3><span class="price">$39</span></div>
	<div class="plan"><h3>Basic</h3><span class="price">$9</span></div>
</body></html>`

// stubFetcher hands back a canned result without touching the network.
type stubFetcher struct {
	result models.FetchResult
}

func (s *stubFetcher) Fetch(_ context.Context, page models.TrackedPage) models.FetchResult {
	result := s.result
	result.PageID = page.ID
	return result
}

func newTestTracker(repo *mocks.SnapshotRepository) *tracker.Tracker {
	return newBudgetTracker(repo, 0)
}

func newBudgetTracker(repo *mocks.SnapshotRepository, budget time.Duration) *tracker.Tracker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return tracker.New(
		logger,
		normalize.New(logger, 0),
		extract.New(logger, extract.Options{}),
		differ.New(logger, 0),
		repo,
		budget,
		2,
	)
}

func successfulFetch(content string) models.FetchResult {
	return models.FetchResult{
		Content:     []byte(content),
		ContentType: "text/html",
		FetchedAt:   time.Now().UTC(),
		Succeeded:   true,
	}
}

func pricingPage() models.TrackedPage {
	return models.TrackedPage{ID: 1, Competitor: "Acme", URL: "https://acme.test/pricing", Type: models.PageTypePricing}
}

func TestRunCycle_DetectsPriceChange(t *testing.T) {
	ctx := t.Context()

	prev := &models.Snapshot{
		ID:     10,
		PageID: 1,
		Hash:   "previous-hash",
		Structured: models.Structured{
			Kind: models.PageTypePricing,
			Plans: []models.PricingPlan{
				{Name: "Pro", Amount: decimal.NewFromInt(29), Tag: models.TagNormal},
				{Name: "Basic", Amount: decimal.NewFromInt(9), Tag: models.TagNormal},
			},
		},
	}

	mRepo := new(mocks.SnapshotRepository)
	mRepo.On("LatestSnapshot", ctx, int64(1)).Return(prev, nil).Once()
	mRepo.On("AppendSnapshot", ctx, mock.AnythingOfType("*models.Snapshot")).
		Return(&models.Snapshot{ID: 11, PageID: 1}, nil).Once()
	mRepo.On("RecordChanges", ctx, mock.AnythingOfType("[]models.ChangeEvent")).Return(1, nil).Once()

	result, err := newTestTracker(mRepo).RunCycle(ctx, pricingPage(), successfulFetch(pricingHTML))

	require.NoError(t, err)
	assert.Equal(t, int64(11), result.SnapshotID)
	assert.Equal(t, 1, result.ChangeCount)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, models.KindPriceChanged, result.Changes[0].Kind)
	assert.Equal(t, "Pro price changed from 29 to 39", result.Changes[0].Description)
	assert.Equal(t, int64(10), result.Changes[0].PrevSnapshotID)
	assert.Equal(t, int64(11), result.Changes[0].NewSnapshotID)
	assert.False(t, result.Changes[0].DetectedAt.IsZero())
	mRepo.AssertExpectations(t)
}

func TestRunCycle_FirstSnapshotYieldsNoEvents(t *testing.T) {
	ctx := t.Context()

	mRepo := new(mocks.SnapshotRepository)
	mRepo.On("LatestSnapshot", ctx, int64(1)).Return(nil, repository.ErrSnapshotNotFound).Once()
	mRepo.On("AppendSnapshot", ctx, mock.AnythingOfType("*models.Snapshot")).
		Return(&models.Snapshot{ID: 1, PageID: 1}, nil).Once()
	mRepo.On("RecordChanges", ctx, mock.AnythingOfType("[]models.ChangeEvent")).Return(0, nil).Once()

	result, err := newTestTracker(mRepo).RunCycle(ctx, pricingPage(), successfulFetch(pricingHTML))

	require.NoError(t, err)
	assert.Zero(t, result.ChangeCount)
	assert.Empty(t, result.Changes)
	mRepo.AssertExpectations(t)
}

func TestRunCycle_Idempotent(t *testing.T) {
	// Running the cycle twice with identical input appends a second
	// snapshot but produces zero additional change events.
	ctx := t.Context()

	var saved *models.Snapshot

	mRepo := new(mocks.SnapshotRepository)
	engine := newTestTracker(mRepo)

	mRepo.On("LatestSnapshot", ctx, int64(1)).Return(nil, repository.ErrSnapshotNotFound).Once()
	mRepo.On("AppendSnapshot", ctx, mock.AnythingOfType("*models.Snapshot")).
		Run(func(args mock.Arguments) {
			snap := args.Get(1).(*models.Snapshot)
			stored := *snap
			stored.ID = 1
			saved = &stored
		}).
		Return(&models.Snapshot{ID: 1, PageID: 1}, nil).Once()
	mRepo.On("RecordChanges", ctx, mock.AnythingOfType("[]models.ChangeEvent")).Return(0, nil).Twice()

	first, err := engine.RunCycle(ctx, pricingPage(), successfulFetch(pricingHTML))
	require.NoError(t, err)
	require.Zero(t, first.ChangeCount)
	require.NotNil(t, saved)

	mRepo.On("LatestSnapshot", ctx, int64(1)).Return(saved, nil).Once()
	mRepo.On("AppendSnapshot", ctx, mock.AnythingOfType("*models.Snapshot")).
		Return(&models.Snapshot{ID: 2, PageID: 1}, nil).Once()

	second, err := engine.RunCycle(ctx, pricingPage(), successfulFetch(pricingHTML))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.SnapshotID)
	assert.Zero(t, second.ChangeCount, "identical content must not produce new events")
	mRepo.AssertExpectations(t)
}

func TestRunCycle_FetchFailureIsNoOp(t *testing.T) {
	ctx := t.Context()

	mRepo := new(mocks.SnapshotRepository)

	result, err := newTestTracker(mRepo).RunCycle(ctx, pricingPage(), models.FetchResult{
		PageID:     1,
		Succeeded:  false,
		FetchError: "connection refused",
	})

	require.NoError(t, err)
	assert.Zero(t, result.SnapshotID)
	assert.Zero(t, result.ChangeCount)
	mRepo.AssertNotCalled(t, "AppendSnapshot", mock.Anything, mock.Anything)
	mRepo.AssertNotCalled(t, "RecordChanges", mock.Anything, mock.Anything)
}

func TestRunCycle_RepositoryFailurePropagates(t *testing.T) {
	ctx := t.Context()
	repoErr := errors.New("disk is full")

	testCases := []struct {
		name       string
		setupMocks func(mRepo *mocks.SnapshotRepository)
	}{
		{
			name: "latest snapshot fails",
			setupMocks: func(mRepo *mocks.SnapshotRepository) {
				mRepo.On("LatestSnapshot", ctx, int64(1)).Return(nil, repoErr).Once()
			},
		},
		{
			name: "append fails",
			setupMocks: func(mRepo *mocks.SnapshotRepository) {
				mRepo.On("LatestSnapshot", ctx, int64(1)).Return(nil, repository.ErrSnapshotNotFound).Once()
				mRepo.On("AppendSnapshot", ctx, mock.AnythingOfType("*models.Snapshot")).Return(nil, repoErr).Once()
			},
		},
		{
			name: "record changes fails",
			setupMocks: func(mRepo *mocks.SnapshotRepository) {
				mRepo.On("LatestSnapshot", ctx, int64(1)).Return(nil, repository.ErrSnapshotNotFound).Once()
				mRepo.On("AppendSnapshot", ctx, mock.AnythingOfType("*models.Snapshot")).
					Return(&models.Snapshot{ID: 1, PageID: 1}, nil).Once()
				mRepo.On("RecordChanges", ctx, mock.AnythingOfType("[]models.ChangeEvent")).Return(0, repoErr).Once()
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mRepo := new(mocks.SnapshotRepository)
			tc.setupMocks(mRepo)

			result, err := newTestTracker(mRepo).RunCycle(ctx, pricingPage(), successfulFetch(pricingHTML))

			require.ErrorIs(t, err, repoErr)
			assert.Nil(t, result)
		})
	}
}

func TestRunCycle_SelectorMissStillSnapshots(t *testing.T) {
	ctx := t.Context()
	page := pricingPage()
	page.Selector = "#no-such-region"

	mRepo := new(mocks.SnapshotRepository)
	mRepo.On("LatestSnapshot", ctx, int64(1)).Return(nil, repository.ErrSnapshotNotFound).Once()
	mRepo.On("AppendSnapshot", ctx, mock.MatchedBy(func(snap *models.Snapshot) bool {
		return snap.Meta.SelectorMiss && snap.Canonical != ""
	})).Return(&models.Snapshot{ID: 1, PageID: 1}, nil).Once()
	mRepo.On("RecordChanges", ctx, mock.AnythingOfType("[]models.ChangeEvent")).Return(0, nil).Once()

	result, err := newTestTracker(mRepo).RunCycle(ctx, page, successfulFetch(pricingHTML))

	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SnapshotID)
	mRepo.AssertExpectations(t)
}

func TestRunCycle_BudgetOverrunDegradesToGeneric(t *testing.T) {
	ctx := t.Context()

	// Enough plan cards that extraction cannot finish inside one nanosecond.
	bigHTML := "<html><body>" +
		strings.Repeat(`<div class="plan"><h3>Pro</h3><span class="price">$39</span><ul><li>SSO</li></ul></div>`, 2000) +
		"</body></html>"

	mRepo := new(mocks.SnapshotRepository)
	mRepo.On("LatestSnapshot", ctx, int64(1)).Return(nil, repository.ErrSnapshotNotFound).Once()
	mRepo.On("AppendSnapshot", ctx, mock.MatchedBy(func(snap *models.Snapshot) bool {
		return snap.Structured.Kind == models.PageTypeGeneric && snap.Structured.Text != ""
	})).Return(&models.Snapshot{ID: 1, PageID: 1}, nil).Once()
	mRepo.On("RecordChanges", ctx, mock.AnythingOfType("[]models.ChangeEvent")).Return(0, nil).Once()

	engine := newBudgetTracker(mRepo, time.Nanosecond)

	result, err := engine.RunCycle(ctx, pricingPage(), successfulFetch(bigHTML))

	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SnapshotID)
	assert.Zero(t, result.ChangeCount)
	mRepo.AssertExpectations(t)
}

func TestRunCycle_SamePageCyclesSerialize(t *testing.T) {
	ctx := t.Context()

	var (
		inFlight atomic.Int32
		overlap  atomic.Bool
	)

	mRepo := new(mocks.SnapshotRepository)
	mRepo.On("LatestSnapshot", ctx, int64(1)).Return(nil, repository.ErrSnapshotNotFound).Twice()
	mRepo.On("AppendSnapshot", ctx, mock.AnythingOfType("*models.Snapshot")).
		Run(func(mock.Arguments) {
			if inFlight.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(30 * time.Millisecond)
			inFlight.Add(-1)
		}).
		Return(&models.Snapshot{ID: 1, PageID: 1}, nil).Twice()
	mRepo.On("RecordChanges", ctx, mock.AnythingOfType("[]models.ChangeEvent")).Return(0, nil).Twice()

	engine := newTestTracker(mRepo)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.RunCycle(ctx, pricingPage(), successfulFetch(pricingHTML))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.False(t, overlap.Load(), "cycles for the same page must not run concurrently")
	mRepo.AssertExpectations(t)
}

func TestRunAll_CountsChangesAcrossPages(t *testing.T) {
	ctx := t.Context()

	pages := []models.TrackedPage{
		{ID: 1, Competitor: "Acme", URL: "https://acme.test/pricing", Type: models.PageTypePricing},
		{ID: 2, Competitor: "Globex", URL: "https://globex.test/pricing", Type: models.PageTypePricing},
	}

	mRepo := new(mocks.SnapshotRepository)
	mRepo.On("LatestSnapshot", mock.Anything, mock.AnythingOfType("int64")).
		Return(nil, repository.ErrSnapshotNotFound).Twice()
	mRepo.On("AppendSnapshot", mock.Anything, mock.AnythingOfType("*models.Snapshot")).
		Return(&models.Snapshot{ID: 1}, nil).Twice()
	mRepo.On("RecordChanges", mock.Anything, mock.AnythingOfType("[]models.ChangeEvent")).Return(0, nil).Twice()

	total := newTestTracker(mRepo).RunAll(ctx, &stubFetcher{result: successfulFetch(pricingHTML)}, pages)

	assert.Zero(t, total)
	mRepo.AssertExpectations(t)
}
