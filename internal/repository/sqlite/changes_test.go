package sqlite_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Houeta/rival-radar/internal/models"
	"github.com/Houeta/rival-radar/internal/repository/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Integration_ChangeLifecycle(t *testing.T) {
	repo := newTestDB(t)
	ctx := t.Context()
	page := addTestPage(t, repo, ctx)

	snap, err := repo.AppendSnapshot(ctx, &models.Snapshot{
		PageID:     page.ID,
		Hash:       "hash-one",
		Canonical:  "content",
		Structured: models.Structured{Kind: models.PageTypePricing},
		CapturedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	events := []models.ChangeEvent{
		{
			PageID:         page.ID,
			Kind:           models.KindPlanRemoved,
			Description:    `Plan "Legacy" was removed`,
			PrevSnapshotID: snap.ID,
			NewSnapshotID:  snap.ID,
			DetectedAt:     now.Add(-time.Minute),
		},
		{
			PageID:         page.ID,
			Kind:           models.KindPriceChanged,
			Description:    "Pro price changed from 29 to 39",
			PrevSnapshotID: snap.ID,
			NewSnapshotID:  snap.ID,
			DetectedAt:     now,
		},
	}

	t.Run("record_empty_is_noop", func(t *testing.T) {
		count, recErr := repo.RecordChanges(ctx, nil)
		require.NoError(t, recErr)
		assert.Zero(t, count)
	})

	t.Run("record_changes", func(t *testing.T) {
		count, recErr := repo.RecordChanges(ctx, events)
		require.NoError(t, recErr)
		assert.Equal(t, 2, count)
	})

	var pending []models.ChangeEvent

	t.Run("undelivered_oldest_first", func(t *testing.T) {
		pending, err = repo.UndeliveredChanges(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, models.KindPlanRemoved, pending[0].Kind)
		assert.Equal(t, models.KindPriceChanged, pending[1].Kind)
		assert.False(t, pending[0].Delivered)
	})

	t.Run("mark_delivered", func(t *testing.T) {
		require.NoError(t, repo.MarkDelivered(ctx, []int64{pending[0].ID, pending[1].ID}))

		remaining, undErr := repo.UndeliveredChanges(ctx)
		require.NoError(t, undErr)
		assert.Empty(t, remaining)
	})

	t.Run("mark_delivered_empty_is_noop", func(t *testing.T) {
		require.NoError(t, repo.MarkDelivered(ctx, nil))
	})

	t.Run("recent_changes_newest_first", func(t *testing.T) {
		recent, recErr := repo.RecentChanges(ctx, 7, 50)
		require.NoError(t, recErr)
		require.Len(t, recent, 2)
		assert.Equal(t, models.KindPriceChanged, recent[0].Kind)
		assert.True(t, recent[0].Delivered)
	})

	t.Run("recent_changes_clamps_inputs", func(t *testing.T) {
		recent, recErr := repo.RecentChanges(ctx, -5, 0)
		require.NoError(t, recErr)
		assert.Len(t, recent, 2, "events detected within the last minute fall inside a one-day window")
	})
}

func TestRecordChanges_BeginError(t *testing.T) {
	dtb, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer dtb.Close()

	dbMock.ExpectBegin().WillReturnError(assert.AnError)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := sqlite.NewWithDB(dtb, logger)

	_, err = repo.RecordChanges(t.Context(), []models.ChangeEvent{{Kind: models.KindContentChanged}})
	require.ErrorIs(t, err, assert.AnError)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestRecordChanges_InsertRollsBack(t *testing.T) {
	dtb, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer dtb.Close()

	dbMock.ExpectBegin()
	dbMock.ExpectPrepare("INSERT INTO changes").
		ExpectExec().
		WillReturnError(assert.AnError)
	dbMock.ExpectRollback()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := sqlite.NewWithDB(dtb, logger)

	count, err := repo.RecordChanges(t.Context(), []models.ChangeEvent{
		{Kind: models.KindContentChanged, Description: "Content changed", DetectedAt: time.Now()},
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, count)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestUndeliveredChanges_QueryError(t *testing.T) {
	dtb, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer dtb.Close()

	dbMock.ExpectQuery("SELECT id, page_id, kind").WillReturnError(assert.AnError)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := sqlite.NewWithDB(dtb, logger)

	_, err = repo.UndeliveredChanges(t.Context())
	require.ErrorIs(t, err, assert.AnError)
	require.NoError(t, dbMock.ExpectationsWereMet())
}
