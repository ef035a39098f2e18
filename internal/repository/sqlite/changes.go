package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/Houeta/rival-radar/internal/models"
)

// Caps for RecentChanges input validation.
const (
	maxRecentDays  = 365
	maxRecentLimit = 1000
)

// RecordChanges persists change events inside one transaction, tagged
// undelivered, and returns the count written. An empty slice is a no-op.
func (r *Repository) RecordChanges(ctx context.Context, events []models.ChangeEvent) (int, error) {
	const opn = "repository.sqlite.RecordChanges"

	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil) //nolint:varnamelen // tx its a default naming for transaction
	if err != nil {
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", opn, err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after a successful commit only returns sql.ErrTxDone.

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO changes (page_id, kind, description, prev_snapshot_id, new_snapshot_id, detected_at, delivered)
		VALUES (?, ?, ?, ?, ?, ?, 0)`)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to prepare insert statement: %w", opn, err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err = stmt.ExecContext(ctx, ev.PageID, string(ev.Kind), ev.Description,
			ev.PrevSnapshotID, ev.NewSnapshotID, ev.DetectedAt)
		if err != nil {
			return 0, fmt.Errorf("%s: failed to insert change %q: %w", opn, ev.Kind, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", opn, err)
	}

	r.log.InfoContext(ctx, "Changes recorded", "count", len(events))

	return len(events), nil
}

// UndeliveredChanges returns events whose delivered flag is still unset,
// oldest first so the dispatcher sends them in detection order.
func (r *Repository) UndeliveredChanges(ctx context.Context) ([]models.ChangeEvent, error) {
	const opn = "repository.sqlite.UndeliveredChanges"

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, page_id, kind, description, prev_snapshot_id, new_snapshot_id, detected_at, delivered
		FROM changes
		WHERE delivered = 0
		ORDER BY detected_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query changes: %w", opn, err)
	}
	defer rows.Close()

	return scanChanges(rows, opn)
}

// MarkDelivered flips the delivered flag for the given event ids.
func (r *Repository) MarkDelivered(ctx context.Context, ids []int64) error {
	const opn = "repository.sqlite.MarkDelivered"

	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf("UPDATE changes SET delivered = 1 WHERE id IN (%s)", placeholders)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to mark changes delivered: %w", opn, err)
	}

	return nil
}

// RecentChanges returns events detected within the last days, newest first.
// Inputs are clamped to sane bounds.
func (r *Repository) RecentChanges(ctx context.Context, days, limit int) ([]models.ChangeEvent, error) {
	const opn = "repository.sqlite.RecentChanges"

	if days < 1 {
		days = 1
	}
	if days > maxRecentDays {
		days = maxRecentDays
	}
	if limit < 1 {
		limit = 50
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, page_id, kind, description, prev_snapshot_id, new_snapshot_id, detected_at, delivered
		FROM changes
		WHERE detected_at >= datetime('now', '-' || ? || ' days')
		ORDER BY detected_at DESC, id DESC
		LIMIT ?`, days, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query changes: %w", opn, err)
	}
	defer rows.Close()

	return scanChanges(rows, opn)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanChanges(rows rowScanner, opn string) ([]models.ChangeEvent, error) {
	var events []models.ChangeEvent
	for rows.Next() {
		var (
			ev   models.ChangeEvent
			kind string
		)
		err := rows.Scan(&ev.ID, &ev.PageID, &kind, &ev.Description,
			&ev.PrevSnapshotID, &ev.NewSnapshotID, &ev.DetectedAt, &ev.Delivered)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan change: %w", opn, err)
		}
		ev.Kind = models.ChangeKind(kind)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration error: %w", opn, err)
	}

	return events, nil
}
