package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Houeta/rival-radar/internal/models"
	"github.com/Houeta/rival-radar/internal/repository"
)

// LatestSnapshot returns the most recent snapshot for a page, or
// repository.ErrSnapshotNotFound when the page has never been captured.
func (r *Repository) LatestSnapshot(ctx context.Context, pageID int64) (*models.Snapshot, error) {
	const opn = "repository.sqlite.LatestSnapshot"

	row := r.db.QueryRowContext(ctx, `
		SELECT id, page_id, content_hash, canonical, structured, metadata, captured_at
		FROM snapshots
		WHERE page_id = ?
		ORDER BY captured_at DESC, id DESC
		LIMIT 1`, pageID)

	var (
		snap     models.Snapshot
		rawShape []byte
		rawMeta  sql.NullString
	)
	err := row.Scan(&snap.ID, &snap.PageID, &snap.Hash, &snap.Canonical, &rawShape, &rawMeta, &snap.CapturedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("%s: failed to get latest snapshot: %w", opn, err)
	}

	if err = json.Unmarshal(rawShape, &snap.Structured); err != nil {
		return nil, fmt.Errorf("%s: failed to decode structured content: %w", opn, err)
	}
	if rawMeta.Valid && rawMeta.String != "" {
		if err = json.Unmarshal([]byte(rawMeta.String), &snap.Meta); err != nil {
			return nil, fmt.Errorf("%s: failed to decode snapshot metadata: %w", opn, err)
		}
	}

	return &snap, nil
}

// AppendSnapshot inserts a new snapshot row and returns the snapshot with
// its assigned identity. Existing rows are never touched.
func (r *Repository) AppendSnapshot(ctx context.Context, snap *models.Snapshot) (*models.Snapshot, error) {
	const opn = "repository.sqlite.AppendSnapshot"

	rawShape, err := json.Marshal(snap.Structured)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode structured content: %w", opn, err)
	}
	rawMeta, err := json.Marshal(snap.Meta)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode snapshot metadata: %w", opn, err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots (page_id, content_hash, canonical, structured, metadata, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.PageID, snap.Hash, snap.Canonical, string(rawShape), string(rawMeta), snap.CapturedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to insert snapshot: %w", opn, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get snapshot id: %w", opn, err)
	}

	stored := *snap
	stored.ID = id
	r.log.DebugContext(ctx, "Snapshot appended", "page_id", snap.PageID, "snapshot_id", id)

	return &stored, nil
}
