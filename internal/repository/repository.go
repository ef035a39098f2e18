// Package repository defines the narrow storage contract the engine depends
// on, plus its sentinel errors. The sqlite subpackage implements it.
package repository

import (
	"context"
	"errors"

	"github.com/Houeta/rival-radar/internal/models"
)

var (
	// ErrSnapshotNotFound is returned when a page has no snapshot yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrPageNotFound is returned when a tracked page does not exist.
	ErrPageNotFound = errors.New("tracked page not found")
)

// SnapshotRepository is the only storage surface the core cycle uses.
// Every call is atomic: a crash mid-write never leaves a change event
// referencing a snapshot that was not committed.
type SnapshotRepository interface {
	// LatestSnapshot returns the most recent snapshot for a page or
	// ErrSnapshotNotFound.
	LatestSnapshot(ctx context.Context, pageID int64) (*models.Snapshot, error)
	// AppendSnapshot persists a new snapshot and returns it with its
	// assigned identity. Snapshots are never mutated afterwards.
	AppendSnapshot(ctx context.Context, snap *models.Snapshot) (*models.Snapshot, error)
	// RecordChanges persists change events tagged undelivered and returns
	// the count written.
	RecordChanges(ctx context.Context, events []models.ChangeEvent) (int, error)
}

// PageRepository manages the set of tracked pages.
type PageRepository interface {
	AddPage(ctx context.Context, page models.TrackedPage) (models.TrackedPage, error)
	ListPages(ctx context.Context) ([]models.TrackedPage, error)
	DeletePage(ctx context.Context, id int64) error
}

// ChangeRepository is the dispatcher-facing view of recorded changes.
type ChangeRepository interface {
	// UndeliveredChanges returns events whose delivered flag is unset,
	// oldest first.
	UndeliveredChanges(ctx context.Context) ([]models.ChangeEvent, error)
	// MarkDelivered flips the delivered flag for the given event ids.
	MarkDelivered(ctx context.Context, ids []int64) error
	// RecentChanges returns events detected within the last days, newest
	// first, capped at limit.
	RecentChanges(ctx context.Context, days, limit int) ([]models.ChangeEvent, error)
}

// SubscriptionRepository manages chats subscribed to change alerts.
type SubscriptionRepository interface {
	SubscribeChat(ctx context.Context, chatID int64) error
	UnsubscribeChat(ctx context.Context, chatID int64) error
	GetSubscribedChats(ctx context.Context) ([]int64, error)
}
