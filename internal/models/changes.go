package models

import "time"

// ChangeKind is the taxonomy of detected differences.
type ChangeKind string

const (
	KindPriceChanged   ChangeKind = "price_changed"
	KindPlanAdded      ChangeKind = "plan_added"
	KindPlanRemoved    ChangeKind = "plan_removed"
	KindFeatureAdded   ChangeKind = "feature_added"
	KindFeatureRemoved ChangeKind = "feature_removed"
	KindArticleAdded   ChangeKind = "article_added"
	KindArticleRemoved ChangeKind = "article_removed"
	KindContentChanged ChangeKind = "content_changed"
)

// ChangeEvent is one detected, described difference between two consecutive
// snapshots of the same tracked page. Delivered starts false and is flipped
// only by the dispatcher after a successful send.
type ChangeEvent struct {
	ID             int64
	PageID         int64
	Kind           ChangeKind
	Description    string
	PrevSnapshotID int64
	NewSnapshotID  int64
	DetectedAt     time.Time
	Delivered      bool
}

// FetchResult is the already-retrieved page handed to the engine by the
// fetch collaborator. On Succeeded == false the engine performs no work.
type FetchResult struct {
	PageID      int64
	Content     []byte
	ContentType string
	FetchedAt   time.Time
	Succeeded   bool
	FetchError  string
}

// CycleResult is what one page cycle hands back to the caller.
type CycleResult struct {
	PageID      int64
	SnapshotID  int64
	ChangeCount int
	Changes     []ChangeEvent
}
