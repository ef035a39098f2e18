package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTag classifies a plan price beyond its numeric amount. A free tier is
// amount zero with TagFree, which is not the same thing as an unparsed price.
type PriceTag string

const (
	TagNormal  PriceTag = "normal"
	TagFree    PriceTag = "free"
	TagCustom  PriceTag = "custom"
	TagUnknown PriceTag = "unknown"
)

// BillingPeriod is the billing cadence detected for a plan.
type BillingPeriod string

const (
	BillingMonthly     BillingPeriod = "monthly"
	BillingAnnual      BillingPeriod = "annual"
	BillingUnspecified BillingPeriod = "unspecified"
)

// PricingPlan is one plan extracted from a pricing page.
type PricingPlan struct {
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Tag      PriceTag        `json:"tag"`
	Billing  BillingPeriod   `json:"billing"`
	Features []string        `json:"features,omitempty"`
}

// Article is one entry on an article/blog listing page.
type Article struct {
	Title string `json:"title"`
	// ID is a canonical identifier (URL path or slug) when the source page
	// exposes one; falls back to the title for matching otherwise.
	ID string `json:"id,omitempty"`
}

// Key returns the identifier used to match articles across snapshots.
func (a Article) Key() string {
	if a.ID != "" {
		return a.ID
	}
	return a.Title
}

// Structured is the closed variant of category-specific parse results.
// Exactly the fields matching Kind are populated; everything else is zero.
type Structured struct {
	Kind     PageType      `json:"kind"`
	Plans    []PricingPlan `json:"plans,omitempty"`
	Features []string      `json:"features,omitempty"`
	Articles []Article     `json:"articles,omitempty"`
	Text     string        `json:"text,omitempty"`
}

// SnapshotMeta carries opaque per-capture details downstream consumers may
// care about but the differ does not.
type SnapshotMeta struct {
	Truncated    bool `json:"truncated,omitempty"`
	ElementCount int  `json:"element_count,omitempty"`
	SelectorMiss bool `json:"selector_miss,omitempty"`
}

// Snapshot is one immutable captured-and-extracted state of a tracked page.
// Snapshots are append-only; the latest one per page is the diff baseline.
type Snapshot struct {
	ID         int64
	PageID     int64
	Hash       string
	Canonical  string
	Structured Structured
	Meta       SnapshotMeta
	CapturedAt time.Time
}
