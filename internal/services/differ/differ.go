// Package differ compares two consecutive snapshots of a tracked page and
// produces typed change events with plain-language descriptions.
package differ

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Houeta/rival-radar/internal/models"
)

const defaultFloodLimit = 5

// Differ turns snapshot pairs into ordered change events.
type Differ struct {
	log *slog.Logger
	// floodLimit caps per-item feature events; beyond it one aggregated
	// event is emitted instead.
	floodLimit int
}

// New creates a Differ. floodLimit <= 0 selects the default.
func New(log *slog.Logger, floodLimit int) *Differ {
	if floodLimit <= 0 {
		floodLimit = defaultFloodLimit
	}
	return &Differ{log: log, floodLimit: floodLimit}
}

// Diff compares prev against cur and returns zero or more change events.
// A nil prev is the baseline cycle and yields nothing; equal hashes
// short-circuit to nothing regardless of structured content. A category
// mismatch between the two snapshots degrades to the generic text
// comparison instead of failing.
func (d *Differ) Diff(prev, cur *models.Snapshot) []models.ChangeEvent {
	if prev == nil {
		return nil
	}
	if prev.Hash == cur.Hash {
		return nil
	}

	if prev.Structured.Kind != cur.Structured.Kind {
		d.log.Warn("snapshot category mismatch, falling back to text comparison",
			"page_id", cur.PageID, "previous", prev.Structured.Kind, "current", cur.Structured.Kind)
		return d.diffGeneric(prev, cur)
	}

	switch cur.Structured.Kind {
	case models.PageTypePricing:
		return d.diffPlans(prev, cur)
	case models.PageTypeFeatures:
		return d.diffFeatures(prev, cur)
	case models.PageTypeArticle:
		return d.diffArticles(prev, cur)
	default:
		return d.diffGeneric(prev, cur)
	}
}

// diffPlans matches plans by normalized name and emits removals, then
// additions, then price changes, each sorted by plan name.
func (d *Differ) diffPlans(prev, cur *models.Snapshot) []models.ChangeEvent {
	prevByName := plansByName(prev.Structured.Plans)
	curByName := plansByName(cur.Structured.Plans)

	var removed, added, changed []models.ChangeEvent

	for key, old := range prevByName {
		if _, ok := curByName[key]; !ok {
			removed = append(removed, event(cur, prev, models.KindPlanRemoved,
				fmt.Sprintf("Plan %q was removed", old.Name)))
		}
	}

	for key, now := range curByName {
		old, ok := prevByName[key]
		if !ok {
			added = append(added, event(cur, prev, models.KindPlanAdded,
				fmt.Sprintf("New plan %q was added at %s", now.Name, renderPrice(now))))
			continue
		}
		if old.Amount.Equal(now.Amount) && old.Tag == now.Tag {
			continue
		}
		changed = append(changed, event(cur, prev, models.KindPriceChanged, describePriceChange(old, now)))
	}

	sortByDescription(removed)
	sortByDescription(added)
	sortByDescription(changed)

	events := append(removed, added...)
	return append(events, changed...)
}

// describePriceChange renders one matched-plan price transition. Moves to
// and from the free tier get their own phrasing.
func describePriceChange(old, now models.PricingPlan) string {
	switch {
	case now.Tag == models.TagFree && old.Tag != models.TagFree:
		return fmt.Sprintf("%s became free", now.Name)
	case old.Tag == models.TagFree && now.Tag != models.TagFree:
		return fmt.Sprintf("%s is no longer free", now.Name)
	default:
		return fmt.Sprintf("%s price changed from %s to %s", now.Name, renderPrice(old), renderPrice(now))
	}
}

// renderPrice renders a plan price for display.
func renderPrice(p models.PricingPlan) string {
	switch p.Tag {
	case models.TagFree:
		return "free"
	case models.TagCustom:
		return "custom pricing"
	case models.TagUnknown:
		return "an unlisted price"
	default:
		return p.Amount.String()
	}
}

// diffFeatures computes the symmetric difference of the two feature sets,
// emitting removals before additions. More than floodLimit items in one
// direction collapse into a single aggregated event.
func (d *Differ) diffFeatures(prev, cur *models.Snapshot) []models.ChangeEvent {
	prevSet := lowerSet(prev.Structured.Features)
	curSet := lowerSet(cur.Structured.Features)

	var removedItems, addedItems []string
	for _, f := range prev.Structured.Features {
		if _, ok := curSet[strings.ToLower(f)]; !ok {
			removedItems = append(removedItems, f)
		}
	}
	for _, f := range cur.Structured.Features {
		if _, ok := prevSet[strings.ToLower(f)]; !ok {
			addedItems = append(addedItems, f)
		}
	}
	sort.Strings(removedItems)
	sort.Strings(addedItems)

	events := d.featureEvents(cur, prev, models.KindFeatureRemoved, removedItems,
		"Feature %q was removed", "%d features were removed: %s and %d more")
	return append(events, d.featureEvents(cur, prev, models.KindFeatureAdded, addedItems,
		"New feature %q was added", "%d features were added: %s and %d more")...)
}

func (d *Differ) featureEvents(
	cur, prev *models.Snapshot,
	kind models.ChangeKind,
	items []string,
	itemFormat, aggregateFormat string,
) []models.ChangeEvent {
	if len(items) == 0 {
		return nil
	}
	if len(items) > d.floodLimit {
		quoted := make([]string, d.floodLimit)
		for i, item := range items[:d.floodLimit] {
			quoted[i] = fmt.Sprintf("%q", item)
		}
		desc := fmt.Sprintf(aggregateFormat, len(items), strings.Join(quoted, ", "), len(items)-d.floodLimit)
		return []models.ChangeEvent{event(cur, prev, kind, desc)}
	}

	events := make([]models.ChangeEvent, 0, len(items))
	for _, item := range items {
		events = append(events, event(cur, prev, kind, fmt.Sprintf(itemFormat, item)))
	}
	return events
}

// diffArticles compares article identifiers between the newest-first lists.
// New entries are emitted oldest first so a reader sees them in publish
// order; removals follow as lower-priority events.
func (d *Differ) diffArticles(prev, cur *models.Snapshot) []models.ChangeEvent {
	prevKeys := articleKeySet(prev.Structured.Articles)
	curKeys := articleKeySet(cur.Structured.Articles)

	var events []models.ChangeEvent

	curArticles := cur.Structured.Articles
	for i := len(curArticles) - 1; i >= 0; i-- {
		a := curArticles[i]
		if _, ok := prevKeys[strings.ToLower(a.Key())]; !ok {
			events = append(events, event(cur, prev, models.KindArticleAdded,
				fmt.Sprintf("New article %q was published", a.Title)))
		}
	}

	for _, a := range prev.Structured.Articles {
		if _, ok := curKeys[strings.ToLower(a.Key())]; !ok {
			events = append(events, event(cur, prev, models.KindArticleRemoved,
				fmt.Sprintf("Article %q was removed", a.Title)))
		}
	}

	return events
}

// diffGeneric emits a single event summarizing the canonical-text size
// delta. The hash check already established the texts differ.
func (d *Differ) diffGeneric(prev, cur *models.Snapshot) []models.ChangeEvent {
	delta := utf8.RuneCountInString(cur.Canonical) - utf8.RuneCountInString(prev.Canonical)

	desc := "Content changed"
	switch {
	case delta > 0:
		desc = fmt.Sprintf("Content changed, +%d characters", delta)
	case delta < 0:
		desc = fmt.Sprintf("Content changed, %d characters", delta)
	}

	return []models.ChangeEvent{event(cur, prev, models.KindContentChanged, desc)}
}

func event(cur, prev *models.Snapshot, kind models.ChangeKind, desc string) models.ChangeEvent {
	return models.ChangeEvent{
		PageID:         cur.PageID,
		Kind:           kind,
		Description:    desc,
		PrevSnapshotID: prev.ID,
		NewSnapshotID:  cur.ID,
	}
}

func plansByName(plans []models.PricingPlan) map[string]models.PricingPlan {
	m := make(map[string]models.PricingPlan, len(plans))
	for _, p := range plans {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" {
			continue
		}
		if _, ok := m[key]; !ok {
			m[key] = p
		}
	}
	return m
}

func lowerSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		m[strings.ToLower(s)] = struct{}{}
	}
	return m
}

func articleKeySet(articles []models.Article) map[string]struct{} {
	m := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		m[strings.ToLower(a.Key())] = struct{}{}
	}
	return m
}

func sortByDescription(events []models.ChangeEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Description < events[j].Description
	})
}
