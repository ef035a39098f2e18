// Package extract turns a scoped document fragment into the typed structured
// shape declared by the page type. Extraction is best-effort: markup that
// does not match the expected structure degrades to the generic text shape
// instead of failing the cycle.
package extract

import (
	"context"
	"log/slog"

	"github.com/Houeta/rival-radar/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// Options tunes the extraction heuristics.
type Options struct {
	// MinFeatureLen drops feature strings shorter than this many runes.
	MinFeatureLen int
	// Stoplist holds boilerplate phrases (navigation labels and the like)
	// excluded from feature sets, compared case-insensitively.
	Stoplist []string
	// MaxArticles caps how many article entries one snapshot keeps.
	MaxArticles int
}

const (
	defaultMinFeatureLen = 3
	defaultMaxArticles   = 20
)

var defaultStoplist = []string{
	"home", "about", "contact", "login", "log in", "sign up", "sign in",
	"pricing", "learn more", "get started", "read more", "see all",
}

// Extractor produces typed structured shapes from scoped fragments.
type Extractor struct {
	log  *slog.Logger
	opts Options
}

// New creates an Extractor, filling unset options with defaults.
func New(log *slog.Logger, opts Options) *Extractor {
	if opts.MinFeatureLen <= 0 {
		opts.MinFeatureLen = defaultMinFeatureLen
	}
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = defaultMaxArticles
	}
	if opts.Stoplist == nil {
		opts.Stoplist = defaultStoplist
	}
	return &Extractor{log: log, opts: opts}
}

// Extract dispatches on pageType and returns the structured shape for the
// fragment. canonical is the already-normalized text used for the generic
// shape. Extract never fails: any partial result, including an empty list,
// is valid output.
func (e *Extractor) Extract(
	ctx context.Context,
	scope *goquery.Selection,
	pageType models.PageType,
	canonical string,
) models.Structured {
	if scope == nil {
		return models.Structured{Kind: models.PageTypeGeneric, Text: canonical}
	}

	switch pageType {
	case models.PageTypePricing:
		plans := ExtractPricing(scope)
		e.log.DebugContext(ctx, "extracted pricing plans", "count", len(plans))
		return models.Structured{Kind: models.PageTypePricing, Plans: plans}
	case models.PageTypeFeatures:
		features := ExtractFeatures(scope, e.opts.MinFeatureLen, e.opts.Stoplist)
		e.log.DebugContext(ctx, "extracted features", "count", len(features))
		return models.Structured{Kind: models.PageTypeFeatures, Features: features}
	case models.PageTypeArticle:
		articles := ExtractArticles(scope, e.opts.MaxArticles)
		e.log.DebugContext(ctx, "extracted articles", "count", len(articles))
		return models.Structured{Kind: models.PageTypeArticle, Articles: articles}
	default:
		return models.Structured{Kind: models.PageTypeGeneric, Text: canonical}
	}
}
