package extract_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Houeta/rival-radar/internal/extract"
	"github.com/Houeta/rival-radar/internal/models"
	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExtractor(t *testing.T) *extract.Extractor {
	t.Helper()
	return extract.New(slog.New(slog.NewTextHandler(io.Discard, nil)), extract.Options{})
}

func scopeFor(t *testing.T, html string) *goquery.Selection {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	return doc.Selection
}

func TestExtract_DispatchesByPageType(t *testing.T) {
	e := newExtractor(t)
	ctx := t.Context()

	t.Run("pricing", func(t *testing.T) {
		scope := scopeFor(t, `<div class="plan"><h3>Pro</h3><span class="price">$29</span></div>
			<div class="plan"><h3>Basic</h3><span class="price">$9</span></div>`)

		shape := e.Extract(ctx, scope, models.PageTypePricing, "")

		assert.Equal(t, models.PageTypePricing, shape.Kind)
		assert.Len(t, shape.Plans, 2)
	})

	t.Run("features", func(t *testing.T) {
		scope := scopeFor(t, `<ul><li>SSO</li><li>Audit logs</li></ul>`)

		shape := e.Extract(ctx, scope, models.PageTypeFeatures, "")

		assert.Equal(t, models.PageTypeFeatures, shape.Kind)
		assert.Equal(t, []string{"SSO", "Audit logs"}, shape.Features)
	})

	t.Run("article", func(t *testing.T) {
		scope := scopeFor(t, `<article><h2><a href="/blog/hello-world">Hello world launch post</a></h2></article>`)

		shape := e.Extract(ctx, scope, models.PageTypeArticle, "")

		assert.Equal(t, models.PageTypeArticle, shape.Kind)
		require.Len(t, shape.Articles, 1)
		assert.Equal(t, "blog/hello-world", shape.Articles[0].ID)
	})

	t.Run("generic", func(t *testing.T) {
		scope := scopeFor(t, `<p>Some page body</p>`)

		shape := e.Extract(ctx, scope, models.PageTypeGeneric, "Some page body")

		assert.Equal(t, models.PageTypeGeneric, shape.Kind)
		assert.Equal(t, "Some page body", shape.Text)
	})
}

func TestExtract_NilScopeFallsBackToGeneric(t *testing.T) {
	shape := newExtractor(t).Extract(t.Context(), nil, models.PageTypePricing, "raw text")

	assert.Equal(t, models.PageTypeGeneric, shape.Kind)
	assert.Equal(t, "raw text", shape.Text)
	assert.Empty(t, shape.Plans)
}
