package normalize

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelector lists elements that never carry comparable content.
// Stripping them keeps tracking pixels and chrome out of the canonical text.
const noiseSelector = "script, style, noscript, svg, iframe, form, nav, header, footer, aside"

var (
	// trackingRe matches tracking query fragments that churn between
	// fetches without any content change.
	trackingRe = regexp.MustCompile(`(?i)[?&](?:utm_[a-z]+|gclid|fbclid|ref)=[^\s&"']*`)
	// timestampRe matches inline ISO-style timestamps, another common
	// source of false hash misses.
	timestampRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(?::\d{2})?(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?\b`)
)

// Result is the canonical view of one fetched document.
type Result struct {
	// Canonical is the whitespace-collapsed, noise-stripped text used for
	// hashing and generic comparison.
	Canonical string
	// Hash is the SHA256 hex digest of Canonical. It is an equality oracle
	// only, never an identity key.
	Hash string
	// Scope is the cleaned document fragment structured extraction should
	// run against. Whole document when no selector matched.
	Scope *goquery.Selection
	// Truncated is set when Canonical was cut at the configured maximum.
	Truncated bool
	// SelectorMiss is set when a selector was supplied but matched nothing.
	SelectorMiss bool
	// ElementCount is the number of elements inside Scope.
	ElementCount int
}

// Normalizer turns raw fetched markup into deterministic canonical text.
type Normalizer struct {
	log      *slog.Logger
	maxBytes int
}

// New creates a Normalizer. maxBytes bounds the canonical text size;
// zero or negative disables truncation.
func New(log *slog.Logger, maxBytes int) *Normalizer {
	return &Normalizer{log: log, maxBytes: maxBytes}
}

// Canonicalize parses content, scopes it by selector and produces canonical
// text plus its hash. A selector that matches nothing falls back to the
// whole document; malformed markup degrades to text handling. Identical
// input bytes and selector always produce byte-identical output.
func (n *Normalizer) Canonicalize(ctx context.Context, content []byte, selector string) (*Result, error) {
	const opn = "normalize.Canonicalize"

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: data cannot be parsed as HTML: %w", opn, err)
	}

	doc.Find(noiseSelector).Remove()

	res := &Result{Scope: doc.Selection}
	if selector != "" {
		scoped := doc.Find(selector)
		if scoped.Length() > 0 {
			res.Scope = scoped
		} else {
			res.SelectorMiss = true
			n.log.WarnContext(ctx, "scope selector matched nothing, using whole document", "selector", selector)
		}
	}
	res.ElementCount = res.Scope.Find("*").Length()

	canonical := CollapseText(StripVolatile(res.Scope.Text()))
	if n.maxBytes > 0 && len(canonical) > n.maxBytes {
		canonical = truncateAtRune(canonical, n.maxBytes)
		res.Truncated = true
		n.log.WarnContext(ctx, "canonical text truncated", "limit", n.maxBytes)
	}

	res.Canonical = canonical
	res.Hash = HashText(canonical)

	return res, nil
}

// CollapseText collapses all whitespace runs to single spaces and trims the
// result.
func CollapseText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// StripVolatile removes tokens that change between fetches without carrying
// content: tracking query fragments and inline timestamps.
func StripVolatile(text string) string {
	text = trackingRe.ReplaceAllString(text, "")
	return timestampRe.ReplaceAllString(text, "")
}

// HashText returns the SHA256 hex digest of text.
func HashText(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}

// truncateAtRune cuts s to at most max bytes without splitting a rune.
func truncateAtRune(s string, max int) string {
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
