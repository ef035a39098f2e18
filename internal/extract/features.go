package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ExtractFeatures collects feature strings from list items and heading-like
// short text inside the fragment. Items shorter than minLen runes and
// stoplisted boilerplate phrases are dropped; duplicates collapse
// case-insensitively, keeping the first occurrence's casing.
func ExtractFeatures(scope *goquery.Selection, minLen int, stoplist []string) []string {
	var raw []string

	scope.Find("ul li, ol li").Each(func(_ int, li *goquery.Selection) {
		raw = append(raw, normalizeLine(li.Text()))
	})

	// Feature grids often use headings instead of list items.
	scope.Find("h2, h3, h4, strong, b").Each(func(_ int, h *goquery.Selection) {
		text := normalizeLine(h.Text())
		if len(text) < 100 {
			raw = append(raw, text)
		}
	})

	stop := make(map[string]struct{}, len(stoplist))
	for _, s := range stoplist {
		stop[strings.ToLower(s)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(raw))
	var features []string
	for _, f := range raw {
		if utf8.RuneCountInString(f) < minLen {
			continue
		}
		lower := strings.ToLower(f)
		if _, ok := stop[lower]; ok {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		features = append(features, f)
	}

	return features
}
