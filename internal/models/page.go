package models

// PageType declares what kind of content a tracked page is expected to hold.
// It drives structured extraction and diff dispatch.
type PageType string

const (
	PageTypePricing  PageType = "pricing"
	PageTypeFeatures PageType = "features"
	PageTypeArticle  PageType = "article"
	PageTypeGeneric  PageType = "generic"
)

// Valid reports whether t is one of the known page types.
func (t PageType) Valid() bool {
	switch t {
	case PageTypePricing, PageTypeFeatures, PageTypeArticle, PageTypeGeneric:
		return true
	}
	return false
}

// TrackedPage is one (competitor, URL, type) unit under observation.
// It is owned by the administrative layer and immutable during a cycle.
type TrackedPage struct {
	ID         int64
	Competitor string
	URL        string
	Type       PageType
	// Selector optionally scopes extraction to one element of the document.
	// An empty selector means the whole document.
	Selector string
}
