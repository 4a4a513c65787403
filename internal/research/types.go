// Package research enriches Scout's selection without model calls: page
// content and on-page signals for critical pages, and competitive metrics
// plus priority boosts for battleground keywords.
package research

import "github.com/Kocoro-lab/interplay/internal/scout"

// PageContent is what was extracted from one fetched page.
type PageContent struct {
	Title              string               `json:"title,omitempty"`
	MetaDescription    string               `json:"meta_description,omitempty"`
	H1                 []string             `json:"h1,omitempty"`
	Text               string               `json:"text"`
	Truncated          bool                 `json:"truncated,omitempty"`
	StructuredTypes    []string             `json:"structured_types,omitempty"`
	StructuredData     StructuredDataResult `json:"structured_data"`
	Signals            []SignalMatch        `json:"signals,omitempty"`
	PageType           string               `json:"page_type"`
	PageTypeConfidence float64              `json:"page_type_confidence"`
}

// StructuredDataResult checks found schema.org types against the bundle.
type StructuredDataResult struct {
	Found   []string `json:"found,omitempty"`   // look_for types present
	Missing []string `json:"missing,omitempty"` // flag_if_missing types absent
	Flagged []string `json:"flagged,omitempty"` // flag_if_present types present
}

// SignalMatch is a content signal found on the page.
type SignalMatch struct {
	Name       string `json:"name"`
	Importance string `json:"importance"`
}

// PageResult is the outcome for one selected page. Content is nil when the
// fetch failed or timed out; Error says why.
type PageResult struct {
	scout.PageCandidate
	Content    *PageContent `json:"content,omitempty"`
	Error      string       `json:"error,omitempty"`
	FromCache  bool         `json:"from_cache,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

// FetchStats summarizes the page fetch batch.
type FetchStats struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cached    int `json:"cached"`
}

// Enrichment is the Researcher's output. Keyword records are copies with
// competitive metrics and boosts attached.
type Enrichment struct {
	Keywords             []scout.Candidate `json:"keywords"`
	Pages                []PageResult      `json:"pages"`
	Stats                FetchStats        `json:"stats"`
	CompetitiveAvailable bool              `json:"competitive_available"`
	Boosted              int               `json:"boosted"`
}
