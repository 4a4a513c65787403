package dataset

import (
	"net/url"
	"sort"
	"strings"
)

// NormalizeQuery lower-cases, trims and collapses internal whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// NormalizePath reduces a URL to its path: host, query string and fragment
// are dropped and a trailing slash is folded, except for the root. Input
// without a scheme is read as host plus path only when its first segment
// contains a dot, so "products/shoes" stays a path.
func NormalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "/"
	}
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "/") {
		// A dotted first segment is a host; anything else is a relative path.
		first := raw
		if i := strings.IndexAny(raw, "/?#"); i >= 0 {
			first = raw[:i]
		}
		if strings.Contains(first, ".") {
			raw = "//" + raw
		} else {
			raw = "/" + raw
		}
	}
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	} else if i := strings.IndexAny(raw, "?#"); i >= 0 {
		path = raw[:i]
	}
	if path == "" || path == "/" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(path, "/")
}

func sortPages(pages []*PageView) {
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
}

func max0(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func maxf(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
