package skills

import (
	"fmt"
	"regexp"
	"sync"
)

// Bundles carry patterns as strings so they serialize cleanly into workflow
// history; compiled forms are shared through this cache.
var compiled sync.Map // pattern -> *regexp.Regexp

// Compile returns the cached compiled form of pattern.
func Compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := compiled.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := compiled.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// Match reports whether pattern matches text. Invalid patterns never match;
// bundles are validated at load so this only happens for hand-built bundles.
func Match(pattern, text string) bool {
	if pattern == "" {
		return false
	}
	re, err := Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// MatchAny returns the first pattern that matches any of texts.
func MatchAny(patterns []string, texts ...string) (string, bool) {
	for _, p := range patterns {
		for _, t := range texts {
			if Match(p, t) {
				return p, true
			}
		}
	}
	return "", false
}

func validatePatterns(field string, patterns []string) error {
	for i, p := range patterns {
		if _, err := Compile(p); err != nil {
			return fmt.Errorf("%s[%d]: invalid pattern %q: %w", field, i, p, err)
		}
	}
	return nil
}

// mergePatterns appends extra to base, skipping duplicates.
func mergePatterns(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
