package research

import (
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// analyze applies the bundle's research config to an extraction.
func analyze(ex *extraction, pageURL string, cfg skills.ResearchConfig) *PageContent {
	pc := &PageContent{
		Title:           ex.title,
		MetaDescription: ex.metaDescription,
		H1:              ex.h1,
		Text:            ex.text,
		Truncated:       ex.truncated,
		StructuredTypes: ex.structuredTypes,
		StructuredData:  checkStructuredData(ex.structuredTypes, cfg.StructuredData),
	}
	haystack := ex.title + " " + ex.metaDescription + " " + ex.text
	for _, s := range cfg.ContentSignals {
		if skills.Match(s.Pattern, haystack) {
			pc.Signals = append(pc.Signals, SignalMatch{Name: s.Name, Importance: s.Importance})
		}
	}
	pc.PageType, pc.PageTypeConfidence = classify(pageURL, haystack, cfg)
	return pc
}

func checkStructuredData(found []string, cfg skills.StructuredDataConfig) StructuredDataResult {
	has := make(map[string]bool, len(found))
	for _, t := range found {
		has[t] = true
	}
	var r StructuredDataResult
	for _, t := range cfg.LookFor {
		if has[t] {
			r.Found = append(r.Found, t)
		}
	}
	for _, t := range cfg.FlagIfMissing {
		if !has[t] {
			r.Missing = append(r.Missing, t)
		}
	}
	for _, t := range cfg.FlagIfPresent {
		if has[t] {
			r.Flagged = append(r.Flagged, t)
		}
	}
	return r
}

// classify walks page types in order; the first whose matched/total
// pattern ratio reaches the threshold wins. Otherwise the default type is
// returned with the best confidence seen.
func classify(pageURL, text string, cfg skills.ResearchConfig) (string, float64) {
	best := 0.0
	for _, pt := range cfg.PageTypes {
		total := len(pt.URLPatterns) + len(pt.ContentPatterns)
		if total == 0 {
			continue
		}
		matched := 0
		for _, p := range pt.URLPatterns {
			if skills.Match(p, pageURL) {
				matched++
			}
		}
		for _, p := range pt.ContentPatterns {
			if skills.Match(p, text) {
				matched++
			}
		}
		conf := float64(matched) / float64(total)
		if matched > 0 && conf >= cfg.ClassificationThreshold {
			return pt.Type, conf
		}
		if conf > best {
			best = conf
		}
	}
	return cfg.DefaultPageType, best
}
