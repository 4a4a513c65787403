package agents

import "github.com/Kocoro-lab/interplay/internal/skills"

// applyFilter drops excluded actions, floats prioritized ones to the front,
// sinks deprioritized ones to the end and caps the list. Relative order
// within each group is preserved.
func applyFilter[T any](stage string, actions []T, text func(T) string, f skills.OutputFilter) ([]T, []Violation) {
	var violations []Violation
	var front, middle, back []T
	for _, a := range actions {
		t := text(a)
		if p, ok := skills.MatchAny(f.Exclude, t); ok {
			violations = append(violations, Violation{
				Stage:   stage,
				RuleID:  "output_exclude",
				Pattern: p,
				Snippet: snippet(t),
			})
			continue
		}
		switch {
		case matches(f.Prioritize, t):
			front = append(front, a)
		case matches(f.Deprioritize, t):
			back = append(back, a)
		default:
			middle = append(middle, a)
		}
	}
	out := append(append(front, middle...), back...)
	if f.MaxRecommendations > 0 && len(out) > f.MaxRecommendations {
		out = out[:f.MaxRecommendations]
	}
	return out, violations
}

func matches(patterns []string, text string) bool {
	_, ok := skills.MatchAny(patterns, text)
	return ok
}
