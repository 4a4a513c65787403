package director

import (
	"fmt"
	"math"
	"sort"

	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// weightTolerance is how far the bundle's score weights may drift from 1.
const weightTolerance = 0.001

// Factors map qualitative levels and channels to the [0,1] factors the
// bundle's weights combine. Higher is better on every axis: a low-effort or
// low-risk item gets a high factor.
type Factors struct {
	Revenue map[string]float64 `json:"revenue" mapstructure:"revenue"` // by impact
	Cost    map[string]float64 `json:"cost" mapstructure:"cost"`       // by channel
	Effort  map[string]float64 `json:"effort" mapstructure:"effort"`   // by effort
	Risk    map[string]float64 `json:"risk" mapstructure:"risk"`       // by channel
}

// DefaultFactors are used when none are configured.
func DefaultFactors() Factors {
	return Factors{
		Revenue: map[string]float64{"high": 1, "medium": 0.6, "low": 0.3},
		Cost:    map[string]float64{ChannelSEM: 0.8, ChannelHybrid: 0.7, ChannelSEO: 0.5},
		Effort:  map[string]float64{"low": 1, "medium": 0.6, "high": 0.3},
		Risk:    map[string]float64{ChannelHybrid: 0.9, ChannelSEO: 0.8, ChannelSEM: 0.6},
	}
}

func validateWeights(w skills.ScoreWeights) error {
	if math.Abs(w.Sum()-1) > weightTolerance {
		return fmt.Errorf("synthesis weights sum to %.4f, want 1", w.Sum())
	}
	return nil
}

// baseScore is the weighted factor sum on a 0..100 scale.
func (f Factors) baseScore(r Recommendation, w skills.ScoreWeights) float64 {
	s := w.Revenue*f.Revenue[r.Impact] +
		w.Cost*f.Cost[r.Channel] +
		w.Effort*f.Effort[r.Effort] +
		w.Risk*f.Risk[r.Channel]
	return s * 100
}

// adjust applies the bundle's ordered adjustments. It returns false when an
// exclude adjustment removes the candidate.
func adjust(c *candidate, adjustments []skills.Adjustment) (kept bool, by *skills.Adjustment) {
	for i := range adjustments {
		a := &adjustments[i]
		if a.Channel != "" && a.Channel != c.rec.Channel {
			continue
		}
		if !skills.Match(a.Pattern, c.matchText()) {
			continue
		}
		switch a.Action {
		case skills.AdjustBoost, skills.AdjustReduce:
			if a.Factor > 0 {
				c.rec.Score *= a.Factor
			}
		case skills.AdjustRequire:
			c.rec.Required = true
		case skills.AdjustExclude:
			return false, a
		}
	}
	return true, nil
}

// selectFinal enforces must_include and the cap, then backfills high and
// medium impact items when too few survived. in must be sorted by score.
// Required items take slots first but never push the list past the cap;
// required items beyond it are counted in stats.RequiredDropped.
func selectFinal(in []*candidate, cfg skills.SynthesisConfig, stats *Stats) []*candidate {
	limit := cfg.MaxRecommendations
	if limit <= 0 || limit >= len(in) {
		return in
	}

	var kept, overflow []*candidate
	for _, c := range in {
		if !c.rec.Required {
			continue
		}
		if len(kept) < limit {
			kept = append(kept, c)
		} else {
			stats.RequiredDropped++
		}
	}
	free := limit - len(kept)
	for _, c := range in {
		switch {
		case c.rec.Required:
		case free > 0:
			kept = append(kept, c)
			free--
		default:
			overflow = append(overflow, c)
		}
	}

	for _, o := range overflow {
		if countSignificant(kept) >= cfg.MinHighImpact {
			break
		}
		if !significant(o) {
			continue
		}
		victim := lowestReplaceable(kept)
		if victim < 0 {
			break
		}
		kept[victim] = o
		stats.Backfilled++
	}
	sortCandidates(kept)
	stats.Capped = len(in) - len(kept)
	return kept
}

func significant(c *candidate) bool {
	return c.rec.Impact == agents.ImpactHigh || c.rec.Impact == agents.ImpactMedium
}

func countSignificant(cs []*candidate) int {
	n := 0
	for _, c := range cs {
		if significant(c) {
			n++
		}
	}
	return n
}

// lowestReplaceable is the lowest-scored kept item that is neither required
// nor significant, or -1.
func lowestReplaceable(kept []*candidate) int {
	idx := -1
	for i, c := range kept {
		if c.rec.Required || significant(c) {
			continue
		}
		if idx < 0 || c.rec.Score <= kept[idx].rec.Score {
			idx = i
		}
	}
	return idx
}

// sortCandidates orders by score descending, then title for determinism.
func sortCandidates(cs []*candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].rec.Score != cs[j].rec.Score {
			return cs[i].rec.Score > cs[j].rec.Score
		}
		return cs[i].rec.Title < cs[j].rec.Title
	})
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
