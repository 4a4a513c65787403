package skills

import "fmt"

// PlaceholderSuffix marks bundles synthesized from generic defaults.
const PlaceholderSuffix = "-placeholder"

const genericVersion = "0.1.0"

// genericDefaults is the vertical-neutral configuration every bundle falls
// back to for fields it leaves empty.
func genericDefaults() Bundle {
	return Bundle{
		Version: genericVersion,
		Context: "The client runs paid and organic search programs. Evaluate how the two channels interact " +
			"and recommend changes that improve total return across both.",
		KPIs: KPIs{
			Primary:   []string{"conversions", "spend"},
			Secondary: []string{"organic_clicks", "sessions"},
		},
		Benchmarks: map[string]float64{
			"target_roas":          3.0,
			"target_ctr":           0.03,
			"max_bounce_rate":      0.6,
			"min_engagement_rate":  0.45,
			"impression_share_low": 30,
		},
		Scout: ScoutConfig{
			MaxKeywords: 25,
			MaxPages:    10,
			Rules: []ScoutRule{
				{
					ID: "high_spend_low_return", Name: "High spend, low return", Tier: TierCritical, Target: "keyword",
					Conditions: []Condition{{Metric: "spend", Op: "gte", Value: 100}, {Metric: "roas", Op: "lt", Value: 1}},
				},
				{
					ID: "cannibalization", Name: "Paid/organic cannibalization", Tier: TierHigh, Target: "keyword",
					Conditions: []Condition{{Metric: "has_paid", Op: "eq", Value: 1}, {Metric: "organic_position", Op: "lte", Value: 3}},
				},
				{
					ID: "organic_gap", Name: "Paid winner without organic presence", Tier: TierHigh, Target: "keyword",
					Conditions: []Condition{{Metric: "conversions", Op: "gte", Value: 5}, {Metric: "has_organic", Op: "eq", Value: 0}},
				},
				{
					ID: "striking_distance", Name: "Organic striking distance", Tier: TierMedium, Target: "keyword",
					Conditions: []Condition{{Metric: "organic_position", Op: "gt", Value: 3}, {Metric: "organic_position", Op: "lte", Value: 15}},
				},
				{
					ID: "leaky_page", Name: "High-traffic page with poor engagement", Tier: TierHigh, Target: "page",
					Conditions: []Condition{{Metric: "sessions", Op: "gte", Value: 100}, {Metric: "bounce_rate", Op: "gt", Value: 0.6}},
				},
				{
					ID: "traffic_page", Name: "Organic landing page", Tier: TierMedium, Target: "page",
					Conditions: []Condition{{Metric: "organic_clicks", Op: "gt", Value: 0}},
				},
			},
		},
		Research: ResearchConfig{
			FetchTimeoutMs:          10000,
			MaxConcurrency:          5,
			MaxContentChars:         4000,
			DefaultPageType:         "general",
			ClassificationThreshold: 0.5,
			Boosts: []Boost{
				{
					Name:       "low_impression_share_converter",
					Conditions: []Condition{{Metric: "impression_share", Op: "lt", Value: 30}, {Metric: "conversions", Op: "gt", Value: 10}},
					Factor:     1.5,
					Reason:     "converting keyword starved of impression share",
				},
			},
		},
		Prompts: PromptConfig{
			SEMRole:      "You are a senior paid-search strategist.",
			SEORole:      "You are a senior organic-search strategist.",
			DirectorRole: "You are a marketing director writing for the client's leadership.",
			Constraints: []string{
				"Only recommend actions supported by the data provided.",
				"Never invent metrics that are not in the data.",
			},
		},
		Output: OutputConfig{
			SEM: OutputFilter{MaxRecommendations: 10},
			SEO: OutputFilter{MaxRecommendations: 10},
		},
		Synthesis: SynthesisConfig{
			Weights:            ScoreWeights{Revenue: 0.4, Cost: 0.25, Effort: 0.2, Risk: 0.15},
			MaxRecommendations: 7,
			MinHighImpact:      3,
			MaxHighlights:      3,
		},
		Budget: BudgetConfig{
			FullModeThreshold:  12000,
			CompactTokenTarget: 8000,
			PromptCeiling:      24000,
			SpendWeight:        1.0,
			ConversionWeight:   2.0,
			ReasonWeights: map[string]float64{
				string(TierCritical): 3,
				string(TierHigh):     2,
				string(TierMedium):   1,
			},
		},
	}
}

// placeholderBundle builds a clearly versioned generic bundle for a declared
// business type lacking a dedicated one. The type's deny-list is copied into
// every filter so the report stays type-safe without full tuning.
func placeholderBundle(bt BusinessType) *Bundle {
	b := genericDefaults()
	p := declared[bt]
	b.BusinessType = bt
	b.Version = genericVersion + PlaceholderSuffix
	b.Placeholder = true
	b.Description = fmt.Sprintf("Generic defaults for %s (%s)", bt, p.description)
	ex := append([]string(nil), p.exclusions...)
	b.Synthesis.MustExclude = ex
	b.Output.SEM.Exclude = append([]string(nil), ex...)
	b.Output.SEO.Exclude = append([]string(nil), ex...)
	return &b
}
