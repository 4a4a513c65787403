// Package skills implements the business-type skill bundle system.
//
// A skill bundle is a markdown file with YAML frontmatter. The frontmatter
// carries every threshold, rule, prompt fragment and output filter the
// pipeline stages consult; the markdown body is the business context
// narrative handed to the agents. Bundles are keyed by (business type,
// version) and are immutable once loaded.
package skills

import (
	"fmt"
	"strings"
)

// Tier is a Scout rule priority tier.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
)

// Rank orders tiers; lower is more urgent. Unknown tiers sort last.
func (t Tier) Rank() int {
	switch t {
	case TierCritical:
		return 0
	case TierHigh:
		return 1
	case TierMedium:
		return 2
	default:
		return 3
	}
}

// Valid reports whether t is a declared tier.
func (t Tier) Valid() bool { return t.Rank() < 3 }

// Bundle is the full configuration for one business type.
type Bundle struct {
	BusinessType BusinessType       `yaml:"business_type" json:"business_type"`
	Version      string             `yaml:"version" json:"version"`
	Description  string             `yaml:"description" json:"description,omitempty"`
	Placeholder  bool               `yaml:"-" json:"placeholder"`
	Context      string             `yaml:"-" json:"context"`
	KPIs         KPIs               `yaml:"kpis" json:"kpis"`
	Benchmarks   map[string]float64 `yaml:"benchmarks" json:"benchmarks,omitempty"`
	Scout        ScoutConfig        `yaml:"scout" json:"scout"`
	Research     ResearchConfig     `yaml:"research" json:"research"`
	Prompts      PromptConfig       `yaml:"prompts" json:"prompts"`
	Output       OutputConfig       `yaml:"output" json:"output"`
	Synthesis    SynthesisConfig    `yaml:"synthesis" json:"synthesis"`
	Budget       BudgetConfig       `yaml:"budget" json:"budget"`
}

// Key returns the registry key "business_type@version".
func (b *Bundle) Key() string {
	return fmt.Sprintf("%s@%s", b.BusinessType, b.Version)
}

// KPIs lists which metrics matter for the business type.
type KPIs struct {
	Primary    []string `yaml:"primary" json:"primary"`
	Secondary  []string `yaml:"secondary" json:"secondary,omitempty"`
	Irrelevant []string `yaml:"irrelevant" json:"irrelevant,omitempty"`
}

// Condition compares a named metric against a constant.
type Condition struct {
	Metric string  `yaml:"metric" json:"metric"`
	Op     string  `yaml:"op" json:"op"`
	Value  float64 `yaml:"value" json:"value"`
}

// Eval applies the comparison to v.
func (c Condition) Eval(v float64) bool {
	switch c.Op {
	case "lt", "<":
		return v < c.Value
	case "lte", "<=":
		return v <= c.Value
	case "gt", ">":
		return v > c.Value
	case "gte", ">=":
		return v >= c.Value
	case "eq", "==":
		return v == c.Value
	case "neq", "!=":
		return v != c.Value
	}
	return false
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %g", c.Metric, c.Op, c.Value)
}

// AllHold evaluates every condition against lookup. A metric the lookup
// cannot resolve makes the whole set false.
func AllHold(conds []Condition, lookup func(metric string) (float64, bool)) bool {
	if len(conds) == 0 {
		return false
	}
	for _, c := range conds {
		v, ok := lookup(c.Metric)
		if !ok || !c.Eval(v) {
			return false
		}
	}
	return true
}

// ScoutConfig bounds and rules for triage.
type ScoutConfig struct {
	MaxKeywords int         `yaml:"max_keywords" json:"max_keywords"`
	MaxPages    int         `yaml:"max_pages" json:"max_pages"`
	Rules       []ScoutRule `yaml:"rules" json:"rules"`
}

// ScoutRule is a named, tiered condition set.
type ScoutRule struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Tier        Tier        `yaml:"tier" json:"tier"`
	Target      string      `yaml:"target" json:"target"` // keyword | page
	Enabled     *bool       `yaml:"enabled" json:"enabled,omitempty"`
	Conditions  []Condition `yaml:"conditions" json:"conditions"`
	Description string      `yaml:"description" json:"description,omitempty"`
}

// IsEnabled defaults to true when the field is omitted.
func (r ScoutRule) IsEnabled() bool { return r.Enabled == nil || *r.Enabled }

// ResearchConfig drives the Researcher.
type ResearchConfig struct {
	FetchTimeoutMs          int                  `yaml:"fetch_timeout_ms" json:"fetch_timeout_ms"`
	MaxConcurrency          int                  `yaml:"max_concurrency" json:"max_concurrency"`
	MaxContentChars         int                  `yaml:"max_content_chars" json:"max_content_chars"`
	PageTypes               []PageTypeRule       `yaml:"page_types" json:"page_types,omitempty"`
	DefaultPageType         string               `yaml:"default_page_type" json:"default_page_type"`
	ClassificationThreshold float64              `yaml:"classification_threshold" json:"classification_threshold"`
	StructuredData          StructuredDataConfig `yaml:"structured_data" json:"structured_data"`
	ContentSignals          []ContentSignal      `yaml:"content_signals" json:"content_signals,omitempty"`
	Boosts                  []Boost              `yaml:"boosts" json:"boosts,omitempty"`
}

// PageTypeRule classifies a page by URL and content patterns.
type PageTypeRule struct {
	Type            string   `yaml:"type" json:"type"`
	URLPatterns     []string `yaml:"url_patterns" json:"url_patterns,omitempty"`
	ContentPatterns []string `yaml:"content_patterns" json:"content_patterns,omitempty"`
}

// StructuredDataConfig lists schema.org types to check for.
type StructuredDataConfig struct {
	LookFor       []string `yaml:"look_for" json:"look_for,omitempty"`
	FlagIfPresent []string `yaml:"flag_if_present" json:"flag_if_present,omitempty"`
	FlagIfMissing []string `yaml:"flag_if_missing" json:"flag_if_missing,omitempty"`
}

// ContentSignal is a named on-page pattern such as an add-to-cart button.
type ContentSignal struct {
	Name       string `yaml:"name" json:"name"`
	Pattern    string `yaml:"pattern" json:"pattern"`
	Importance string `yaml:"importance" json:"importance"`
}

// Boost raises a keyword's serialization priority when its conditions hold.
type Boost struct {
	Name       string      `yaml:"name" json:"name"`
	Conditions []Condition `yaml:"conditions" json:"conditions"`
	Factor     float64     `yaml:"factor" json:"factor"`
	Reason     string      `yaml:"reason" json:"reason,omitempty"`
}

// PromptConfig holds prompt fragments for the agents.
type PromptConfig struct {
	SEMRole      string   `yaml:"sem_role" json:"sem_role"`
	SEORole      string   `yaml:"seo_role" json:"seo_role"`
	DirectorRole string   `yaml:"director_role" json:"director_role"`
	Patterns     []string `yaml:"patterns" json:"patterns,omitempty"`
	Constraints  []string `yaml:"constraints" json:"constraints,omitempty"`
}

// OutputConfig holds one filter per specialist.
type OutputConfig struct {
	SEM OutputFilter `yaml:"sem" json:"sem"`
	SEO OutputFilter `yaml:"seo" json:"seo"`
}

// OutputFilter reorders and trims specialist actions by pattern.
type OutputFilter struct {
	MaxRecommendations int      `yaml:"max" json:"max"`
	Prioritize         []string `yaml:"prioritize" json:"prioritize,omitempty"`
	Deprioritize       []string `yaml:"deprioritize" json:"deprioritize,omitempty"`
	Exclude            []string `yaml:"exclude" json:"exclude,omitempty"`
}

// SynthesisConfig drives the Director.
type SynthesisConfig struct {
	Conflicts          []ConflictRule `yaml:"conflicts" json:"conflicts,omitempty"`
	Synergies          []SynergyRule  `yaml:"synergies" json:"synergies,omitempty"`
	Adjustments        []Adjustment   `yaml:"adjustments" json:"adjustments,omitempty"`
	Weights            ScoreWeights   `yaml:"weights" json:"weights"`
	MustInclude        []string       `yaml:"must_include" json:"must_include,omitempty"`
	MustExclude        []string       `yaml:"must_exclude" json:"must_exclude,omitempty"`
	MaxRecommendations int            `yaml:"max_recommendations" json:"max_recommendations"`
	MinHighImpact      int            `yaml:"min_high_impact" json:"min_high_impact"`
	MaxHighlights      int            `yaml:"max_highlights" json:"max_highlights"`
}

// ConflictRule replaces a contradicting SEM/SEO pair with one resolution.
type ConflictRule struct {
	ID          string `yaml:"id" json:"id"`
	SEMPattern  string `yaml:"sem_pattern" json:"sem_pattern"`
	SEOPattern  string `yaml:"seo_pattern" json:"seo_pattern"`
	SameKeyword bool   `yaml:"same_keyword" json:"same_keyword,omitempty"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Impact      string `yaml:"impact" json:"impact,omitempty"`
}

// SynergyRule merges two complementary actions into one.
type SynergyRule struct {
	ID           string `yaml:"id" json:"id"`
	SEMCondition string `yaml:"sem_condition" json:"sem_condition"`
	SEOCondition string `yaml:"seo_condition" json:"seo_condition"`
	SameKeyword  bool   `yaml:"same_keyword" json:"same_keyword,omitempty"`
	Title        string `yaml:"title" json:"title"`
	Description  string `yaml:"description" json:"description"`
	Impact       string `yaml:"impact" json:"impact,omitempty"`
}

// Adjustment actions.
const (
	AdjustBoost   = "boost"
	AdjustReduce  = "reduce"
	AdjustRequire = "require"
	AdjustExclude = "exclude"
)

// Adjustment modifies a recommendation score when its pattern matches.
type Adjustment struct {
	ID      string  `yaml:"id" json:"id"`
	Pattern string  `yaml:"pattern" json:"pattern"`
	Action  string  `yaml:"action" json:"action"`
	Factor  float64 `yaml:"factor" json:"factor"`
	Channel string  `yaml:"channel" json:"channel,omitempty"`
}

// ScoreWeights must sum to 1.
type ScoreWeights struct {
	Revenue float64 `yaml:"revenue" json:"revenue"`
	Cost    float64 `yaml:"cost" json:"cost"`
	Effort  float64 `yaml:"effort" json:"effort"`
	Risk    float64 `yaml:"risk" json:"risk"`
}

// Sum of all weights.
func (w ScoreWeights) Sum() float64 { return w.Revenue + w.Cost + w.Effort + w.Risk }

// BudgetConfig holds serialization and scoring knobs.
type BudgetConfig struct {
	FullModeThreshold  int                `yaml:"full_mode_threshold" json:"full_mode_threshold"`
	CompactTokenTarget int                `yaml:"compact_token_target" json:"compact_token_target"`
	PromptCeiling      int                `yaml:"prompt_ceiling" json:"prompt_ceiling"`
	SpendWeight        float64            `yaml:"spend_weight" json:"spend_weight"`
	ConversionWeight   float64            `yaml:"conversion_weight" json:"conversion_weight"`
	ReasonWeights      map[string]float64 `yaml:"reason_weights" json:"reason_weights,omitempty"`
}

// Summary is a lightweight listing entry.
type Summary struct {
	BusinessType BusinessType `json:"business_type"`
	Version      string       `json:"version"`
	Description  string       `json:"description"`
	Placeholder  bool         `json:"placeholder"`
}

// ExclusionPatterns returns every deny-list pattern of the bundle.
func (b *Bundle) ExclusionPatterns() []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{b.Synthesis.MustExclude, b.Output.SEM.Exclude, b.Output.SEO.Exclude} {
		for _, p := range list {
			if p = strings.TrimSpace(p); p != "" && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
