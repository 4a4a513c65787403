package skills

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadBundle parses a markdown bundle file. The file must start with "---",
// followed by YAML frontmatter, another "---", and the context narrative.
func LoadBundle(reader io.Reader) (*Bundle, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read bundle: %w", err)
		}
		return nil, fmt.Errorf("bundle file is empty")
	}
	if first := strings.TrimSpace(scanner.Text()); first != "---" {
		return nil, fmt.Errorf("bundle must start with YAML frontmatter (---), got: %q", first)
	}

	var frontmatter bytes.Buffer
	foundEnd := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			foundEnd = true
			break
		}
		frontmatter.WriteString(line + "\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading frontmatter: %w", err)
	}
	if !foundEnd {
		return nil, fmt.Errorf("unterminated YAML frontmatter (missing closing ---)")
	}

	var b Bundle
	if err := yaml.Unmarshal(frontmatter.Bytes(), &b); err != nil {
		return nil, fmt.Errorf("failed to parse YAML frontmatter: %w", err)
	}

	var content bytes.Buffer
	for scanner.Scan() {
		content.WriteString(scanner.Text() + "\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading markdown content: %w", err)
	}
	b.Context = strings.TrimSpace(content.String())

	applyDefaults(&b)
	if err := validateBundle(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// applyDefaults fills zero values with the generic defaults.
func applyDefaults(b *Bundle) {
	d := genericDefaults()
	if b.Version == "" {
		b.Version = "1.0.0"
	}
	if len(b.KPIs.Primary) == 0 {
		b.KPIs.Primary = d.KPIs.Primary
	}
	if b.Scout.MaxKeywords <= 0 {
		b.Scout.MaxKeywords = d.Scout.MaxKeywords
	}
	if b.Scout.MaxPages <= 0 {
		b.Scout.MaxPages = d.Scout.MaxPages
	}
	if len(b.Scout.Rules) == 0 {
		b.Scout.Rules = d.Scout.Rules
	}
	r := &b.Research
	if r.FetchTimeoutMs <= 0 {
		r.FetchTimeoutMs = d.Research.FetchTimeoutMs
	}
	if r.MaxConcurrency <= 0 {
		r.MaxConcurrency = d.Research.MaxConcurrency
	}
	if r.MaxContentChars <= 0 {
		r.MaxContentChars = d.Research.MaxContentChars
	}
	if r.DefaultPageType == "" {
		r.DefaultPageType = d.Research.DefaultPageType
	}
	if r.ClassificationThreshold <= 0 {
		r.ClassificationThreshold = d.Research.ClassificationThreshold
	}
	if b.Prompts.SEMRole == "" {
		b.Prompts.SEMRole = d.Prompts.SEMRole
	}
	if b.Prompts.SEORole == "" {
		b.Prompts.SEORole = d.Prompts.SEORole
	}
	if b.Prompts.DirectorRole == "" {
		b.Prompts.DirectorRole = d.Prompts.DirectorRole
	}
	if b.Output.SEM.MaxRecommendations <= 0 {
		b.Output.SEM.MaxRecommendations = d.Output.SEM.MaxRecommendations
	}
	if b.Output.SEO.MaxRecommendations <= 0 {
		b.Output.SEO.MaxRecommendations = d.Output.SEO.MaxRecommendations
	}
	s := &b.Synthesis
	if s.Weights == (ScoreWeights{}) {
		s.Weights = d.Synthesis.Weights
	}
	if s.MaxRecommendations <= 0 {
		s.MaxRecommendations = d.Synthesis.MaxRecommendations
	}
	if s.MinHighImpact <= 0 {
		s.MinHighImpact = d.Synthesis.MinHighImpact
	}
	if s.MaxHighlights <= 0 {
		s.MaxHighlights = d.Synthesis.MaxHighlights
	}
	bc := &b.Budget
	if bc.FullModeThreshold <= 0 {
		bc.FullModeThreshold = d.Budget.FullModeThreshold
	}
	if bc.CompactTokenTarget <= 0 {
		bc.CompactTokenTarget = d.Budget.CompactTokenTarget
	}
	if bc.PromptCeiling <= 0 {
		bc.PromptCeiling = d.Budget.PromptCeiling
	}
	if bc.SpendWeight <= 0 {
		bc.SpendWeight = d.Budget.SpendWeight
	}
	if bc.ConversionWeight <= 0 {
		bc.ConversionWeight = d.Budget.ConversionWeight
	}
	if len(bc.ReasonWeights) == 0 {
		bc.ReasonWeights = d.Budget.ReasonWeights
	}
	// The declared deny-list always applies, even to tuned bundles.
	if p, ok := declared[b.BusinessType]; ok {
		s.MustExclude = mergePatterns(s.MustExclude, p.exclusions)
	}
}

// validateBundle checks required fields, rule shapes and every pattern.
func validateBundle(b *Bundle) error {
	if b.BusinessType == "" {
		return fmt.Errorf("business_type is required")
	}
	if !b.BusinessType.Declared() {
		return fmt.Errorf("%w: %q", ErrUnknownBusinessType, b.BusinessType)
	}
	if b.Context == "" {
		return fmt.Errorf("bundle %s: context narrative is empty", b.Key())
	}
	if sum := b.Synthesis.Weights.Sum(); math.Abs(sum-1) > 0.001 {
		return fmt.Errorf("bundle %s: synthesis weights must sum to 1, got %.3f", b.Key(), sum)
	}
	if b.Synthesis.MaxRecommendations < 5 || b.Synthesis.MaxRecommendations > 10 {
		return fmt.Errorf("bundle %s: max_recommendations must be within 5..10, got %d", b.Key(), b.Synthesis.MaxRecommendations)
	}
	seen := make(map[string]bool)
	for i, r := range b.Scout.Rules {
		if r.ID == "" {
			return fmt.Errorf("bundle %s: scout.rules[%d] has no id", b.Key(), i)
		}
		if seen[r.ID] {
			return fmt.Errorf("bundle %s: duplicate scout rule %q", b.Key(), r.ID)
		}
		seen[r.ID] = true
		if !r.Tier.Valid() {
			return fmt.Errorf("bundle %s: scout rule %q has invalid tier %q", b.Key(), r.ID, r.Tier)
		}
		if r.Target != "keyword" && r.Target != "page" {
			return fmt.Errorf("bundle %s: scout rule %q target must be keyword or page", b.Key(), r.ID)
		}
		if len(r.Conditions) == 0 {
			return fmt.Errorf("bundle %s: scout rule %q has no conditions", b.Key(), r.ID)
		}
	}
	for i, a := range b.Synthesis.Adjustments {
		switch a.Action {
		case AdjustBoost, AdjustReduce, AdjustRequire, AdjustExclude:
		default:
			return fmt.Errorf("bundle %s: synthesis.adjustments[%d] has invalid action %q", b.Key(), i, a.Action)
		}
		if (a.Action == AdjustBoost || a.Action == AdjustReduce) && a.Factor <= 0 {
			return fmt.Errorf("bundle %s: synthesis.adjustments[%d] needs a positive factor", b.Key(), i)
		}
	}

	checks := map[string][]string{
		"output.sem.prioritize":   b.Output.SEM.Prioritize,
		"output.sem.deprioritize": b.Output.SEM.Deprioritize,
		"output.sem.exclude":      b.Output.SEM.Exclude,
		"output.seo.prioritize":   b.Output.SEO.Prioritize,
		"output.seo.deprioritize": b.Output.SEO.Deprioritize,
		"output.seo.exclude":      b.Output.SEO.Exclude,
		"synthesis.must_include":  b.Synthesis.MustInclude,
		"synthesis.must_exclude":  b.Synthesis.MustExclude,
	}
	for _, pt := range b.Research.PageTypes {
		checks["research.page_types."+pt.Type] = append(append([]string{}, pt.URLPatterns...), pt.ContentPatterns...)
	}
	for _, cs := range b.Research.ContentSignals {
		checks["research.content_signals."+cs.Name] = []string{cs.Pattern}
	}
	for _, c := range b.Synthesis.Conflicts {
		checks["synthesis.conflicts."+c.ID] = []string{c.SEMPattern, c.SEOPattern}
	}
	for _, s := range b.Synthesis.Synergies {
		checks["synthesis.synergies."+s.ID] = []string{s.SEMCondition, s.SEOCondition}
	}
	for _, a := range b.Synthesis.Adjustments {
		checks["synthesis.adjustments."+a.ID] = []string{a.Pattern}
	}
	for field, patterns := range checks {
		if err := validatePatterns(field, patterns); err != nil {
			return fmt.Errorf("bundle %s: %w", b.Key(), err)
		}
	}
	return nil
}

// CalculateContentHash computes SHA256 of a bundle file's content.
func CalculateContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf("%x", hash)
}

// ParseVersion extracts major, minor, patch from a semver string.
// Returns (0, 0, 0) if parsing fails. Suffixes such as "-placeholder" are ignored.
func ParseVersion(version string) (major, minor, patch int) {
	_, _ = fmt.Sscanf(version, "%d.%d.%d", &major, &minor, &patch)
	return
}

// CompareVersions returns -1, 0 or 1 comparing a to b.
func CompareVersions(a, b string) int {
	aMaj, aMin, aPat := ParseVersion(a)
	bMaj, bMin, bPat := ParseVersion(b)
	for _, pair := range [][2]int{{aMaj, bMaj}, {aMin, bMin}, {aPat, bPat}} {
		if pair[0] < pair[1] {
			return -1
		}
		if pair[0] > pair[1] {
			return 1
		}
	}
	return 0
}
