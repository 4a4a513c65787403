package research

import (
	"strings"
	"testing"

	"github.com/Kocoro-lab/interplay/internal/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<!doctype html>
<html><head>
<title>Trail X Running Shoe | Shop</title>
<meta name="description" content="Lightweight   trail shoe.">
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[{"@type":"BreadcrumbList"},{"@type":["Product","Thing"],"offers":{"@type":"Offer","price":"120"}}]}
</script>
<script>var tracking = "add to cart";</script>
<style>.x{}</style>
</head>
<body>
<header><a href="/">Home</a> Free shipping banner</header>
<nav>Men Women Sale</nav>
<main>
  <h1>Trail X   Running Shoe</h1>
  <p>Only $120.   Built for   rocky trails.</p>
  <button>Add to cart</button>
  <div itemscope itemtype="https://schema.org/AggregateRating">4.8 from 212 reviews</div>
</main>
<footer>Contact us | Privacy</footer>
</body></html>`

func TestExtractStripsChromeAndCollectsMarkup(t *testing.T) {
	ex, err := extract([]byte(productPage), 0)
	require.NoError(t, err)

	assert.Equal(t, "Trail X Running Shoe | Shop", ex.title)
	assert.Equal(t, "Lightweight trail shoe.", ex.metaDescription)
	assert.Equal(t, []string{"Trail X Running Shoe"}, ex.h1)
	assert.Equal(t, "Trail X Running Shoe Only $120. Built for rocky trails. Add to cart 4.8 from 212 reviews", ex.text)
	assert.NotContains(t, ex.text, "tracking")
	assert.NotContains(t, ex.text, "Privacy")
	assert.NotContains(t, ex.text, "Free shipping")
	assert.Equal(t, []string{"AggregateRating", "BreadcrumbList", "Offer", "Product", "Thing"}, ex.structuredTypes)
}

func TestExtractCapsText(t *testing.T) {
	page := "<html><body><p>" + strings.Repeat("é", 50) + "</p></body></html>"
	ex, err := extract([]byte(page), 10)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 10), ex.text)
	assert.True(t, ex.truncated)
}

func TestAnalyzeAgainstBundle(t *testing.T) {
	cfg := skills.ResearchConfig{
		DefaultPageType:         "general",
		ClassificationThreshold: 0.5,
		PageTypes: []skills.PageTypeRule{
			{Type: "blog", URLPatterns: []string{`/blog/`}},
			{Type: "product", URLPatterns: []string{`(?i)/products?/`}, ContentPatterns: []string{`(?i)add to cart`, `(?i)out of stock`}},
		},
		StructuredData: skills.StructuredDataConfig{
			LookFor:       []string{"Product", "Review"},
			FlagIfMissing: []string{"Product", "FAQPage"},
			FlagIfPresent: []string{"Offer"},
		},
		ContentSignals: []skills.ContentSignal{
			{Name: "add_to_cart", Pattern: `(?i)add to cart`, Importance: "high"},
			{Name: "free_trial", Pattern: `(?i)free trial`, Importance: "high"},
			{Name: "reviews", Pattern: `(?i)\d+\s+reviews`, Importance: "medium"},
		},
	}
	ex, err := extract([]byte(productPage), 0)
	require.NoError(t, err)
	pc := analyze(ex, "https://shop.test/products/trail-x", cfg)

	assert.Equal(t, "product", pc.PageType)
	assert.InDelta(t, 2.0/3.0, pc.PageTypeConfidence, 1e-9)
	assert.Equal(t, []SignalMatch{{Name: "add_to_cart", Importance: "high"}, {Name: "reviews", Importance: "medium"}}, pc.Signals)
	assert.Equal(t, []string{"Product"}, pc.StructuredData.Found)
	assert.Equal(t, []string{"FAQPage"}, pc.StructuredData.Missing)
	assert.Equal(t, []string{"Offer"}, pc.StructuredData.Flagged)

	typ, conf := classify("https://shop.test/about", "about us", cfg)
	assert.Equal(t, "general", typ)
	assert.Zero(t, conf)
}

func TestClassifyFirstQualifyingTypeWins(t *testing.T) {
	cfg := skills.ResearchConfig{
		ClassificationThreshold: 0.5,
		DefaultPageType:         "general",
		PageTypes: []skills.PageTypeRule{
			{Type: "landing", URLPatterns: []string{`(?i)/lp/`}, ContentPatterns: []string{`(?i)book a call`}},
			{Type: "service", URLPatterns: []string{`(?i)/lp/`}, ContentPatterns: []string{`(?i)our services`, `(?i)book a call`}},
		},
	}
	typ, conf := classify("https://firm.test/lp/injury", "Our services. Book a call today.", cfg)
	assert.Equal(t, "landing", typ, "earlier type wins once it clears the threshold")
	assert.InDelta(t, 1.0, conf, 1e-9)

	typ, conf = classify("https://firm.test/lp/injury", "Our services.", cfg)
	assert.Equal(t, "landing", typ)
	assert.InDelta(t, 0.5, conf, 1e-9)

	cfg.ClassificationThreshold = 0.9
	typ, conf = classify("https://firm.test/lp/injury", "Our services.", cfg)
	assert.Equal(t, "general", typ)
	assert.InDelta(t, 2.0/3.0, conf, 1e-9)
}
