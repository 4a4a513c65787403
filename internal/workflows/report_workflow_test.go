package workflows

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/activities"
	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/constants"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/director"
	"github.com/Kocoro-lab/interplay/internal/llm"
	"github.com/Kocoro-lab/interplay/internal/research"
	"github.com/Kocoro-lab/interplay/internal/skills"
	"github.com/Kocoro-lab/interplay/internal/sources"
)

type pageSet map[string]string

func (p pageSet) Fetch(_ context.Context, url string) ([]byte, error) {
	if body, ok := p[url]; ok {
		return []byte(body), nil
	}
	return nil, fmt.Errorf("GET %s: 404", url)
}

type harness struct {
	env   *testsuite.TestWorkflowEnvironment
	store *db.Store
	run   *db.ReportRun
}

func newHarness(t *testing.T, bt skills.BusinessType, src *sources.Fixture, gen *llm.Scripted) *harness {
	t.Helper()
	ctx := context.Background()
	dbx, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, DSN: filepath.Join(t.TempDir(), "wf.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	store := db.NewStore(dbx, nil, zap.NewNop())
	require.NoError(t, store.Migrate(ctx))

	reg, err := skills.NewDefaultRegistry(zap.NewNop())
	require.NoError(t, err)

	acts := activities.NewActivities(activities.Deps{
		Skills:  reg,
		Unifier: dataset.NewUnifier(src, zap.NewNop()),
		Researcher: research.New(pageSet{
			"https://shop.test/products/trail-x": `<html><head><title>Trail X</title></head><body><h1>Trail X</h1><p>Grippy trail shoe. Add to cart.</p></body></html>`,
		}, nil, src, research.Options{PerHostRPS: 100, PerHostBurst: 10}, zap.NewNop()),
		SEM:      agents.NewSEM(gen, agents.DefaultOptions, zap.NewNop()),
		SEO:      agents.NewSEO(gen, agents.DefaultOptions, zap.NewNop()),
		Director: director.New(nil, director.Options{}, zap.NewNop()),
		Store:    store,
	}, zap.NewNop())

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	Register(env)
	activities.Register(env, acts)

	run := &db.ReportRun{ClientID: "acme", BusinessType: string(bt), Trigger: db.TriggerManual, DateStart: "2026-01-01", DateEnd: "2026-01-30"}
	require.NoError(t, store.CreateRun(ctx, run))
	return &harness{env: env, store: store, run: run}
}

func (h *harness) execute() {
	h.env.ExecuteWorkflow(constants.InterplayReportWorkflow, ReportInput{
		ReportID:     h.run.ID.String(),
		ClientID:     h.run.ClientID,
		BusinessType: h.run.BusinessType,
		Trigger:      h.run.Trigger,
	})
}

func shopFixture() *sources.Fixture {
	return &sources.Fixture{
		Paid: []sources.PaidRow{
			{Query: "trail running shoes", Spend: 400, Clicks: 200, Conversions: 3, ConversionValue: 300},
			{Query: "running shoes", Spend: 150, Clicks: 100, Conversions: 10, ConversionValue: 900},
		},
		Organic: []sources.OrganicRow{
			{Query: "trail running shoes", URL: "https://shop.test/products/trail-x", Position: 9, Clicks: 20, Impressions: 1000},
			{Query: "running shoes", URL: "https://shop.test/collections/running", Position: 2, Clicks: 300, Impressions: 4000},
		},
		Analytics: []sources.AnalyticsRow{
			{URL: "/products/trail-x", Sessions: 400, BounceRate: 0.7, Revenue: 300},
			{URL: "/collections/running", Sessions: 900, BounceRate: 0.3, Revenue: 2500},
		},
		Competitive: []sources.CompetitiveRow{
			{Query: "trail running shoes", ImpressionShare: 35, LostISRank: 40, LostISBudget: 25},
		},
	}
}

const shopSEM = "```json\n" + `{"summary": "Spend is leaking on trail queries.", "actions": [
 {"type": "negative_keyword", "level": "keyword", "keyword": "trail running shoes", "action": "Cut wasted spend on trail running shoes with exact match", "impact": "high", "effort": "low", "rationale": "400 spend for 300 conversion value"},
 {"type": "pause", "level": "keyword", "keyword": "running shoes", "action": "Reduce bids on running shoes where organic ranks 2", "impact": "medium", "effort": "low", "rationale": "position 2 organically"}
]}` + "\n```"

const shopSEO = `{"actions": [
 {"type": "content", "url": "/products/trail-x", "keyword": "trail running shoes", "condition": "Bounce rate 0.7", "recommendation": "Rewrite the product page intro and add sizing guidance", "specific_actions": ["Add size chart", "Add reviews"], "impact": "high", "effort": "medium", "rationale": "400 sessions bouncing"}
]}`

func TestEcommerceReportCompletes(t *testing.T) {
	gen := llm.NewScripted(map[string]string{
		agents.KindSEM.AgentID(): shopSEM,
		agents.KindSEO.AgentID(): shopSEO,
	})
	h := newHarness(t, skills.BusinessEcommerce, shopFixture(), gen)
	h.execute()

	require.True(t, h.env.IsWorkflowCompleted())
	require.NoError(t, h.env.GetWorkflowError())
	var res ReportResult
	require.NoError(t, h.env.GetWorkflowResult(&res))

	assert.Equal(t, db.StatusCompleted, res.Status)
	require.NotEmpty(t, res.Recommendations)
	assert.NotEmpty(t, res.Summary.Headline)
	assert.Equal(t, "ok", res.Metrics.Agents["sem"].Status)
	assert.Equal(t, "ok", res.Metrics.Agents["seo"].Status)
	assert.Equal(t, 1, res.Metrics.PageFetches.Succeeded)

	var wasted bool
	for _, r := range res.Recommendations {
		if strings.Contains(strings.ToLower(r.Title+" "+r.Description), "wasted spend") {
			wasted = wasted || r.Required
		}
	}
	assert.True(t, wasted, "must_include item survives the cap")

	// The SEM prompt carries the Scout pick and the research boost.
	reqs := gen.Requests()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		if r.AgentID == agents.KindSEM.AgentID() {
			assert.Contains(t, r.Prompt, "trail running shoes")
		}
	}

	ctx := context.Background()
	run, err := h.store.GetRun(ctx, h.run.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusCompleted, run.Status)
	assert.NotEmpty(t, run.Metrics)

	stages, err := h.store.StageOutputs(ctx, h.run.ID)
	require.NoError(t, err)
	for _, s := range db.Stages {
		assert.Contains(t, stages, s)
	}

	var sel struct {
		Keywords []struct {
			Query  string `json:"query"`
			RuleID string `json:"rule_id"`
		} `json:"keywords"`
	}
	ok, err := h.store.LoadStage(ctx, h.run.ID, db.StageScout, &sel)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, sel.Keywords)
	assert.Equal(t, "trail running shoes", sel.Keywords[0].Query)
}

func TestLeadGenNeverEmitsProductSchema(t *testing.T) {
	src := &sources.Fixture{
		Paid: []sources.PaidRow{
			{Query: "divorce lawyer", Spend: 600, Clicks: 120, Conversions: 1},
			{Query: "family lawyer near me", Spend: 200, Clicks: 80, Conversions: 8},
		},
		Organic: []sources.OrganicRow{
			{Query: "divorce lawyer", URL: "https://law.test/services/divorce", Position: 7, Clicks: 40, Impressions: 2000},
		},
		Analytics: []sources.AnalyticsRow{
			{URL: "/services/divorce", Sessions: 300, EngagementRate: 0.3, Conversions: 4},
		},
	}
	gen := llm.NewScripted(map[string]string{
		agents.KindSEM.AgentID(): `{"actions": [
 {"type": "landing_page", "level": "campaign", "campaign": "Divorce", "action": "Add schema:Product markup to the divorce landing page", "impact": "high", "rationale": "rich results"},
 {"type": "negative_keyword", "level": "keyword", "keyword": "divorce lawyer", "action": "Add negative keywords for free consultations to cut wasted spend", "impact": "high", "rationale": "600 spend for one lead"}
]}`,
		agents.KindSEO.AgentID(): `{"actions": [
 {"type": "structured_data", "url": "/services/divorce", "condition": "No markup", "recommendation": "Add schema:Product markup", "impact": "high", "rationale": "rich results"},
 {"type": "content", "url": "/services/divorce", "condition": "Engagement 0.3", "recommendation": "Move the consultation form above the fold", "impact": "medium", "rationale": "low engagement"}
]}`,
	})
	h := newHarness(t, skills.BusinessLeadGen, src, gen)
	h.execute()

	require.True(t, h.env.IsWorkflowCompleted())
	require.NoError(t, h.env.GetWorkflowError())
	var res ReportResult
	require.NoError(t, h.env.GetWorkflowResult(&res))

	require.NotEmpty(t, res.Recommendations)
	for _, r := range res.Recommendations {
		text := r.Title + " " + r.Description + " " + strings.Join(r.ActionItems, " ")
		assert.False(t, skills.Match(`(?i)schema:?\s*Product\b`, text), "leaked: %q", r.Title)
	}
	assert.GreaterOrEqual(t, res.Metrics.ViolationCount, 2)

	vs, err := h.store.Violations(context.Background(), h.run.ID)
	require.NoError(t, err)
	rules := map[string]bool{}
	for _, v := range vs {
		rules[v.RuleID] = true
	}
	assert.True(t, rules["output_exclude"], "SEO filter drop is recorded")
	assert.True(t, rules["must_exclude"], "Director drop is recorded")
}

func TestEmptySpecialistIsTolerated(t *testing.T) {
	gen := llm.NewScripted(map[string]string{
		agents.KindSEM.AgentID(): shopSEM,
		agents.KindSEO.AgentID(): `{"items": []}`,
	})
	h := newHarness(t, skills.BusinessEcommerce, shopFixture(), gen)
	h.execute()

	require.NoError(t, h.env.GetWorkflowError())
	var res ReportResult
	require.NoError(t, h.env.GetWorkflowResult(&res))
	assert.Equal(t, db.StatusCompleted, res.Status)
	assert.Equal(t, string(llm.StatusEmpty), res.Metrics.Agents["seo"].Status)
	assert.NotEmpty(t, res.Warnings)
}

func TestModelFailureFailsRun(t *testing.T) {
	gen := llm.NewScripted(map[string]string{agents.KindSEO.AgentID(): shopSEO}).
		Fail(agents.KindSEM.AgentID(), errors.New("upstream 503"))
	h := newHarness(t, skills.BusinessEcommerce, shopFixture(), gen)
	h.execute()

	require.True(t, h.env.IsWorkflowCompleted())
	err := h.env.GetWorkflowError()
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, activities.ErrTypeModelCall, appErr.Type())

	run, err := h.store.GetRun(context.Background(), h.run.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, run.Status)
	assert.True(t, strings.HasPrefix(run.ErrorMessage, "sem: "), run.ErrorMessage)
}

func TestDataUnavailableFailsRun(t *testing.T) {
	src := shopFixture()
	src.Fail("organic", errors.New("search console down"))
	h := newHarness(t, skills.BusinessEcommerce, src, llm.NewScripted(nil))
	h.execute()

	require.Error(t, h.env.GetWorkflowError())
	run, err := h.store.GetRun(context.Background(), h.run.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "unified")
}

func TestMetricsFailureDoesNotFailRun(t *testing.T) {
	gen := llm.NewScripted(map[string]string{
		agents.KindSEM.AgentID(): shopSEM,
		agents.KindSEO.AgentID(): shopSEO,
	})
	h := newHarness(t, skills.BusinessEcommerce, shopFixture(), gen)
	h.env.OnActivity(constants.RecordRunMetricsActivity, mock.Anything, mock.Anything).
		Return(errors.New("metrics store offline"))
	h.execute()

	require.NoError(t, h.env.GetWorkflowError())
	var res ReportResult
	require.NoError(t, h.env.GetWorkflowResult(&res))
	assert.Equal(t, db.StatusCompleted, res.Status)
}
