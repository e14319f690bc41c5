package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecrew/internal/models"
	"tradecrew/internal/storage/sqlite"
	"tradecrew/pkg/errors"
)

type runCall struct {
	role  models.Role
	req   models.TradingRequest
	prior []models.AgentOutput
}

type scriptedRunner struct {
	role  models.Role
	text  string
	fail  error
	calls *[]runCall
}

func (r *scriptedRunner) Role() models.Role { return r.role }

func (r *scriptedRunner) Run(_ context.Context, req models.TradingRequest, prior []models.AgentOutput) (models.AgentOutput, error) {
	cp := make([]models.AgentOutput, len(prior))
	copy(cp, prior)
	*r.calls = append(*r.calls, runCall{role: r.role, req: req, prior: cp})
	if r.fail != nil {
		return models.AgentOutput{}, r.fail
	}
	return models.AgentOutput{Role: r.role, Text: r.text}, nil
}

type memStore struct {
	runs     []sqlite.RunRecord
	sections [][]sqlite.SectionRecord
}

func (m *memStore) SaveRun(_ context.Context, run sqlite.RunRecord, secs []sqlite.SectionRecord) error {
	m.runs = append(m.runs, run)
	m.sections = append(m.sections, secs)
	return nil
}

func crewOf(calls *[]runCall, failAt models.Role, failErr error) RunnerSource {
	runners := make([]RoleRunner, 0, 4)
	for _, role := range models.Roles() {
		r := &scriptedRunner{role: role, text: role.Display() + " findings", calls: calls}
		if failErr != nil && role == failAt {
			r.fail = failErr
		}
		runners = append(runners, r)
	}
	return func(context.Context) ([]RoleRunner, error) { return runners, nil }
}

func TestExecuteRunsRolesInOrder(t *testing.T) {
	var calls []runCall
	p := New(crewOf(&calls, 0, nil), nil)

	report, err := p.Execute(context.Background(), models.DefaultRequest())
	require.NoError(t, err)
	require.NotNil(t, report)

	require.Len(t, calls, 4)
	for i, role := range models.Roles() {
		assert.Equal(t, role, calls[i].role)
		assert.Len(t, calls[i].prior, i, "role %s should see %d earlier sections", role, i)
	}

	require.Len(t, report.Sections, 4)
	assert.Equal(t, models.RoleDataAnalyst, report.Sections[0].Role)
	assert.Equal(t, models.RoleRiskAdvisor, report.Sections[3].Role)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestExecutePassesPriorSectionsVerbatim(t *testing.T) {
	var calls []runCall
	p := New(crewOf(&calls, 0, nil), nil)

	_, err := p.Execute(context.Background(), models.DefaultRequest())
	require.NoError(t, err)

	last := calls[3]
	require.Len(t, last.prior, 3)
	assert.Equal(t, "Data Analyst findings", last.prior[0].Text)
	assert.Equal(t, "Trading Strategy Developer findings", last.prior[1].Text)
	assert.Equal(t, "Trade Advisor findings", last.prior[2].Text)
}

func TestExecuteNormalizesRequest(t *testing.T) {
	var calls []runCall
	p := New(crewOf(&calls, 0, nil), nil)

	req := models.DefaultRequest()
	req.Symbol = "nvda"
	req.RiskTolerance = "high"

	_, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", calls[0].req.Symbol)
	assert.Equal(t, "High", calls[0].req.RiskTolerance)
}

func TestExecuteLooseInputEndToEnd(t *testing.T) {
	var calls []runCall
	p := New(crewOf(&calls, 0, nil), nil)

	req := models.TradingRequest{
		Symbol:             "aapl",
		InitialCapital:     decimal.NewFromInt(10000),
		StrategyPreference: "swing",
		RiskTolerance:      "medium",
		ConsiderNews:       true,
	}

	report, err := p.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", report.Request.Symbol)
	assert.Equal(t, "Swing Trading", report.Request.StrategyPreference)
	assert.Equal(t, "Medium", report.Request.RiskTolerance)

	require.Len(t, report.Sections, 4)
	for i, role := range models.Roles() {
		assert.Equal(t, role, report.Sections[i].Role)
		assert.NotEmpty(t, report.Sections[i].Text)
	}
}

func TestExecuteRejectsInvalidRequest(t *testing.T) {
	var calls []runCall
	p := New(crewOf(&calls, 0, nil), nil)

	req := models.DefaultRequest()
	req.Symbol = ""

	_, err := p.Execute(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Empty(t, calls, "no role should run for an invalid request")
}

func TestExecuteAbortsOnGenerationFailure(t *testing.T) {
	var calls []runCall
	failErr := errors.GenerationFailed(models.RoleTradeAdvisor.Display(), errors.New("model returned an empty section"))
	store := &memStore{}
	p := New(crewOf(&calls, models.RoleTradeAdvisor, failErr), store)

	report, err := p.Execute(context.Background(), models.DefaultRequest())
	require.Error(t, err)
	assert.Nil(t, report, "a failed run must not yield a partial report")
	assert.Len(t, calls, 3, "roles after the failure must not run")

	var genErr *errors.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "Trade Advisor", genErr.Role)

	require.Len(t, store.runs, 1)
	assert.Equal(t, sqlite.StatusFailed, store.runs[0].Status)
	assert.Equal(t, "Trade Advisor", store.runs[0].FailedRole)
	assert.Len(t, store.sections[0], 2, "completed sections are kept for inspection")
}

func TestExecuteSavesCompletedRun(t *testing.T) {
	var calls []runCall
	store := &memStore{}
	p := New(crewOf(&calls, 0, nil), store)

	report, err := p.Execute(context.Background(), models.DefaultRequest())
	require.NoError(t, err)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, report.RunID, run.ID)
	assert.Equal(t, sqlite.StatusCompleted, run.Status)
	assert.Equal(t, "AAPL", run.Symbol)
	assert.Equal(t, report.Markdown, run.Markdown)

	secs := store.sections[0]
	require.Len(t, secs, 4)
	assert.Equal(t, 1, secs[0].Seq)
	assert.Equal(t, "data_analyst", secs[0].Role)
	assert.Equal(t, "[]", secs[0].ToolCalls)
}

func TestExecuteStopsOnCanceledContext(t *testing.T) {
	var calls []runCall
	p := New(crewOf(&calls, 0, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Execute(ctx, models.DefaultRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, calls)
}

func TestBuildReportMarkdown(t *testing.T) {
	req := models.DefaultRequest()
	sections := []models.AgentOutput{
		{Role: models.RoleDataAnalyst, Text: "Momentum is strong.", ToolCalls: []models.ToolCall{
			{Tool: "web_search", Query: "AAPL stock news", Result: "headline roundup"},
		}},
		{Role: models.RoleStrategyDeveloper, Text: "Buy pullbacks."},
		{Role: models.RoleTradeAdvisor, Text: "Use limit orders."},
		{Role: models.RoleRiskAdvisor, Text: "Size positions at 2%."},
	}
	started := time.Now().Add(-time.Minute)
	report := BuildReport("run-x", req, sections, started, time.Now())

	md := report.Markdown
	assert.True(t, strings.HasPrefix(md, "# Trading Analysis: AAPL"))
	assert.Contains(t, md, "- Initial capital: 100000 USD")
	assert.Contains(t, md, "- Risk tolerance: Medium")

	daIdx := strings.Index(md, "## Data Analyst")
	sdIdx := strings.Index(md, "## Trading Strategy Developer")
	taIdx := strings.Index(md, "## Trade Advisor")
	raIdx := strings.Index(md, "## Risk Advisor")
	require.True(t, daIdx >= 0 && sdIdx > daIdx && taIdx > sdIdx && raIdx > taIdx,
		"sections must appear in hand-off order")

	assert.Contains(t, md, "Momentum is strong.")
	assert.Contains(t, md, "## Tool Activity")
	assert.Contains(t, md, "`web_search` AAPL stock news")
}
