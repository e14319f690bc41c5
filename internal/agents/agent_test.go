package agents

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecrew/internal/dataflows"
	"tradecrew/internal/models"
	"tradecrew/internal/retry"
	"tradecrew/internal/tools"
	"tradecrew/pkg/errors"
)

// scriptedModel plays back canned replies, one per Generate call.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	errs    []error
	got     [][]*schema.Message
}

var _ model.ToolCallingChatModel = (*scriptedModel)(nil)

func (m *scriptedModel) Generate(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.got)
	m.got = append(m.got, msgs)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return nil, fmt.Errorf("unexpected generate call %d", i)
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported")
}

func (m *scriptedModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func testToolbox(t *testing.T) *tools.Toolbox {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"organic":[{"title":"Apple rallies","link":"https://example.com/a","snippet":"AAPL up 3%"}]}`)
	}))
	t.Cleanup(srv.Close)

	search := dataflows.NewSerperClient(dataflows.SerperConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Retry:   &retry.Config{MaxRetries: 1, BaseDelay: 1, MaxDelay: 1, Multiplier: 2},
	})
	return tools.NewToolbox(tools.ToolboxConfig{Search: search})
}

func TestAgentRunHappyPath(t *testing.T) {
	fake := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("The market looks stable with steady volume.", nil),
	}}
	agent := NewAgent(models.RoleDataAnalyst, fake, testToolbox(t), 0)

	out, err := agent.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.RoleDataAnalyst, out.Role)
	assert.Equal(t, "The market looks stable with steady volume.", out.Text)
	assert.Empty(t, out.ToolCalls)

	require.Len(t, fake.got, 1)
	msgs := fake.got[0]
	require.NotEmpty(t, msgs)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Data Analyst")
	assert.Contains(t, msgs[len(msgs)-1].Content, "NVDA")
}

func TestAgentRunRecordsToolCalls(t *testing.T) {
	toolCall := schema.ToolCall{
		ID: "call-1",
		Function: schema.FunctionCall{
			Name:      "web_search",
			Arguments: `{"query":"NVDA earnings news"}`,
		},
	}
	fake := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{toolCall}),
		schema.AssistantMessage("Earnings momentum supports a long bias.", nil),
	}}
	agent := NewAgent(models.RoleDataAnalyst, fake, testToolbox(t), 0)

	out, err := agent.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, "Earnings momentum supports a long bias.", out.Text)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "web_search", out.ToolCalls[0].Tool)
	assert.Equal(t, "NVDA earnings news", out.ToolCalls[0].Query)
	assert.Contains(t, out.ToolCalls[0].Result, "Apple rallies")
}

func TestAgentRunWrapsGenerateError(t *testing.T) {
	fake := &scriptedModel{errs: []error{fmt.Errorf("rate limited")}}
	agent := NewAgent(models.RoleStrategyDeveloper, fake, testToolbox(t), 0)

	_, err := agent.Run(context.Background(), testRequest(), nil)
	require.Error(t, err)

	var genErr *errors.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "Trading Strategy Developer", genErr.Role)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAgentRunRejectsEmptyOutput(t *testing.T) {
	fake := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("   \n", nil),
	}}
	agent := NewAgent(models.RoleRiskAdvisor, fake, testToolbox(t), 0)

	_, err := agent.Run(context.Background(), testRequest(), nil)
	require.Error(t, err)

	var genErr *errors.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "Risk Advisor", genErr.Role)
	assert.Contains(t, err.Error(), "empty section")
}

func TestAgentRunSeesPriorSections(t *testing.T) {
	fake := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("Execution plan ready.", nil),
	}}
	agent := NewAgent(models.RoleTradeAdvisor, fake, testToolbox(t), 0)

	prior := []models.AgentOutput{
		{Role: models.RoleDataAnalyst, Text: "Uptrend intact."},
		{Role: models.RoleStrategyDeveloper, Text: "Breakout entry at 130."},
	}
	_, err := agent.Run(context.Background(), testRequest(), prior)
	require.NoError(t, err)

	require.Len(t, fake.got, 1)
	joined := ""
	for _, msg := range fake.got[0] {
		joined += msg.Content + "\n"
	}
	assert.Contains(t, joined, "Uptrend intact.")
	assert.Contains(t, joined, "Breakout entry at 130.")
}
