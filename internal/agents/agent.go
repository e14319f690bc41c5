package agents

import (
	"context"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"tradecrew/internal/models"
	"tradecrew/internal/tools"
	"tradecrew/pkg/errors"
	"tradecrew/pkg/logger"
)

const defaultMaxStep = 40

// Agent runs a single role's turn of the analysis. Each turn gets its own
// react loop and tool-call recorder, so concurrent runs never share state.
type Agent struct {
	role      models.Role
	chatModel model.ToolCallingChatModel
	toolbox   *tools.Toolbox
	maxStep   int
	log       *logger.Logger
}

func NewAgent(role models.Role, chatModel model.ToolCallingChatModel, toolbox *tools.Toolbox, maxStep int) *Agent {
	if maxStep <= 0 {
		maxStep = defaultMaxStep
	}
	return &Agent{
		role:      role,
		chatModel: chatModel,
		toolbox:   toolbox,
		maxStep:   maxStep,
		log:       logger.Get().With("role", role.String()),
	}
}

func (a *Agent) Role() models.Role {
	return a.role
}

// Run produces this role's section. Any failure to generate is fatal for the
// run and carries the role's display name for the caller to surface.
func (a *Agent) Run(ctx context.Context, req models.TradingRequest, prior []models.AgentOutput) (models.AgentOutput, error) {
	rec := tools.NewRecorder()

	ragent, err := react.NewAgent(ctx, &react.AgentConfig{
		MaxStep:          a.maxStep,
		ToolCallingModel: a.chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: a.toolbox.ForRun(rec),
		},
		StreamToolCallChecker: toolCallChecker,
	})
	if err != nil {
		return models.AgentOutput{}, errors.GenerationFailed(a.role.Display(), errors.Wrap(err, "create agent"))
	}

	msgs, err := buildMessages(ctx, a.role, req, prior)
	if err != nil {
		return models.AgentOutput{}, errors.GenerationFailed(a.role.Display(), err)
	}

	a.log.Infof("running %s turn for %s", a.role.Display(), req.Symbol)
	out, err := ragent.Generate(ctx, msgs)
	if err != nil {
		return models.AgentOutput{}, errors.GenerationFailed(a.role.Display(), err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return models.AgentOutput{}, errors.GenerationFailed(a.role.Display(), errors.New("model returned an empty section"))
	}

	calls := rec.Calls()
	a.log.Infof("%s finished with %d tool calls", a.role.Display(), len(calls))

	return models.AgentOutput{
		Role:      a.role,
		Text:      out.Content,
		ToolCalls: calls,
	}, nil
}

// toolCallChecker reports whether a streamed response opens with tool calls.
// Some providers emit an empty first chunk, so it scans until one shows up
// or the stream ends.
func toolCallChecker(_ context.Context, sr *schema.StreamReader[*schema.Message]) (bool, error) {
	defer sr.Close()
	for {
		msg, err := sr.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		if len(msg.ToolCalls) > 0 {
			return true, nil
		}
	}
}
