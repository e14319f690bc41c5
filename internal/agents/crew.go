package agents

import (
	"context"

	"tradecrew/internal/config"
	"tradecrew/internal/llm"
	"tradecrew/internal/models"
	"tradecrew/internal/pipeline"
	"tradecrew/internal/tools"
)

// Crew builds the four role agents for a run: Data Analyst, Trading Strategy
// Developer, Trade Advisor, Risk Advisor.
type Crew struct {
	cfg      *config.Config
	settings func() config.Settings
	toolbox  *tools.Toolbox
}

func NewCrew(cfg *config.Config, settings func() config.Settings, toolbox *tools.Toolbox) *Crew {
	if settings == nil {
		settings = config.Static(config.DefaultSettings(cfg))
	}
	return &Crew{cfg: cfg, settings: settings, toolbox: toolbox}
}

// Runners constructs a fresh chat model and one agent per role. The model is
// built per run so settings edits apply without a restart.
func (c *Crew) Runners(ctx context.Context) ([]pipeline.RoleRunner, error) {
	snap := c.settings()
	chatModel, err := llm.NewChatModel(ctx, c.cfg, snap)
	if err != nil {
		return nil, err
	}

	runners := make([]pipeline.RoleRunner, 0, len(models.Roles()))
	for _, role := range models.Roles() {
		runners = append(runners, NewAgent(role, chatModel, c.toolbox, snap.MaxToolSteps))
	}
	return runners, nil
}
