package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tradecrew/internal/models"
	"tradecrew/internal/storage/sqlite"
	"tradecrew/pkg/errors"
	"tradecrew/pkg/logger"
)

// RoleRunner produces one section of the analysis.
type RoleRunner interface {
	Role() models.Role
	Run(ctx context.Context, req models.TradingRequest, prior []models.AgentOutput) (models.AgentOutput, error)
}

// RunnerSource builds a fresh set of runners, in hand-off order, for each
// run. Building per run keeps runs independent and picks up settings changes
// between them.
type RunnerSource func(ctx context.Context) ([]RoleRunner, error)

// RunStore persists finished runs. Saves are best effort: a storage failure
// is logged, never surfaced to the caller.
type RunStore interface {
	SaveRun(ctx context.Context, run sqlite.RunRecord, sections []sqlite.SectionRecord) error
}

type Pipeline struct {
	source RunnerSource
	store  RunStore
	log    *logger.Logger
}

// New wires a pipeline. store may be nil when persistence is disabled.
func New(source RunnerSource, store RunStore) *Pipeline {
	return &Pipeline{
		source: source,
		store:  store,
		log:    logger.Get().With("component", "pipeline"),
	}
}

// Execute runs the crew over the request, one role at a time in a fixed
// order. Each role receives every earlier section. The first failure aborts
// the run: no partial report is ever returned.
func (p *Pipeline) Execute(ctx context.Context, req models.TradingRequest) (*models.Report, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	log := p.log.With("run_id", runID, "symbol", req.Symbol)

	runners, err := p.source(ctx)
	if err != nil {
		return nil, err
	}

	log.Infof("starting analysis run")

	outputs := make([]models.AgentOutput, 0, len(runners))
	for _, r := range runners {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := r.Run(ctx, req, outputs)
		if err != nil {
			log.Errorf("run aborted at %s: %v", r.Role().Display(), err)
			p.saveFailure(ctx, runID, req, outputs, startedAt, err)
			return nil, err
		}
		outputs = append(outputs, out)
	}

	report := BuildReport(runID, req, outputs, startedAt, time.Now())
	p.saveReport(ctx, report)
	log.Infof("analysis run finished in %s", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return report, nil
}

func (p *Pipeline) saveReport(ctx context.Context, report *models.Report) {
	if p.store == nil {
		return
	}
	run := sqlite.RunRecord{
		ID:                 report.RunID,
		Symbol:             report.Request.Symbol,
		InitialCapital:     report.Request.InitialCapital.String(),
		StrategyPreference: report.Request.StrategyPreference,
		RiskTolerance:      report.Request.RiskTolerance,
		ConsiderNews:       report.Request.ConsiderNews,
		Status:             sqlite.StatusCompleted,
		Markdown:           report.Markdown,
		StartedAt:          report.StartedAt,
		FinishedAt:         report.FinishedAt,
	}
	if err := p.store.SaveRun(ctx, run, sectionRecords(report.RunID, report.Sections)); err != nil {
		p.log.Warnf("save run %s: %v", report.RunID, err)
	}
}

func (p *Pipeline) saveFailure(ctx context.Context, runID string, req models.TradingRequest, done []models.AgentOutput, startedAt time.Time, runErr error) {
	if p.store == nil {
		return
	}
	run := sqlite.RunRecord{
		ID:                 runID,
		Symbol:             req.Symbol,
		InitialCapital:     req.InitialCapital.String(),
		StrategyPreference: req.StrategyPreference,
		RiskTolerance:      req.RiskTolerance,
		ConsiderNews:       req.ConsiderNews,
		Status:             sqlite.StatusFailed,
		Error:              runErr.Error(),
		StartedAt:          startedAt,
		FinishedAt:         time.Now(),
	}
	var genErr *errors.GenerationError
	if errors.As(runErr, &genErr) {
		run.FailedRole = genErr.Role
	}
	if err := p.store.SaveRun(ctx, run, sectionRecords(runID, done)); err != nil {
		p.log.Warnf("save failed run %s: %v", runID, err)
	}
}

func sectionRecords(runID string, sections []models.AgentOutput) []sqlite.SectionRecord {
	recs := make([]sqlite.SectionRecord, 0, len(sections))
	for i, sec := range sections {
		calls := "[]"
		if raw, err := json.Marshal(sec.ToolCalls); err == nil && sec.ToolCalls != nil {
			calls = string(raw)
		}
		recs = append(recs, sqlite.SectionRecord{
			RunID:     runID,
			Seq:       i + 1,
			Role:      sec.Role.String(),
			Content:   sec.Text,
			ToolCalls: calls,
		})
	}
	return recs
}
