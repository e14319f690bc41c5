package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradecrew/internal/models"
	"tradecrew/pkg/errors"
)

const runsPageSize = 50

// analyzeForm carries raw form values so a failed submission re-renders
// with whatever the user typed.
type analyzeForm struct {
	Symbol             string
	InitialCapital     string
	StrategyPreference string
	RiskTolerance      string
	ConsiderNews       bool
}

func defaultForm() analyzeForm {
	req := models.DefaultRequest()
	return analyzeForm{
		Symbol:             req.Symbol,
		InitialCapital:     req.InitialCapital.String(),
		StrategyPreference: req.StrategyPreference,
		RiskTolerance:      req.RiskTolerance,
		ConsiderNews:       req.ConsiderNews,
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	s.renderForm(c, http.StatusOK, defaultForm(), "")
}

func (s *Server) renderForm(c *gin.Context, status int, form analyzeForm, errMsg string) {
	c.HTML(status, "index.html", gin.H{
		"Form":            form,
		"StrategyOptions": models.StrategyOptions,
		"RiskLevels":      models.RiskLevels,
		"Error":           errMsg,
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	form := analyzeForm{
		Symbol:             strings.TrimSpace(c.PostForm("symbol")),
		InitialCapital:     strings.TrimSpace(c.PostForm("initial_capital")),
		StrategyPreference: c.PostForm("strategy_preference"),
		RiskTolerance:      c.PostForm("risk_tolerance"),
		ConsiderNews:       c.PostForm("consider_news") != "",
	}

	capital, err := decimal.NewFromString(form.InitialCapital)
	if err != nil {
		s.renderForm(c, http.StatusBadRequest, form, "Initial capital must be a number.")
		return
	}

	req := models.TradingRequest{
		Symbol:             form.Symbol,
		InitialCapital:     capital,
		StrategyPreference: form.StrategyPreference,
		RiskTolerance:      form.RiskTolerance,
		ConsiderNews:       form.ConsiderNews,
	}

	report, err := s.analyzer.Execute(c.Request.Context(), req)
	if err != nil {
		s.renderAnalyzeError(c, form, err)
		return
	}

	c.HTML(http.StatusOK, "report.html", gin.H{
		"Banner": "Analysis complete!",
		"Report": report,
	})
}

func (s *Server) renderAnalyzeError(c *gin.Context, form analyzeForm, err error) {
	if errors.Is(err, errors.ErrInvalidInput) {
		s.renderForm(c, http.StatusBadRequest, form, err.Error())
		return
	}

	var genErr *errors.GenerationError
	if errors.As(err, &genErr) {
		c.HTML(http.StatusBadGateway, "error.html", gin.H{
			"Title":   "Analysis failed",
			"Message": fmt.Sprintf("The %s could not produce its section, so no report was generated.", genErr.Role),
			"Detail":  err.Error(),
		})
		return
	}

	c.HTML(http.StatusInternalServerError, "error.html", gin.H{
		"Title":   "Analysis failed",
		"Message": "An unexpected error stopped the run.",
		"Detail":  err.Error(),
	})
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.runs == nil {
		c.HTML(http.StatusOK, "runs.html", gin.H{"Disabled": true})
		return
	}

	cursor, _ := strconv.ParseInt(c.Query("cursor"), 10, 64)
	runs, err := s.runs.ListRuns(c.Request.Context(), cursor, runsPageSize)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "History unavailable",
			"Message": "Could not load past runs.",
			"Detail":  err.Error(),
		})
		return
	}

	var next int64
	if len(runs) == runsPageSize {
		next = runs[len(runs)-1].RowID
	}
	c.HTML(http.StatusOK, "runs.html", gin.H{"Runs": runs, "Next": next})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, sections, ok := s.loadRun(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "run.html", gin.H{"Run": run, "Sections": sections})
}

func (s *Server) handleRunMarkdown(c *gin.Context) {
	run, _, ok := s.loadRun(c)
	if !ok {
		return
	}
	name := fmt.Sprintf("%s-%s.md", run.Symbol, shortID(run.ID))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(run.Markdown))
}

func (s *Server) loadRun(c *gin.Context) (*runView, []sectionView, bool) {
	if s.runs == nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"Title":   "Run not found",
			"Message": "Run history is disabled.",
		})
		return nil, nil, false
	}

	id := c.Param("id")
	run, err := s.runs.GetRun(c.Request.Context(), id)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "History unavailable",
			"Message": "Could not load the run.",
			"Detail":  err.Error(),
		})
		return nil, nil, false
	}
	if run == nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"Title":   "Run not found",
			"Message": fmt.Sprintf("No run with id %s.", id),
		})
		return nil, nil, false
	}

	secs, err := s.runs.ListSections(c.Request.Context(), id)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "History unavailable",
			"Message": "Could not load the run's sections.",
			"Detail":  err.Error(),
		})
		return nil, nil, false
	}

	views := make([]sectionView, 0, len(secs))
	for _, sec := range secs {
		views = append(views, sectionView{
			Role:        sec.Role,
			RoleDisplay: roleDisplay(sec.Role),
			Content:     sec.Content,
			ToolCalls:   json.RawMessage(sec.ToolCalls),
		})
	}

	view := runView{
		ID:                 run.ID,
		Symbol:             run.Symbol,
		InitialCapital:     run.InitialCapital,
		StrategyPreference: run.StrategyPreference,
		RiskTolerance:      run.RiskTolerance,
		ConsiderNews:       run.ConsiderNews,
		Status:             run.Status,
		FailedRole:         run.FailedRole,
		Error:              run.Error,
		Markdown:           run.Markdown,
		StartedAt:          run.StartedAt,
		FinishedAt:         run.FinishedAt,
	}
	return &view, views, true
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type runView struct {
	ID                 string    `json:"id"`
	Symbol             string    `json:"symbol"`
	InitialCapital     string    `json:"initial_capital"`
	StrategyPreference string    `json:"strategy_preference"`
	RiskTolerance      string    `json:"risk_tolerance"`
	ConsiderNews       bool      `json:"consider_news"`
	Status             string    `json:"status"`
	FailedRole         string    `json:"failed_role,omitempty"`
	Error              string    `json:"error,omitempty"`
	Markdown           string    `json:"markdown,omitempty"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
}

type sectionView struct {
	Role        string          `json:"role"`
	RoleDisplay string          `json:"role_display"`
	Content     string          `json:"content"`
	ToolCalls   json.RawMessage `json:"tool_calls_made"`
}

func (s *Server) handleAPIRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []runView{}})
		return
	}

	cursor, _ := strconv.ParseInt(c.Query("cursor"), 10, 64)
	runs, err := s.runs.ListRuns(c.Request.Context(), cursor, runsPageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView{
			ID:                 run.ID,
			Symbol:             run.Symbol,
			InitialCapital:     run.InitialCapital,
			StrategyPreference: run.StrategyPreference,
			RiskTolerance:      run.RiskTolerance,
			ConsiderNews:       run.ConsiderNews,
			Status:             run.Status,
			FailedRole:         run.FailedRole,
			Error:              run.Error,
			StartedAt:          run.StartedAt,
			FinishedAt:         run.FinishedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": views})
}

func (s *Server) handleAPIRunDetail(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run history is disabled"})
		return
	}

	id := c.Param("id")
	run, err := s.runs.GetRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	secs, err := s.runs.ListSections(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]sectionView, 0, len(secs))
	for _, sec := range secs {
		views = append(views, sectionView{
			Role:        sec.Role,
			RoleDisplay: roleDisplay(sec.Role),
			Content:     sec.Content,
			ToolCalls:   json.RawMessage(sec.ToolCalls),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"run": runView{
			ID:                 run.ID,
			Symbol:             run.Symbol,
			InitialCapital:     run.InitialCapital,
			StrategyPreference: run.StrategyPreference,
			RiskTolerance:      run.RiskTolerance,
			ConsiderNews:       run.ConsiderNews,
			Status:             run.Status,
			FailedRole:         run.FailedRole,
			Error:              run.Error,
			Markdown:           run.Markdown,
			StartedAt:          run.StartedAt,
			FinishedAt:         run.FinishedAt,
		},
		"sections": views,
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
