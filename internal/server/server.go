package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradecrew/internal/models"
	"tradecrew/internal/storage/sqlite"
	"tradecrew/pkg/logger"
)

//go:embed templates
var templateFiles embed.FS

// Analyzer runs one full analysis for a request.
type Analyzer interface {
	Execute(ctx context.Context, req models.TradingRequest) (*models.Report, error)
}

// RunReader serves the history pages. May be nil when persistence is off.
type RunReader interface {
	ListRuns(ctx context.Context, cursor int64, limit int) ([]sqlite.RunWithMeta, error)
	GetRun(ctx context.Context, runID string) (*sqlite.RunWithMeta, error)
	ListSections(ctx context.Context, runID string) ([]sqlite.SectionWithMeta, error)
}

type Config struct {
	Addr     string
	Analyzer Analyzer
	Runs     RunReader
}

type Server struct {
	addr     string
	analyzer Analyzer
	runs     RunReader
	router   *gin.Engine
	log      *logger.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8814"
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"roleDisplay": roleDisplay,
	}).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.SetHTMLTemplate(tmpl)

	s := &Server{
		addr:     cfg.Addr,
		analyzer: cfg.Analyzer,
		runs:     cfg.Runs,
		router:   router,
		log:      logger.Get().With("component", "http"),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.POST("/analyze", s.handleAnalyze)
	s.router.GET("/runs", s.handleRuns)
	s.router.GET("/runs/:id", s.handleRunDetail)
	s.router.GET("/runs/:id/markdown", s.handleRunMarkdown)
	s.router.GET("/healthz", s.handleHealthz)

	api := s.router.Group("/api")
	api.GET("/runs", s.handleAPIRuns)
	api.GET("/runs/:id", s.handleAPIRunDetail)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	log := logger.Get().With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infof("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond))
	}
}

func roleDisplay(key string) string {
	if role, ok := models.ParseRole(key); ok {
		return role.Display()
	}
	return key
}
