// Package api exposes stored vacancies, résumés and matches over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/ai"
	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/pipeline"
	"github.com/spigell/vacancy-matcher/internal/secrets"
	"github.com/spigell/vacancy-matcher/internal/store"
)

const (
	DefaultListen   = ":8080"
	shutdownTimeout = 10 * time.Second
)

// Runner starts pipeline runs in the background.
type Runner interface {
	Start(ctx context.Context, opts pipeline.Options) error
	Running() bool
	Last() (pipeline.Summary, bool)
}

// finishNotifier is implemented by runners that report finished runs.
type finishNotifier interface {
	OnFinish(fn func(pipeline.Summary))
}

type Deps struct {
	Store store.Store
	// Embedder embeds résumé text on create and update. Optional.
	Embedder ai.Embedder
	// Runner is optional; run endpoints answer 503 without it.
	Runner Runner
	Logger *zap.Logger
}

// Server is the HTTP API over a Store.
type Server struct {
	deps    Deps
	listen  string
	engine  *gin.Engine
	cache   *responseCache
	logger  *zap.Logger
	baseCtx context.Context
}

// New builds the gin engine with middleware and routes.
func New(cfg *config.APIConfig, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg == nil {
		cfg = &config.APIConfig{}
	}

	password := ""
	if cfg.Username != "" {
		var err error
		password, err = secrets.Load(secrets.Source{Name: "api password", Value: cfg.Password, File: cfg.PasswordFile})
		if err != nil {
			return nil, err
		}
	}

	cache, err := newResponseCache(cfg.CacheTTL, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating response cache: %w", err)
	}

	listen := cfg.Listen
	if listen == "" {
		listen = DefaultListen
	}

	s := &Server{
		deps:    deps,
		listen:  listen,
		cache:   cache,
		logger:  logger.Named(deps.Logger, "api"),
		baseCtx: context.Background(),
	}

	engine := gin.New()
	engine.Use(
		requestID(),
		requestLogger(s.logger),
		recovery(),
		basicAuth(cfg.Username, password, "/health"),
		cache.middleware(),
	)
	engine.NoRoute(func(c *gin.Context) {
		notFound(c, errors.New("no such route"))
	})
	s.routes(engine)
	s.engine = engine

	// Runs write vacancies and matches behind the API's back.
	if n, ok := deps.Runner.(finishNotifier); ok {
		n.OnFinish(func(pipeline.Summary) { cache.clear() })
	}

	return s, nil
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.health)

	r.GET("/vacancies", s.listVacancies)
	r.GET("/vacancies/:id", s.getVacancy)
	r.PATCH("/vacancies/:id", s.updateVacancy)
	r.GET("/vacancies/:id/matches", s.vacancyMatches)

	r.GET("/resumes", s.listResumes)
	r.POST("/resumes", s.createResume)
	r.GET("/resumes/:id", s.getResume)
	r.PATCH("/resumes/:id", s.updateResume)

	r.GET("/matches", s.listMatches)
	r.PATCH("/matches/:id", s.updateMatch)

	r.POST("/runs", s.startRun)
	r.GET("/runs/last", s.lastRun)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	defer s.cache.close()

	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("listen", s.listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving api: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down api: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
