package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/api/apierror"
	"github.com/spigell/vacancy-matcher/internal/pipeline"
	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

type page[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func newPage[T any](items []T, limit, offset int) page[T] {
	if items == nil {
		items = []T{}
	}
	return page[T]{Items: items, Limit: limit, Offset: offset}
}

func badRequest(c *gin.Context, err error) { apierror.Abort(c, apierror.BadRequest(err)) }

func notFound(c *gin.Context, err error) { apierror.Abort(c, apierror.NotFound(err)) }

// storeError maps store errors to the envelope.
func storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		notFound(c, err)
		return
	}
	apierror.Abort(c, apierror.Internal(err))
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func listOptions(c *gin.Context) (store.ListOptions, error) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		return store.ListOptions{}, err
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		return store.ListOptions{}, err
	}
	return store.ListOptions{Limit: limit, Offset: offset}.Normalize(), nil
}

func (s *Server) listVacancies(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if status := c.Query("status"); status != "" {
		if !vacancy.IsValidStatus(status) {
			badRequest(c, fmt.Errorf("unknown vacancy status %q", status))
			return
		}
		opts.Status = status
	}

	items, err := s.deps.Store.ListVacancies(c.Request.Context(), opts)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(items, opts.Limit, opts.Offset))
}

func (s *Server) getVacancy(c *gin.Context) {
	v, err := s.deps.Store.GetVacancy(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) updateVacancy(c *gin.Context) {
	var patch vacancy.VacancyPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	if err := patch.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	v, err := s.deps.Store.UpdateVacancy(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) vacancyMatches(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := s.deps.Store.GetVacancy(ctx, c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}

	filter := store.MatchFilter{VacancyID: v.ID}.Normalize()
	matches, err := s.deps.Store.ListMatches(ctx, filter)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(matches, filter.Limit, filter.Offset))
}

func (s *Server) listResumes(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, fmt.Errorf("active must be a boolean"))
			return
		}
		opts.ActiveOnly = active
	}

	items, err := s.deps.Store.ListResumes(c.Request.Context(), opts)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(items, opts.Limit, opts.Offset))
}

func (s *Server) getResume(c *gin.Context) {
	r, err := s.deps.Store.GetResume(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type createResumeRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Text   string `json:"text"`
	Active *bool  `json:"active"`
}

func (s *Server) createResume(c *gin.Context) {
	var req createResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(c, errors.New("text is required"))
		return
	}

	r := &vacancy.Resume{
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.TrimSpace(req.Email),
		Text:   req.Text,
		Active: req.Active == nil || *req.Active,
	}

	ctx := c.Request.Context()
	if s.deps.Embedder != nil {
		embedding, err := s.deps.Embedder.EmbedText(ctx, r.EmbeddingText())
		if err != nil {
			apierror.Abort(c, apierror.Unavailable(fmt.Errorf("embedding resume: %w", err)))
			return
		}
		r.Embedding = embedding
	}

	saved, err := s.deps.Store.SaveResume(ctx, r)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) updateResume(c *gin.Context) {
	var patch vacancy.ResumePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	if err := patch.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	existing, err := s.deps.Store.GetResume(ctx, id)
	if err != nil {
		storeError(c, err)
		return
	}

	updated, err := s.deps.Store.UpdateResume(ctx, id, patch)
	if err != nil {
		storeError(c, err)
		return
	}

	if patch.TextChanged(existing) && s.deps.Embedder != nil {
		embedding, err := s.deps.Embedder.EmbedText(ctx, updated.EmbeddingText())
		if err == nil {
			err = s.deps.Store.SetResumeEmbedding(ctx, id, embedding)
		}
		if err != nil {
			// The next run embeds résumés that have no vector.
			s.logger.Warn("re-embedding resume failed", zap.String("resume_id", id), zap.Error(err))
		} else {
			updated.Embedding = embedding
		}
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) listMatches(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	filter := store.MatchFilter{
		VacancyID: c.Query("vacancy_id"),
		ResumeID:  c.Query("resume_id"),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	}
	if status := c.Query("status"); status != "" {
		if !vacancy.IsValidMatchStatus(status) {
			badRequest(c, fmt.Errorf("unknown match status %q", status))
			return
		}
		filter.Status = status
	}
	if raw := c.Query("min_score"); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil || score < 0 || score > 1 {
			badRequest(c, errors.New("min_score must be a number within [0,1]"))
			return
		}
		filter.MinScore = score
	}
	if raw := c.Query("fit"); raw != "" {
		fit, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, errors.New("fit must be a boolean"))
			return
		}
		filter.FitOnly = fit
	}

	matches, err := s.deps.Store.ListMatches(c.Request.Context(), filter)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(matches, filter.Limit, filter.Offset))
}

func (s *Server) updateMatch(c *gin.Context) {
	var patch vacancy.MatchPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	if err := patch.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	m, err := s.deps.Store.UpdateMatch(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type runRequest struct {
	DryRun    bool `json:"dry_run"`
	SkipMatch bool `json:"skip_match"`
}

func (s *Server) startRun(c *gin.Context) {
	if s.deps.Runner == nil {
		apierror.Abort(c, apierror.Unavailable(errors.New("runs are not enabled on this server")))
		return
	}

	var req runRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	err := s.deps.Runner.Start(s.baseCtx, pipeline.Options{DryRun: req.DryRun, SkipMatch: req.SkipMatch})
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		apierror.Abort(c, apierror.Conflict(err))
		return
	}
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "dry_run": req.DryRun, "skip_match": req.SkipMatch})
}

func (s *Server) lastRun(c *gin.Context) {
	if s.deps.Runner == nil {
		apierror.Abort(c, apierror.Unavailable(errors.New("runs are not enabled on this server")))
		return
	}
	summary, ok := s.deps.Runner.Last()
	if !ok {
		notFound(c, errors.New("no run has finished yet"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": s.deps.Runner.Running(), "last": summary})
}
