package board

import (
	"context"
	"sync"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const stubKey = "stub"

// Details fetches the detail page of every stub concurrently. Results keep the
// stub order; pages that fail after retries are counted and left out.
func (c *Client) Details(ctx context.Context, stubs []*vacancy.Vacancy) ([]*vacancy.Vacancy, int, error) {
	col, err := c.collector(ctx, true)
	if err != nil {
		return nil, 0, err
	}

	var (
		mu       sync.Mutex
		results  = make(map[string]*vacancy.Vacancy, len(stubs))
		attempts = make(map[string]int, len(stubs))
		failed   int
	)
	byKey := make(map[string]*vacancy.Vacancy, len(stubs))
	for _, stub := range stubs {
		byKey[utils.NormalizeURL(stub.URL)] = stub
	}

	col.OnHTML("html", func(e *colly.HTMLElement) {
		key := e.Request.Ctx.Get(stubKey)
		stub, ok := byKey[key]
		if !ok {
			return
		}
		v := ParseDetail(e.DOM, stub, c.cfg.Detail, c.markdown, c.cfg.Name, c.now())

		mu.Lock()
		results[key] = v
		mu.Unlock()
	})

	col.OnError(func(r *colly.Response, err error) {
		key := r.Request.Ctx.Get(stubKey)
		log := logger.WithFields(c.logger, zap.String(logger.FieldVacancyURL, r.Request.URL.String()))

		mu.Lock()
		attempts[key]++
		attempt := attempts[key]
		mu.Unlock()

		if isTimeout(err) && attempt < pageRetries && ctx.Err() == nil {
			log.Warn("detail page timed out, retrying", zap.Int("attempt", attempt), zap.Error(err))
			if retryErr := r.Request.Retry(); retryErr == nil {
				return
			}
		}

		log.Warn("detail page failed", zap.Int("status", r.StatusCode), zap.Error(err))
		mu.Lock()
		failed++
		mu.Unlock()
	})

	for _, stub := range stubs {
		reqCtx := colly.NewContext()
		reqCtx.Put(stubKey, utils.NormalizeURL(stub.URL))
		if err := col.Request("GET", stub.URL, nil, reqCtx, nil); err != nil {
			logger.WithFields(c.logger, zap.String(logger.FieldVacancyURL, stub.URL)).
				Warn("detail page not requested", zap.Error(err))
			mu.Lock()
			failed++
			mu.Unlock()
		}
	}
	col.Wait()

	if err := ctx.Err(); err != nil {
		return nil, failed, err
	}

	vacancies := make([]*vacancy.Vacancy, 0, len(results))
	for _, stub := range stubs {
		if v, ok := results[utils.NormalizeURL(stub.URL)]; ok {
			vacancies = append(vacancies, v)
		}
	}
	c.logger.Info("detail pages fetched", zap.Int("ok", len(vacancies)), zap.Int("failed", failed))
	return vacancies, failed, nil
}
