package board

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

// Listings walks up to MaxPages listing pages and returns posting stubs in
// page order without duplicates.
func (c *Client) Listings(ctx context.Context) ([]*vacancy.Vacancy, error) {
	all := &vacancy.Vacancies{}
	visited := make(map[string]struct{})
	pageURL := c.cfg.ListingURL

	for page := 1; page <= c.cfg.MaxPages && pageURL != ""; page++ {
		if _, ok := visited[pageURL]; ok {
			break
		}
		visited[pageURL] = struct{}{}

		html, err := c.listingHTML(ctx, pageURL)
		if err != nil {
			return nil, wrapPage("fetching listing", pageURL, err)
		}

		base, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("parsing listing url %q: %w", pageURL, err)
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, wrapPage("parsing listing", pageURL, err)
		}

		stubs, next := ParseListing(doc.Selection, base, c.cfg.Listing)
		c.logger.Debug("listing page parsed",
			zap.Int("page", page),
			zap.Int("postings", len(stubs)),
			zap.String("next", next),
		)
		all.Items = append(all.Items, stubs...)
		pageURL = next
	}

	if dropped := all.Dedupe(); len(dropped) > 0 {
		c.logger.Debug("duplicate postings dropped", zap.Int("count", len(dropped)))
	}
	return all.Items, nil
}

func (c *Client) listingHTML(ctx context.Context, pageURL string) (string, error) {
	var html string
	err := c.retry(ctx, pageURL, func(ctx context.Context) error {
		var err error
		if b, _ := c.session(); b != nil {
			html, err = c.render(ctx, b, pageURL)
		} else {
			html, err = c.fetchHTML(ctx, pageURL)
		}
		return err
	})
	return html, err
}

// fetchHTML downloads a single page with colly.
func (c *Client) fetchHTML(ctx context.Context, pageURL string) (string, error) {
	col, err := c.collector(ctx, false)
	if err != nil {
		return "", err
	}

	var body string
	var fetchErr error
	col.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})
	col.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		logger.WithFields(c.logger, zap.String(logger.FieldVacancyURL, pageURL)).
			Debug("listing request failed", zap.Int("status", r.StatusCode), zap.Error(err))
	})

	if err := col.Visit(pageURL); err != nil {
		return "", err
	}
	col.Wait()
	if fetchErr != nil {
		return "", fetchErr
	}
	return body, nil
}

// collector builds a colly collector bound to ctx that carries the browser
// session cookies, if any.
func (c *Client) collector(ctx context.Context, async bool) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.Async(async),
	}
	if c.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(c.cfg.UserAgent))
	}
	if len(c.cfg.AllowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(c.cfg.AllowedDomains...))
	}

	col := colly.NewCollector(opts...)
	col.SetRequestTimeout(c.cfg.PageTimeout)
	if err := col.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: c.cfg.Parallelism}); err != nil {
		return nil, fmt.Errorf("configuring collector: %w", err)
	}

	if _, cookies := c.session(); len(cookies) > 0 {
		if err := col.SetCookies(c.cfg.ListingURL, httpCookies(cookies)); err != nil {
			return nil, fmt.Errorf("setting session cookies: %w", err)
		}
	}
	return col, nil
}
