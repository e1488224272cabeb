// Package board scrapes vacancy postings from a job board.
//
// A logged-in browser session (chromedp) is only started when a username is
// configured; otherwise listing pages are fetched with colly. Detail pages are
// always fetched with colly, reusing the session cookies.
package board

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/secrets"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const (
	defaultPageTimeout = 30 * time.Second
	defaultParallelism = 4
	pageRetries        = 3
)

// ScrapeResult summarises one scrape.
type ScrapeResult struct {
	Vacancies []*vacancy.Vacancy
	// Skipped counts listing entries already known to the store.
	Skipped int
	// Failed counts detail pages that could not be fetched.
	Failed int
}

type Client struct {
	cfg      config.BoardConfig
	password string
	logger   *zap.Logger
	markdown *markdownConverter
	now      func() time.Time
	// render loads a listing page in the browser session.
	render func(ctx context.Context, b *browser, pageURL string) (string, error)

	mu      sync.Mutex
	browser *browser
	cookies []*network.Cookie
}

func New(cfg *config.BoardConfig, log *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("board config is required")
	}
	if strings.TrimSpace(cfg.ListingURL) == "" {
		return nil, errors.New("board listing url is required")
	}

	c := *cfg
	if c.PageTimeout <= 0 {
		c.PageTimeout = defaultPageTimeout
	}
	if c.Parallelism <= 0 {
		c.Parallelism = defaultParallelism
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 1
	}

	password := ""
	if c.Username != "" {
		var err error
		password, err = secrets.Load(secrets.Source{Name: "board password", Value: c.Password, File: c.PasswordFile})
		if err != nil {
			return nil, err
		}
	}

	client := &Client{
		cfg:      c,
		password: password,
		logger:   logger.Named(log, "board").With(zap.String("board", c.Name)),
		markdown: newMarkdownConverter(),
		now:      time.Now,
	}
	client.render = client.browserHTML
	return client, nil
}

// Scrape logs in when credentials are configured, walks the listing pages,
// drops postings whose normalized URL is in known and fetches the rest.
func (c *Client) Scrape(ctx context.Context, known map[string]struct{}) (*ScrapeResult, error) {
	if c.cfg.Username != "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	stubs, err := c.Listings(ctx)
	if err != nil {
		return nil, err
	}

	result := &ScrapeResult{}
	fresh := make([]*vacancy.Vacancy, 0, len(stubs))
	for _, stub := range stubs {
		if _, ok := known[utils.NormalizeURL(stub.URL)]; ok {
			result.Skipped++
			continue
		}
		fresh = append(fresh, stub)
	}

	if limit := c.cfg.MaxPostings; limit > 0 && len(fresh) > limit {
		c.logger.Info("capping postings", zap.Int("found", len(fresh)), zap.Int("max", limit))
		fresh = fresh[:limit]
	}

	c.logger.Info("listing scraped",
		zap.Int("found", len(stubs)),
		zap.Int("known", result.Skipped),
		zap.Int("to_fetch", len(fresh)),
	)

	if len(fresh) == 0 {
		result.Vacancies = []*vacancy.Vacancy{}
		return result, nil
	}

	vacancies, failed, err := c.Details(ctx, fresh)
	if err != nil {
		return nil, err
	}
	result.Vacancies = vacancies
	result.Failed = failed
	return result, nil
}

// Close shuts the browser down if one was started.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		c.browser.close()
		c.browser = nil
	}
}

func (c *Client) session() (*browser, []*network.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browser, c.cookies
}

func (c *Client) retry(ctx context.Context, what string, op func(ctx context.Context) error) error {
	return utils.Retry(ctx, utils.Backoff{
		Attempts:  pageRetries,
		BaseDelay: time.Second,
		Retryable: isTimeout,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.logger.Warn("page timed out, retrying",
				zap.String("page", what),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}, op)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func wrapPage(what, pageURL string, err error) error {
	return fmt.Errorf("%s %s: %w", what, pageURL, err)
}
