package board

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// listingReady is awaited instead of the item selector, which an empty
// listing never renders.
const listingReady = "body"

type browser struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (b *browser) close() {
	b.cancel()
}

// run executes actions in the browser tab, bounded by timeout and by the
// caller's context.
func (b *browser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (c *Client) startBrowser() *browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.WindowSize(1366, 900),
	)
	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}
	if c.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(c.logger.Sugar().Debugf))

	return &browser{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}
}

// Login signs in through the browser and keeps the session cookies for colly.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.LoginURL == "" {
		return fmt.Errorf("board login url is required when a username is set")
	}

	c.mu.Lock()
	if c.browser == nil {
		c.browser = c.startBrowser()
	}
	b := c.browser
	c.mu.Unlock()

	sel := c.cfg.Login
	var cookies []*network.Cookie

	err := c.retry(ctx, c.cfg.LoginURL, func(ctx context.Context) error {
		return b.run(ctx, c.cfg.PageTimeout,
			chromedp.Navigate(c.cfg.LoginURL),
			chromedp.WaitVisible(sel.Username, chromedp.ByQuery),
			chromedp.SendKeys(sel.Username, c.cfg.Username, chromedp.ByQuery),
			chromedp.SendKeys(sel.Password, c.password, chromedp.ByQuery),
			chromedp.Click(sel.Submit, chromedp.ByQuery),
			chromedp.WaitReady(sel.Ready, chromedp.ByQuery),
			chromedp.ActionFunc(func(ctx context.Context) error {
				var err error
				cookies, err = network.GetCookies().Do(ctx)
				return err
			}),
		)
	})
	if err != nil {
		return wrapPage("login", c.cfg.LoginURL, err)
	}

	c.mu.Lock()
	c.cookies = cookies
	c.mu.Unlock()

	c.logger.Info("logged in", zap.Int("cookies", len(cookies)))
	return nil
}

// browserHTML loads a page in the logged-in tab, scrolls to trigger lazy
// loading and returns the rendered document.
func (c *Client) browserHTML(ctx context.Context, b *browser, pageURL string) (string, error) {
	actions := []chromedp.Action{chromedp.Navigate(pageURL)}
	for i := 0; i < c.cfg.Scrolls; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil),
			chromedp.Sleep(c.cfg.ScrollDelay),
		)
	}

	var html string
	actions = append(actions,
		chromedp.WaitReady(listingReady, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := b.run(ctx, c.cfg.PageTimeout, actions...); err != nil {
		return "", err
	}
	return html, nil
}

func httpCookies(cookies []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		out = append(out, &http.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HttpOnly: ck.HTTPOnly,
		})
	}
	return out
}
