package board

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

var testListing = config.ListingSelector{
	Item:     "article",
	Link:     "a",
	Title:    "h2",
	Company:  ".company",
	Location: ".location",
	Next:     "a.next",
}

var testDetail = config.DetailSelectors{
	Title:       "h1",
	Company:     ".company",
	Location:    ".location",
	Hours:       ".hours",
	Rate:        ".rate",
	Description: ".description",
	Published:   "time",
}

const pageOne = `<html><body>
<article><a href="/jobs/1"><h2>Go Developer</h2></a><span class="company">Acme</span><span class="location">Utrecht</span></article>
<article><a href="/jobs/2">Data Engineer</a></article>
<article><a href="/jobs/1/">Go Developer again</a></article>
<article><a href="#">Anchor only</a></article>
<a class="next" href="/list?page=2">Next</a>
</body></html>`

const pageTwo = `<html><body>
<article><a href="/jobs/3"><h2>SRE</h2></a></article>
<article><a href="/jobs/broken"><h2>Broken</h2></a></article>
</body></html>`

const detailOne = `<html><body>
<h1>Senior Go Developer</h1>
<span class="company">Acme BV</span>
<span class="hours">36 uur</span>
<span class="rate">EUR 95</span>
<time datetime="2026-10-01">1 Oct</time>
<div class="description"><p>Build <strong>services</strong></p></div>
</body></html>`

func newBoardSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, pageTwo)
			return
		}
		fmt.Fprint(w, pageOne)
	})
	mux.HandleFunc("/jobs/1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, detailOne)
	})
	mux.HandleFunc("/jobs/3", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Site Reliability Engineer</h1></body></html>`)
	})
	mux.HandleFunc("/jobs/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, listingURL string, maxPages int) *Client {
	t.Helper()

	client, err := New(&config.BoardConfig{
		Name:        "testboard",
		ListingURL:  listingURL,
		Listing:     testListing,
		Detail:      testDetail,
		MaxPages:    maxPages,
		Parallelism: 2,
		PageTimeout: 5 * time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	fixed := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }
	t.Cleanup(client.Close)
	return client
}

func TestScrapeSkipsKnownAndCountsFailures(t *testing.T) {
	srv := newBoardSite(t)
	client := newTestClient(t, srv.URL+"/list", 2)

	known := map[string]struct{}{utils.NormalizeURL(srv.URL + "/jobs/2"): {}}
	result, err := client.Scrape(context.Background(), known)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}

	if result.Skipped != 1 {
		t.Fatalf("expected 1 skipped posting, got %d", result.Skipped)
	}
	if result.Failed != 1 {
		t.Fatalf("expected 1 failed detail page, got %d", result.Failed)
	}
	if len(result.Vacancies) != 2 {
		t.Fatalf("expected 2 vacancies, got %d", len(result.Vacancies))
	}

	first := result.Vacancies[0]
	if first.URL != srv.URL+"/jobs/1" {
		t.Fatalf("unexpected first url %q", first.URL)
	}
	if first.Title != "Senior Go Developer" || first.Company != "Acme BV" {
		t.Fatalf("detail values should win over the listing: %+v", first)
	}
	if first.Location != "Utrecht" {
		t.Fatalf("expected listing location fallback, got %q", first.Location)
	}
	if first.Hours != "36 uur" || first.Rate != "EUR 95" || first.PublishedAt != "2026-10-01" {
		t.Fatalf("unexpected detail fields: %+v", first)
	}
	if first.Description != "Build **services**" {
		t.Fatalf("unexpected description %q", first.Description)
	}
	if first.Source != "testboard" || first.Status != vacancy.StatusNew {
		t.Fatalf("unexpected source/status: %q %q", first.Source, first.Status)
	}
	if !first.ScrapedAt.Equal(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected scraped_at %v", first.ScrapedAt)
	}

	second := result.Vacancies[1]
	if second.Title != "Site Reliability Engineer" {
		t.Fatalf("unexpected second title %q", second.Title)
	}
	if second.Company != unknownCompany || second.Hours != notSpecified ||
		second.PublishedAt != unknownDate || second.Description != missingDescription {
		t.Fatalf("expected placeholders, got %+v", second)
	}
}

func TestScrapeRespectsMaxPagesAndPostings(t *testing.T) {
	srv := newBoardSite(t)
	client := newTestClient(t, srv.URL+"/list", 1)
	client.cfg.MaxPostings = 1

	result, err := client.Scrape(context.Background(), nil)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(result.Vacancies) != 1 || result.Vacancies[0].URL != srv.URL+"/jobs/1" {
		t.Fatalf("expected only the first posting, got %+v", result.Vacancies)
	}
}

func TestListingsFollowsPagesAndDedupes(t *testing.T) {
	srv := newBoardSite(t)
	client := newTestClient(t, srv.URL+"/list", 5)

	stubs, err := client.Listings(context.Background())
	if err != nil {
		t.Fatalf("listings: %v", err)
	}

	want := []string{"/jobs/1", "/jobs/2", "/jobs/3", "/jobs/broken"}
	if len(stubs) != len(want) {
		t.Fatalf("expected %d stubs, got %d", len(want), len(stubs))
	}
	for i, path := range want {
		if stubs[i].URL != srv.URL+path {
			t.Fatalf("stub %d: expected %s, got %s", i, srv.URL+path, stubs[i].URL)
		}
	}
}

func TestBrowserListingsAcceptEmptyPage(t *testing.T) {
	client := newTestClient(t, "https://board.example/list", 3)
	client.browser = &browser{ctx: context.Background(), cancel: func() {}}

	var rendered []string
	client.render = func(_ context.Context, _ *browser, pageURL string) (string, error) {
		rendered = append(rendered, pageURL)
		return `<html><body><p>No vacancies match your search.</p></body></html>`, nil
	}

	stubs, err := client.Listings(context.Background())
	if err != nil {
		t.Fatalf("listings: %v", err)
	}
	if len(stubs) != 0 {
		t.Fatalf("expected no stubs, got %d", len(stubs))
	}
	if len(rendered) != 1 {
		t.Fatalf("expected a single rendered page, got %v", rendered)
	}

	result, err := client.Scrape(context.Background(), nil)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(result.Vacancies) != 0 || result.Failed != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestListingFailureIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL+"/list", 1)
	if _, err := client.Scrape(context.Background(), nil); err == nil {
		t.Fatal("expected listing error")
	}
}

func TestParseListing(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageOne))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	base, _ := url.Parse("https://board.example/list")

	stubs, next := ParseListing(doc.Selection, base, testListing)
	if next != "https://board.example/list?page=2" {
		t.Fatalf("unexpected next link %q", next)
	}
	if len(stubs) != 2 {
		t.Fatalf("expected 2 stubs, got %d", len(stubs))
	}
	if stubs[0].Title != "Go Developer" || stubs[0].Company != "Acme" || stubs[0].Location != "Utrecht" {
		t.Fatalf("unexpected first stub %+v", stubs[0])
	}
	if stubs[1].Title != "Data Engineer" {
		t.Fatalf("expected link text as title, got %q", stubs[1].Title)
	}
}

func TestParseListingItemIsLink(t *testing.T) {
	t.Parallel()

	html := `<ul><li><a class="job" href="https://board.example/jobs/9">Tester</a></li></ul>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	stubs, next := ParseListing(doc.Selection, nil, config.ListingSelector{Item: "a.job", Link: "a"})
	if next != "" {
		t.Fatalf("expected no next link, got %q", next)
	}
	if len(stubs) != 1 || stubs[0].URL != "https://board.example/jobs/9" || stubs[0].Title != "Tester" {
		t.Fatalf("unexpected stubs %+v", stubs)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *config.BoardConfig
	}{
		{name: "nil config"},
		{name: "missing listing url", cfg: &config.BoardConfig{}},
		{name: "username without password", cfg: &config.BoardConfig{ListingURL: "https://board.example", Username: "me"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	client, err := New(&config.BoardConfig{ListingURL: "https://board.example"}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if client.cfg.MaxPages != 1 || client.cfg.Parallelism != defaultParallelism || client.cfg.PageTimeout != defaultPageTimeout {
		t.Fatalf("defaults not applied: %+v", client.cfg)
	}
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()

	if !isTimeout(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)) {
		t.Fatal("deadline should count as timeout")
	}
	if isTimeout(fmt.Errorf("status 500")) {
		t.Fatal("plain errors are not timeouts")
	}
}
