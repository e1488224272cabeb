package board

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const (
	unknownTitle       = "Unknown Title"
	unknownCompany     = "Unknown Company"
	unknownLocation    = "Unknown Location"
	unknownDate        = "Unknown Date"
	notSpecified       = "Not specified"
	missingDescription = "No description available"
)

// ParseListing extracts posting stubs from a listing page and resolves the
// next page link. Links are resolved against base and deduplicated by their
// normalized URL.
func ParseListing(doc *goquery.Selection, base *url.URL, sel config.ListingSelector) ([]*vacancy.Vacancy, string) {
	seen := make(map[string]struct{})
	var stubs []*vacancy.Vacancy

	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		link := item
		if sel.Link != "" && !item.Is(sel.Link) {
			link = item.Find(sel.Link).First()
		}
		href := resolve(base, link.AttrOr("href", ""))
		if href == "" {
			return
		}
		key := utils.NormalizeURL(href)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}

		title := text(item, sel.Title)
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}

		stubs = append(stubs, &vacancy.Vacancy{
			URL:      href,
			Title:    title,
			Company:  text(item, sel.Company),
			Location: text(item, sel.Location),
		})
	})

	next := ""
	if sel.Next != "" {
		next = resolve(base, doc.Find(sel.Next).First().AttrOr("href", ""))
	}
	return stubs, next
}

// ParseDetail fills a vacancy from its detail page. Values found on the page
// win over the listing stub; placeholders are used when neither has one.
func ParseDetail(doc *goquery.Selection, stub *vacancy.Vacancy, sel config.DetailSelectors, conv *markdownConverter, source string, now time.Time) *vacancy.Vacancy {
	v := &vacancy.Vacancy{
		URL:       stub.URL,
		Source:    source,
		Status:    vacancy.StatusNew,
		ScrapedAt: now.UTC(),
	}

	v.Title = firstNonEmpty(text(doc, sel.Title), stub.Title, unknownTitle)
	v.Company = firstNonEmpty(text(doc, sel.Company), stub.Company, unknownCompany)
	v.Location = firstNonEmpty(text(doc, sel.Location), stub.Location, unknownLocation)
	v.Hours = firstNonEmpty(text(doc, sel.Hours), notSpecified)
	v.Rate = firstNonEmpty(text(doc, sel.Rate), notSpecified)

	published := ""
	if sel.Published != "" {
		node := doc.Find(sel.Published).First()
		published = firstNonEmpty(node.AttrOr("datetime", ""), strings.TrimSpace(node.Text()))
	}
	v.PublishedAt = firstNonEmpty(published, unknownDate)

	v.Description = missingDescription
	if sel.Description != "" {
		node := doc.Find(sel.Description).First()
		if html, err := node.Html(); err == nil && strings.TrimSpace(html) != "" {
			if desc := conv.Convert(html, node.Text()); desc != "" {
				v.Description = desc
			}
		}
	}
	return v
}

func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
