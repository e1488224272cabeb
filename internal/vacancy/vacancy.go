package vacancy

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spigell/vacancy-matcher/internal/utils"
)

const (
	URLField     = "URL"
	CompanyField = "Company"
	IDField      = "ID"
)

// Vacancy statuses.
const (
	StatusNew      = "new"
	StatusMatched  = "matched"
	StatusReviewed = "reviewed"
	StatusArchived = "archived"
)

var vacancyStatuses = []string{StatusNew, StatusMatched, StatusReviewed, StatusArchived}

type Vacancies struct {
	Items []*Vacancy
}

type Vacancy struct {
	ID          string    `json:"id,omitempty" mapstructure:"id"`
	URL         string    `json:"url" mapstructure:"url"`
	Title       string    `json:"title" mapstructure:"title"`
	Company     string    `json:"company,omitempty" mapstructure:"company"`
	Location    string    `json:"location,omitempty" mapstructure:"location"`
	Hours       string    `json:"hours,omitempty" mapstructure:"hours"`
	Rate        string    `json:"rate,omitempty" mapstructure:"rate"`
	PublishedAt string    `json:"published_at,omitempty" mapstructure:"published_at"`
	Description string    `json:"description,omitempty" mapstructure:"description"`
	Source      string    `json:"source,omitempty" mapstructure:"source"`
	Status      string    `json:"status,omitempty" mapstructure:"status"`
	Embedding   []float32 `json:"-" mapstructure:"embedding"`
	ScrapedAt   time.Time `json:"scraped_at,omitempty" mapstructure:"scraped_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" mapstructure:"updated_at"`
}

// IsValidStatus reports whether s is a known vacancy status.
func IsValidStatus(s string) bool {
	for _, status := range vacancyStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// EmbeddingText is the text that represents the vacancy in vector space.
func (va *Vacancy) EmbeddingText() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{va.Title, va.Company, va.Location, va.Description} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (va *Vacancy) GetStringField(name string) string {
	switch name {
	case IDField:
		return va.ID
	case URLField:
		return utils.NormalizeURL(va.URL)
	case CompanyField:
		return strings.ToLower(strings.TrimSpace(va.Company))
	default:
		return ""
	}
}

func (v *Vacancies) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Items)
}

func (v *Vacancies) FindByID(id string) *Vacancy {
	for _, vacancy := range v.Items {
		if vacancy.ID == id {
			return vacancy
		}
	}
	return nil
}

func (v *Vacancies) FindByURL(u string) *Vacancy {
	u = utils.NormalizeURL(u)
	for _, vacancy := range v.Items {
		if utils.NormalizeURL(vacancy.URL) == u {
			return vacancy
		}
	}
	return nil
}

// URLs returns normalized posting URLs in list order.
func (v *Vacancies) URLs() []string {
	urls := make([]string, 0, v.Len())
	for _, vacancy := range v.Items {
		urls = append(urls, utils.NormalizeURL(vacancy.URL))
	}
	return urls
}

// Exclude removes every vacancy whose field matches one of targets and
// returns the URLs of removed vacancies. Order of the remaining items is kept.
func (v *Vacancies) Exclude(field string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		switch field {
		case URLField:
			target = utils.NormalizeURL(target)
		case CompanyField:
			target = strings.ToLower(strings.TrimSpace(target))
		}
		set[target] = struct{}{}
	}

	return v.Filter(func(va *Vacancy) bool {
		_, found := set[va.GetStringField(field)]
		return !found
	})
}

// Filter keeps vacancies for which keep returns true and returns the URLs of the dropped ones.
func (v *Vacancies) Filter(keep func(*Vacancy) bool) []string {
	var dropped []string
	kept := v.Items[:0]
	for _, vacancy := range v.Items {
		if keep(vacancy) {
			kept = append(kept, vacancy)
			continue
		}
		dropped = append(dropped, vacancy.URL)
	}
	for i := len(kept); i < len(v.Items); i++ {
		v.Items[i] = nil
	}
	v.Items = kept
	return dropped
}

// Dedupe drops repeated URLs, keeping the first occurrence.
func (v *Vacancies) Dedupe() []string {
	seen := make(map[string]struct{}, v.Len())
	return v.Filter(func(va *Vacancy) bool {
		key := utils.NormalizeURL(va.URL)
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		return true
	})
}

// ReportByCompany groups a short summary of the vacancies by company.
func (v *Vacancies) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, vacancy := range v.Items {
		key := vacancy.Company
		if strings.TrimSpace(key) == "" {
			key = "unknown"
		}
		report[key] = append(report[key], map[string]string{
			"title":    vacancy.Title,
			"url":      vacancy.URL,
			"location": vacancy.Location,
			"hours":    vacancy.Hours,
			"rate":     vacancy.Rate,
			"status":   vacancy.Status,
		})
	}
	return report
}

func (v *Vacancies) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "vacancies_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode vacancies: %w", err)
	}
	return file.Name(), nil
}
