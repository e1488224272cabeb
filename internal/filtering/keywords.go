package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

type keywordsFilter struct {
	toggle
	exclude []string
	require []string
}

// NewKeywords creates a filter on title and description keywords. Matching is
// case-insensitive substring search.
func NewKeywords() Filter {
	return &keywordsFilter{}
}

func (f *keywordsFilter) Name() string { return "keywords" }

func (f *keywordsFilter) Validate(cfg *Config) error {
	f.exclude = lowerAll(cfg.ExcludeKeywords)
	f.require = lowerAll(cfg.RequireKeywords)

	for _, kw := range f.require {
		for _, ex := range f.exclude {
			if kw == ex {
				return fmt.Errorf("keyword %q is both required and excluded", kw)
			}
		}
	}
	return nil
}

func (f *keywordsFilter) Apply(_ context.Context, deps Deps, v *vacancy.Vacancies) (*vacancy.Vacancies, Step, error) {
	initial := v.Len()
	if len(f.exclude) == 0 && len(f.require) == 0 {
		return v, keep(initial, v), nil
	}

	excluded := v.Filter(func(va *vacancy.Vacancy) bool {
		text := strings.ToLower(va.Title + "\n" + va.Description)
		if containsAny(text, f.exclude) {
			return false
		}
		return len(f.require) == 0 || containsAny(text, f.require)
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding vacancies by keywords",
			zap.Strings("excluded_vacancies", excluded),
			zap.Int("vacancies_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *keywordsFilter) Status() Status {
	details := map[string]string{}
	if len(f.exclude) > 0 {
		details["exclude"] = strings.Join(f.exclude, ",")
	}
	if len(f.require) > 0 {
		details["require"] = strings.Join(f.require, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

func lowerAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
