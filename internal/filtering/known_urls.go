package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

type knownURLsFilter struct {
	toggle
}

// NewKnownURLs creates a filter that drops vacancies already persisted. The
// board skips known URLs too; this step covers postings stored while the
// detail pages were being fetched.
func NewKnownURLs() Filter {
	return &knownURLsFilter{}
}

func (f *knownURLsFilter) Name() string { return "known_urls" }

func (f *knownURLsFilter) Validate(*Config) error { return nil }

func (f *knownURLsFilter) Apply(ctx context.Context, deps Deps, v *vacancy.Vacancies) (*vacancy.Vacancies, Step, error) {
	initial := v.Len()
	if deps.Known == nil || initial == 0 {
		return v, keep(initial, v), nil
	}

	known, err := deps.Known.KnownURLs(ctx)
	if err != nil {
		return v, Step{}, fmt.Errorf("listing known urls: %w", err)
	}

	excluded := v.Filter(func(va *vacancy.Vacancy) bool {
		_, ok := known[utils.NormalizeURL(va.URL)]
		return !ok
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding vacancies already stored",
			zap.Strings("excluded_vacancies", excluded),
			zap.Int("vacancies_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *knownURLsFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
