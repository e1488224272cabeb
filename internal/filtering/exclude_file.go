package filtering

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

type excludeFileFilter struct {
	toggle
	path string
}

// NewExcludeFile creates a filter that removes vacancies listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = cfg.ExcludeFile
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, v *vacancy.Vacancies) (*vacancy.Vacancies, Step, error) {
	initial := v.Len()
	if f.path == "" {
		return v, keep(initial, v), nil
	}

	excluded, err := vacancy.LoadExcluded(f.path)
	if err != nil {
		return v, Step{}, fmt.Errorf("getting excluded vacancies from file: %w", err)
	}

	removed := v.Exclude(vacancy.URLField, excluded.URLs())
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding vacancies based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_vacancies", removed),
			zap.Int("vacancies_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(removed), Left: v.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

// AppendExcluded records vacancies in the exclude file so later runs skip
// them before fetching their detail pages.
func AppendExcluded(path string, items []*vacancy.Vacancy, now time.Time) error {
	if path == "" || len(items) == 0 {
		return nil
	}

	excluded, err := vacancy.LoadExcluded(path)
	if err != nil {
		return fmt.Errorf("load excluded vacancies: %w", err)
	}

	excluded.Append((&vacancy.Vacancies{Items: items}).ToExcluded(now))
	if err := excluded.ToFile(path); err != nil {
		return fmt.Errorf("write excluded vacancies: %w", err)
	}
	return nil
}
