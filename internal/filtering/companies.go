package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

type companiesFilter struct {
	toggle
	companies []string
}

// NewCompanies creates a filter that removes vacancies of configured companies.
func NewCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = nil
	for _, c := range cfg.Companies {
		if c = strings.TrimSpace(c); c != "" {
			f.companies = append(f.companies, c)
		}
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, v *vacancy.Vacancies) (*vacancy.Vacancies, Step, error) {
	initial := v.Len()
	if len(f.companies) == 0 {
		return v, keep(initial, v), nil
	}

	excluded := v.Exclude(vacancy.CompanyField, f.companies)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding vacancies by companies",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_vacancies", excluded),
			zap.Int("vacancies_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
