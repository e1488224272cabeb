package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

// Filter represents a single filtering step applied to vacancies.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, v *vacancy.Vacancies) (*vacancy.Vacancies, Step, error)
}

// URLSource lists the normalized URLs that are already persisted.
type URLSource interface {
	KnownURLs(ctx context.Context) (map[string]struct{}, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
	Known  URLSource
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	Companies       []string
	ExcludeKeywords []string
	RequireKeywords []string
	ExcludeFile     string
}

// NewConfig converts the filters section of the application config.
func NewConfig(c *config.FiltersConfig) *Config {
	if c == nil {
		return &Config{}
	}
	return &Config{
		Companies:       c.ExcludeCompanies,
		ExcludeKeywords: c.ExcludeKeywords,
		RequireKeywords: c.RequireKeywords,
		ExcludeFile:     strings.TrimSpace(c.ExcludeFile),
	}
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// toggle carries the disabled state shared by every filter.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard chain in execution order.
func Default() []Filter {
	return []Filter{
		NewKnownURLs(),
		NewCompanies(),
		NewKeywords(),
		NewExcludeFile(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run validates the enabled steps and applies them in order. It returns the
// remaining vacancies and the ones dropped by any step.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, v *vacancy.Vacancies) (*vacancy.Vacancies, []*vacancy.Vacancy, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	var dropped []*vacancy.Vacancy
	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		before := append([]*vacancy.Vacancy(nil), v.Items...)

		next, info, err := step.Apply(ctx, deps, v)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		if info.Dropped > 0 {
			dropped = append(dropped, missing(before, next)...)
		}
		v = next
	}

	return v, dropped, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

func missing(before []*vacancy.Vacancy, after *vacancy.Vacancies) []*vacancy.Vacancy {
	kept := make(map[string]struct{}, after.Len())
	for _, v := range after.Items {
		kept[utils.NormalizeURL(v.URL)] = struct{}{}
	}

	var out []*vacancy.Vacancy
	for _, v := range before {
		if _, ok := kept[utils.NormalizeURL(v.URL)]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func keep(initial int, v *vacancy.Vacancies) Step {
	return Step{Initial: initial, Dropped: 0, Left: v.Len()}
}
