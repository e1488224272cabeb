package vacancy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spigell/vacancy-matcher/internal/utils"
)

// ExcludedVacancies is the on-disk list of postings that must never be processed again.
type ExcludedVacancies struct {
	Items []*ExcludedVacancy
}

type ExcludedVacancy struct {
	URL        string
	Company    string
	ExcludedAt time.Time
}

// ToExcluded converts the list into exclude file entries stamped with now.
func (v *Vacancies) ToExcluded(now time.Time) *ExcludedVacancies {
	excluded := &ExcludedVacancies{}
	for _, vacancy := range v.Items {
		excluded.Items = append(excluded.Items, &ExcludedVacancy{
			URL:        vacancy.URL,
			Company:    vacancy.Company,
			ExcludedAt: now.UTC(),
		})
	}
	return excluded
}

// LoadExcluded reads the exclude file. A missing or empty file yields an empty list.
func LoadExcluded(path string) (*ExcludedVacancies, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ExcludedVacancies{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedVacancies{}, nil
	}

	var excluded ExcludedVacancies
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, fmt.Errorf("decode exclude file %q: %w", path, err)
	}
	return &excluded, nil
}

// Append adds entries whose URL is not yet present.
func (v *ExcludedVacancies) Append(s *ExcludedVacancies) {
	known := make(map[string]struct{}, len(v.Items))
	for _, item := range v.Items {
		known[utils.NormalizeURL(item.URL)] = struct{}{}
	}
	for _, item := range s.Items {
		key := utils.NormalizeURL(item.URL)
		if _, ok := known[key]; ok {
			continue
		}
		known[key] = struct{}{}
		v.Items = append(v.Items, item)
	}
}

func (v *ExcludedVacancies) URLs() []string {
	urls := make([]string, 0, len(v.Items))
	for _, vacancy := range v.Items {
		urls = append(urls, vacancy.URL)
	}
	return urls
}

func (v *ExcludedVacancies) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
