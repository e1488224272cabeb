// Package export writes JSON Lines snapshots of stored vacancies, résumés and
// matches and optionally uploads them to S3.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const (
	VacanciesFile = "vacancies.jsonl"
	ResumesFile   = "resumes.jsonl"
	MatchesFile   = "matches.jsonl"
)

// WriteJSONL writes one JSON document per line.
func WriteJSONL[T any](w io.Writer, items []T) error {
	writer := bufio.NewWriter(w)
	for i, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal item %d: %w", i, err)
		}
		if _, err := writer.Write(b); err != nil {
			return fmt.Errorf("write item %d: %w", i, err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush writer: %w", err)
	}
	return nil
}

// Snapshot dumps every stored record into dir and returns the written paths.
func Snapshot(ctx context.Context, s store.Store, dir string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	vacancies, err := collect(func(offset int) ([]*vacancy.Vacancy, error) {
		return s.ListVacancies(ctx, store.ListOptions{Limit: store.MaxLimit, Offset: offset})
	})
	if err != nil {
		return nil, fmt.Errorf("listing vacancies: %w", err)
	}
	resumes, err := collect(func(offset int) ([]*vacancy.Resume, error) {
		return s.ListResumes(ctx, store.ListOptions{Limit: store.MaxLimit, Offset: offset})
	})
	if err != nil {
		return nil, fmt.Errorf("listing resumes: %w", err)
	}
	matches, err := collect(func(offset int) ([]*vacancy.Match, error) {
		return s.ListMatches(ctx, store.MatchFilter{Limit: store.MaxLimit, Offset: offset})
	})
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}

	files := []string{
		filepath.Join(dir, VacanciesFile),
		filepath.Join(dir, ResumesFile),
		filepath.Join(dir, MatchesFile),
	}
	writes := []func(io.Writer) error{
		func(w io.Writer) error { return WriteJSONL(w, vacancies) },
		func(w io.Writer) error { return WriteJSONL(w, resumes) },
		func(w io.Writer) error { return WriteJSONL(w, matches) },
	}
	for i, name := range files {
		if err := writeFile(name, writes[i]); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func collect[T any](list func(offset int) ([]T, error)) ([]T, error) {
	var all []T
	for offset := 0; ; offset += store.MaxLimit {
		items, err := list(offset)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < store.MaxLimit {
			return all, nil
		}
	}
}

func writeFile(name string, write func(io.Writer) error) error {
	file, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return file.Close()
}
