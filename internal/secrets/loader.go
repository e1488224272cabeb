// Package secrets resolves credentials from files, config values or the environment.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when no source yields a value.
var ErrNotConfigured = errors.New("not configured")

// Source lists the places a secret may come from, in order of precedence:
// File, then Value, then the Env variable.
type Source struct {
	// Name labels the secret in errors, e.g. "openai api key".
	Name  string
	File  string
	Value string
	// Env is a conventional variable such as OPENAI_API_KEY, consulted last.
	Env string
}

func (s Source) label() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return "secret"
}

// Load resolves src. A configured file must exist and be non-empty; values are trimmed.
func Load(src Source) (string, error) {
	if path := strings.TrimSpace(src.File); path != "" {
		return fromFile(src.label(), path)
	}
	if v := strings.TrimSpace(src.Value); v != "" {
		return v, nil
	}
	if env := strings.TrimSpace(src.Env); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s is %w", src.label(), ErrNotConfigured)
}

func fromFile(label, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s from file %q: %w", label, path, err)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("%s file %q is empty", label, path)
	}
	return v, nil
}

// LoadOptional is Load with a missing secret reported as "".
func LoadOptional(src Source) (string, error) {
	v, err := Load(src)
	if errors.Is(err, ErrNotConfigured) {
		return "", nil
	}
	return v, err
}
