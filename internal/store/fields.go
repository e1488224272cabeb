package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Entity names used as keys in field mapping configuration.
const (
	EntityVacancy = "vacancy"
	EntityResume  = "resume"
	EntityMatch   = "match"
)

// FieldMap translates canonical field names (the mapstructure tags of the
// domain types) to the column names of a remote table.
type FieldMap map[string]string

// Fields holds one FieldMap per entity.
type Fields map[string]FieldMap

// EnglishFields keeps canonical names.
func EnglishFields() Fields {
	return Fields{EntityVacancy: {}, EntityResume: {}, EntityMatch: {}}
}

// DutchFields is the column layout used by the Airtable and NocoDB bases.
func DutchFields() Fields {
	return Fields{
		EntityVacancy: {
			"url":          "URL",
			"title":        "Titel",
			"company":      "Bedrijf",
			"location":     "Locatie",
			"hours":        "Uren",
			"rate":         "Tarief",
			"published_at": "Gepubliceerd",
			"description":  "Omschrijving",
			"source":       "Bron",
			"status":       "Status",
			"embedding":    "Embedding",
			"scraped_at":   "Gescraped",
			"updated_at":   "Bijgewerkt",
		},
		EntityResume: {
			"name":       "Naam",
			"email":      "Email",
			"text":       "Tekst",
			"active":     "Actief",
			"embedding":  "Embedding",
			"created_at": "Aangemaakt",
			"updated_at": "Bijgewerkt",
		},
		EntityMatch: {
			"vacancy_id": "Vacature",
			"resume_id":  "Kandidaat",
			"score":      "Score",
			"fit":        "Geschikt",
			"reason":     "Motivatie",
			"message":    "Bericht",
			"similarity": "Gelijkenis",
			"status":     "Status",
			"error":      "Fout",
			"created_at": "Aangemaakt",
		},
	}
}

// WithOverrides returns a copy of f with per-entity overrides applied.
func (f Fields) WithOverrides(overrides map[string]map[string]string) Fields {
	out := make(Fields, len(f))
	for entity, m := range f {
		cp := make(FieldMap, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out[entity] = cp
	}
	for entity, m := range overrides {
		entity = strings.ToLower(strings.TrimSpace(entity))
		if out[entity] == nil {
			out[entity] = FieldMap{}
		}
		for canonical, remote := range m {
			out[entity][strings.ToLower(canonical)] = remote
		}
	}
	return out
}

// Remote returns the remote column for a canonical name.
func (m FieldMap) Remote(canonical string) string {
	if remote, ok := m[canonical]; ok && remote != "" {
		return remote
	}
	return canonical
}

// EncodeOptions tweaks Encode for backends with limited column types.
type EncodeOptions struct {
	// EmbeddingAsText stores vectors as JSON text.
	EmbeddingAsText bool
	// TimeLayout formats time values as strings. Empty keeps time.Time.
	TimeLayout string
	// Omit lists canonical fields to leave out.
	Omit []string
}

// Encode converts an entity into a remote record keyed by remote column names.
// Zero times and empty ids are dropped.
func Encode(entity any, fields FieldMap, opts EncodeOptions) (map[string]any, error) {
	canonical, err := canonicalFields(entity)
	if err != nil {
		return nil, err
	}

	omit := map[string]struct{}{}
	for _, name := range opts.Omit {
		omit[name] = struct{}{}
	}

	record := make(map[string]any, len(canonical))
	for key, value := range canonical {
		if _, skip := omit[key]; skip {
			continue
		}
		if key == "id" {
			if s, _ := value.(string); s == "" {
				continue
			}
		}

		value, keep, err := EncodeValue(value, opts)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}

		record[fields.Remote(key)] = value
	}

	return record, nil
}

// EncodeValue converts one canonical value the way Encode does. keep is false
// for zero times and empty vectors.
func EncodeValue(value any, opts EncodeOptions) (any, bool, error) {
	switch val := value.(type) {
	case time.Time:
		if val.IsZero() {
			return nil, false, nil
		}
		if opts.TimeLayout != "" {
			return val.UTC().Format(opts.TimeLayout), true, nil
		}
	case []float32:
		if len(val) == 0 {
			return nil, false, nil
		}
		if opts.EmbeddingAsText {
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, false, fmt.Errorf("encode embedding: %w", err)
			}
			return string(raw), true, nil
		}
	}
	return value, true, nil
}

// EncodePatch maps canonical patch fields to remote names.
func EncodePatch(patch map[string]any, fields FieldMap) map[string]any {
	record := make(map[string]any, len(patch))
	for key, value := range patch {
		record[fields.Remote(key)] = value
	}
	return record
}

// Decode fills out (a pointer to a domain type) from a remote record.
func Decode(record map[string]any, fields FieldMap, out any) error {
	reverse := make(map[string]string, len(fields))
	for canonical, remote := range fields {
		reverse[remote] = canonical
	}

	canonical := make(map[string]any, len(record))
	for key, value := range record {
		if name, ok := reverse[key]; ok {
			canonical[name] = value
			continue
		}
		canonical[key] = value
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			embeddingHook,
			linkedRecordHook,
			timeHook,
		),
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}

	if err := decoder.Decode(canonical); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

var (
	float32SliceType = reflect.TypeOf([]float32(nil))
	timeType         = reflect.TypeOf(time.Time{})
)

// embeddingHook accepts vectors stored as JSON text.
func embeddingHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != float32SliceType || from.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if s == "" {
		return []float32(nil), nil
	}
	var out []float32
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode embedding text: %w", err)
	}
	return out, nil
}

// linkedRecordHook flattens single-element link arrays (Airtable linked records) into a string.
func linkedRecordHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String || from.Kind() != reflect.Slice {
		return data, nil
	}
	items, ok := data.([]any)
	if !ok {
		return data, nil
	}
	if len(items) == 0 {
		return "", nil
	}
	return fmt.Sprint(items[0]), nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05-07:00", "2006-01-02 15:04:05", "2006-01-02"}

func timeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch val := data.(type) {
	case time.Time:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("unsupported time value %q", s)
	}
	return data, nil
}

// canonicalFields flattens a domain struct into its mapstructure-tagged fields.
// Nested values such as time.Time are kept as is.
func canonicalFields(entity any) (map[string]any, error) {
	val := reflect.Indirect(reflect.ValueOf(entity))
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("encode record: expected struct, got %s", val.Kind())
	}

	typ := val.Type()
	out := make(map[string]any, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = val.Field(i).Interface()
	}
	return out, nil
}
