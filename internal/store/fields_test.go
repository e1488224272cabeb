package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

func TestEncodeDutchVacancy(t *testing.T) {
	t.Parallel()

	scraped := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	v := &vacancy.Vacancy{
		URL:       "https://board.example.com/jobs/1",
		Title:     "Go Developer",
		Company:   "Acme",
		Status:    vacancy.StatusNew,
		Embedding: []float32{0.5, 0.25},
		ScrapedAt: scraped,
	}

	record, err := Encode(v, DutchFields()[EntityVacancy], EncodeOptions{EmbeddingAsText: true, TimeLayout: time.RFC3339})
	require.NoError(t, err)

	assert.Equal(t, "Go Developer", record["Titel"])
	assert.Equal(t, "Acme", record["Bedrijf"])
	assert.Equal(t, "[0.5,0.25]", record["Embedding"])
	assert.Equal(t, "2024-03-04T09:30:00Z", record["Gescraped"])
	assert.NotContains(t, record, "id", "empty id must be dropped")
	assert.NotContains(t, record, "Bijgewerkt", "zero time must be dropped")
}

func TestEncodeOmit(t *testing.T) {
	t.Parallel()

	record, err := Encode(&vacancy.Resume{ID: "r1", Name: "Anna"}, EnglishFields()[EntityResume], EncodeOptions{Omit: []string{"id"}})
	require.NoError(t, err)
	assert.NotContains(t, record, "id")
	assert.Equal(t, "Anna", record["name"])
}

func TestDecodeDutchRecord(t *testing.T) {
	t.Parallel()

	record := map[string]any{
		"Naam":       "Anna de Vries",
		"Tekst":      "Go, Kubernetes",
		"Actief":     true,
		"Embedding":  "[0.1, 0.2, 0.3]",
		"Aangemaakt": "2024-03-04T09:30:00.000Z",
		"Extra":      "ignored",
	}

	var r vacancy.Resume
	require.NoError(t, Decode(record, DutchFields()[EntityResume], &r))

	assert.Equal(t, "Anna de Vries", r.Name)
	assert.True(t, r.Active)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, r.Embedding)
	assert.Equal(t, 2024, r.CreatedAt.Year())
}

func TestDecodeLinkedRecordsAndNumbers(t *testing.T) {
	t.Parallel()

	record := map[string]any{
		"id":        float64(17),
		"Vacature":  []any{"recVAC"},
		"Kandidaat": []any{"recRES"},
		"Score":     "0.75",
		"Geschikt":  "true",
	}

	var m vacancy.Match
	require.NoError(t, Decode(record, DutchFields()[EntityMatch], &m))

	assert.Equal(t, "17", m.ID)
	assert.Equal(t, "recVAC", m.VacancyID)
	assert.Equal(t, "recRES", m.ResumeID)
	assert.Equal(t, 0.75, m.Score)
	assert.True(t, m.Fit)
}

func TestFieldOverrides(t *testing.T) {
	t.Parallel()

	base := DutchFields()
	fields := base.WithOverrides(map[string]map[string]string{
		"vacancy": {"rate": "Uurtarief"},
		"extra":   {"x": "y"},
	})

	assert.Equal(t, "Uurtarief", fields[EntityVacancy].Remote("rate"))
	assert.Equal(t, "Tarief", base[EntityVacancy].Remote("rate"), "overrides must not mutate the base")
	assert.Equal(t, "unknown_field", fields[EntityVacancy].Remote("unknown_field"))
	assert.Equal(t, "y", fields["extra"].Remote("x"))
}
