package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

func fastClient(url string) ClientOptions {
	return ClientOptions{BaseURL: url, Retries: 2, RetryWait: time.Millisecond, RetryMax: 5 * time.Millisecond}
}

func TestAirtableListFollowsOffset(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer pat-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v0/appBase/Vacatures", r.URL.Path)
		assert.Equal(t, "{Status}='new'", r.URL.Query().Get("filterByFormula"))

		if r.URL.Query().Get("offset") == "" {
			io.WriteString(w, `{"records":[{"id":"rec1","fields":{"URL":"https://board.example.com/1","Titel":"Een","Status":"new"}}],"offset":"itrNext"}`)
			return
		}
		assert.Equal(t, "itrNext", r.URL.Query().Get("offset"))
		io.WriteString(w, `{"records":[{"id":"rec2","fields":{"URL":"https://board.example.com/2","Titel":"Twee","Status":"new","Gescraped":"2025-01-02T10:00:00.000Z"}}]}`)
	}))
	defer srv.Close()

	s, err := NewAirtable(AirtableOptions{BaseID: "appBase", Token: "pat-token", Tables: testTables, Client: fastClient(srv.URL)}, nil)
	require.NoError(t, err)

	items, err := s.ListVacancies(context.Background(), store.ListOptions{Status: vacancy.StatusNew})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "rec2", items[0].ID)
	assert.Equal(t, "Twee", items[0].Title)
}

func TestAirtableCreateUsesTypecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `{"records":[]}`)
		case http.MethodPost:
			var body struct {
				Fields   map[string]any `json:"fields"`
				Typecast bool           `json:"typecast"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.True(t, body.Typecast)
			assert.Equal(t, "Anna", body.Fields["Naam"])
			assert.Equal(t, true, body.Fields["Actief"])
			io.WriteString(w, `{"id":"recNew","fields":{"Naam":"Anna","Tekst":"go","Actief":true}}`)
		}
	}))
	defer srv.Close()

	s, err := NewAirtable(AirtableOptions{BaseID: "appBase", Token: "t", Tables: testTables, Client: fastClient(srv.URL)}, nil)
	require.NoError(t, err)

	r, err := s.SaveResume(context.Background(), &vacancy.Resume{Name: "Anna", Text: "go", Active: true})
	require.NoError(t, err)
	assert.Equal(t, "recNew", r.ID)
	assert.True(t, r.Active)
}

func TestAirtableNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"NOT_FOUND"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := NewAirtable(AirtableOptions{BaseID: "appBase", Token: "t", Tables: testTables, Client: fastClient(srv.URL)}, nil)
	require.NoError(t, err)

	_, err = s.GetVacancy(context.Background(), "recMissing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRetriesOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"records":[{"id":"rec1","fields":{"URL":"https://board.example.com/1/"}}]}`)
	}))
	defer srv.Close()

	s, err := NewAirtable(AirtableOptions{BaseID: "b", Token: "t", Tables: testTables, Client: fastClient(srv.URL)}, nil)
	require.NoError(t, err)

	known, err := s.KnownURLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Contains(t, known, "https://board.example.com/1")
}

func TestNocoDBPaginationAndWhere(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "noco-token", r.Header.Get("xc-token"))
		assert.Equal(t, "/api/v2/tables/mKandidaten/records", r.URL.Path)
		assert.Equal(t, "(Actief,eq,true)", r.URL.Query().Get("where"))

		if pages.Add(1) == 1 {
			assert.Equal(t, "0", r.URL.Query().Get("offset"))
			io.WriteString(w, `{"list":[{"Id":1,"Naam":"Anna","Tekst":"go","Actief":true,"Embedding":"[1,0]"}],"pageInfo":{"isLastPage":false}}`)
			return
		}
		assert.Equal(t, "100", r.URL.Query().Get("offset"))
		io.WriteString(w, `{"list":[{"Id":2,"Naam":"Bram","Tekst":"java","Actief":1,"Embedding":"[0,1]"}],"pageInfo":{"isLastPage":true}}`)
	}))
	defer srv.Close()

	s, err := NewNocoDB(NocoDBOptions{
		Token:  "noco-token",
		Tables: Tables{Vacancies: "mVacatures", Resumes: "mKandidaten", Matches: "mMatches"},
		Client: fastClient(srv.URL),
	}, nil)
	require.NoError(t, err)

	hits, err := s.NearestResumes(context.Background(), []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "2", hits[0].Resume.ID)
	assert.Equal(t, "Bram", hits[0].Resume.Name)
	assert.True(t, hits[0].Resume.Active)
}

func TestNocoDBUpdateReadsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, float64(7), body["Id"])
			assert.Equal(t, "shortlisted", body["Status"])
			io.WriteString(w, `{"Id":7}`)
		case http.MethodGet:
			assert.Equal(t, "/api/v2/tables/mMatches/records/7", r.URL.Path)
			io.WriteString(w, `{"Id":7,"Vacature":"1","Kandidaat":"2","Score":0.8,"Status":"shortlisted"}`)
		}
	}))
	defer srv.Close()

	s, err := NewNocoDB(NocoDBOptions{
		Token:  "t",
		Tables: Tables{Vacancies: "mVacatures", Resumes: "mKandidaten", Matches: "mMatches"},
		Client: fastClient(srv.URL),
	}, nil)
	require.NoError(t, err)

	status := vacancy.MatchShortlisted
	m, err := s.UpdateMatch(context.Background(), "7", vacancy.MatchPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "7", m.ID)
	assert.Equal(t, "1", m.VacancyID)
	assert.Equal(t, 0.8, m.Score)
}

func TestSupabaseUpsertAndNearest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/rest/v1/matches":
			assert.Equal(t, "resolution=merge-duplicates,return=representation", r.Header.Get("Prefer"))
			assert.Equal(t, "vacancy_id,resume_id", r.URL.Query().Get("on_conflict"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotContains(t, body, "status")
			assert.NotContains(t, body, "id")
			io.WriteString(w, `[{"id":"m-1","vacancy_id":"v-1","resume_id":"r-1","score":0.75,"fit":true,"status":"shortlisted"}]`)
		case "/rest/v1/rpc/match_resumes":
			var body struct {
				QueryEmbedding []float32 `json:"query_embedding"`
				MatchCount     int       `json:"match_count"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []float32{1, 0}, body.QueryEmbedding)
			assert.Equal(t, 3, body.MatchCount)
			io.WriteString(w, `[{"id":"r-1","name":"Anna","text":"go","active":true,"embedding":"[1,0]","similarity":0.93}]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	s, err := NewSupabase(SupabaseOptions{
		Key:    "anon-key",
		Tables: Tables{Vacancies: "vacancies", Resumes: "resumes", Matches: "matches"},
		Client: fastClient(srv.URL),
	}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	m, err := s.SaveMatch(ctx, &vacancy.Match{VacancyID: "v-1", ResumeID: "r-1", Score: 0.75, Fit: true})
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.ID)
	assert.Equal(t, vacancy.MatchShortlisted, m.Status)

	hits, err := s.NearestResumes(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Anna", hits[0].Resume.Name)
	assert.Equal(t, []float32{1, 0}, hits[0].Resume.Embedding)
	assert.InDelta(t, 0.93, hits[0].Similarity, 1e-9)
}

func TestSupabaseUpdateMissingRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.nope", r.URL.Query().Get("id"))
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	s, err := NewSupabase(SupabaseOptions{
		Key:    "k",
		Tables: Tables{Vacancies: "vacancies", Resumes: "resumes", Matches: "matches"},
		Client: fastClient(srv.URL),
	}, nil)
	require.NoError(t, err)

	status := vacancy.StatusArchived
	_, err = s.UpdateVacancy(context.Background(), "nope", vacancy.VacancyPatch{Status: &status})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConstructorsValidate(t *testing.T) {
	_, err := NewAirtable(AirtableOptions{Token: "t", Tables: testTables}, nil)
	assert.Error(t, err)
	_, err = NewNocoDB(NocoDBOptions{Token: "t", Tables: testTables}, nil)
	assert.Error(t, err)
	_, err = NewSupabase(SupabaseOptions{Key: "k", Client: ClientOptions{BaseURL: "http://x"}}, nil)
	assert.Error(t, err)
}

func TestAirtableFormula(t *testing.T) {
	tests := []struct {
		name  string
		where []Condition
		want  string
	}{
		{name: "empty"},
		{name: "single", where: []Condition{{Field: "URL", Value: "https://x/1"}}, want: "{URL}='https://x/1'"},
		{name: "quote escaped", where: []Condition{{Field: "Bedrijf", Value: "O'Neil"}}, want: `{Bedrijf}='O\'Neil'`},
		{name: "bool and", where: []Condition{{Field: "Actief", Value: true}, {Field: "Gearchiveerd", Value: false}}, want: "AND({Actief},NOT({Gearchiveerd}))"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := airtableFormula(tt.where); got != tt.want {
				t.Fatalf("airtableFormula() = %q, want %q", got, tt.want)
			}
		})
	}
}
