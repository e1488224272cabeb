package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const supabasePageSize = 1000

// supabase talks to PostgREST under /rest/v1.
type supabase struct {
	client        *resty.Client
	matchFunction string
}

func newSupabase(key, matchFunction string, opts ClientOptions, logger *zap.Logger) *supabase {
	opts.Headers = map[string]string{
		"apikey":        key,
		"Authorization": "Bearer " + key,
	}
	return &supabase{client: newClient(opts, logger), matchFunction: matchFunction}
}

func tablePath(table string) string {
	return "/rest/v1/" + url.PathEscape(table)
}

func (s *supabase) List(ctx context.Context, table string, where []Condition) ([]Record, error) {
	var records []Record

	for offset := 0; ; offset += supabasePageSize {
		req := s.client.R().SetContext(ctx).SetQueryParams(map[string]string{
			"select": "*",
			"order":  "id",
			"limit":  strconv.Itoa(supabasePageSize),
			"offset": strconv.Itoa(offset),
		})
		for _, c := range where {
			req.SetQueryParam(c.Field, "eq."+fmt.Sprint(c.Value))
		}

		resp, err := req.Get(tablePath(table))
		if err := checkResponse(resp, err); err != nil {
			return nil, fmt.Errorf("list supabase %s: %w", table, err)
		}

		page := gjson.ParseBytes(resp.Body()).Array()
		for _, item := range page {
			records = append(records, supabaseRecord(item))
		}
		if len(page) < supabasePageSize {
			return records, nil
		}
	}
}

func (s *supabase) Get(ctx context.Context, table, id string) (Record, error) {
	resp, err := s.client.R().SetContext(ctx).
		SetQueryParams(map[string]string{"select": "*", "id": "eq." + id}).
		Get(tablePath(table))
	if err := checkResponse(resp, err); err != nil {
		return Record{}, fmt.Errorf("get supabase %s/%s: %w", table, id, err)
	}
	return firstRecord(resp, table, id)
}

func (s *supabase) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	resp, err := s.client.R().SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(fields).
		Post(tablePath(table))
	if err := checkResponse(resp, err); err != nil {
		return Record{}, fmt.Errorf("create supabase %s: %w", table, err)
	}
	return firstRecord(resp, table, "")
}

func (s *supabase) Update(ctx context.Context, table, id string, fields map[string]any) (Record, error) {
	resp, err := s.client.R().SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetBody(fields).
		Patch(tablePath(table))
	if err := checkResponse(resp, err); err != nil {
		return Record{}, fmt.Errorf("update supabase %s/%s: %w", table, id, err)
	}
	return firstRecord(resp, table, id)
}

// Upsert merges on the given unique columns. Columns absent from fields keep
// their stored values.
func (s *supabase) Upsert(ctx context.Context, table string, conflict []string, fields map[string]any) (Record, error) {
	resp, err := s.client.R().SetContext(ctx).
		SetHeader("Prefer", "resolution=merge-duplicates,return=representation").
		SetQueryParam("on_conflict", strings.Join(conflict, ",")).
		SetBody(fields).
		Post(tablePath(table))
	if err := checkResponse(resp, err); err != nil {
		return Record{}, fmt.Errorf("upsert supabase %s: %w", table, err)
	}
	return firstRecord(resp, table, "")
}

// Nearest calls the SQL function that wraps the pgvector <=> operator.
func (s *supabase) Nearest(ctx context.Context, embedding []float32, limit int) ([]Record, []float64, error) {
	resp, err := s.client.R().SetContext(ctx).
		SetBody(map[string]any{"query_embedding": embedding, "match_count": limit}).
		Post("/rest/v1/rpc/" + url.PathEscape(s.matchFunction))
	if err := checkResponse(resp, err); err != nil {
		return nil, nil, fmt.Errorf("call supabase %s: %w", s.matchFunction, err)
	}

	rows := gjson.ParseBytes(resp.Body()).Array()
	records := make([]Record, 0, len(rows))
	similarities := make([]float64, 0, len(rows))
	for _, row := range rows {
		rec := supabaseRecord(row)
		delete(rec.Fields, "similarity")
		records = append(records, rec)
		similarities = append(similarities, row.Get("similarity").Float())
	}
	return records, similarities, nil
}

func supabaseRecord(item gjson.Result) Record {
	fields, _ := item.Value().(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return Record{ID: item.Get("id").String(), Fields: fields}
}

func firstRecord(resp *resty.Response, table, id string) (Record, error) {
	rows := gjson.ParseBytes(resp.Body()).Array()
	if len(rows) == 0 {
		return Record{}, &StatusError{Method: resp.Request.Method, URL: resp.Request.URL, Status: http.StatusNotFound, Body: "no rows in " + table + " " + id}
	}
	return supabaseRecord(rows[0]), nil
}
