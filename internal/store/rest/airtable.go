package rest

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const DefaultAirtableURL = "https://api.airtable.com"

// airtable talks to https://api.airtable.com/v0/{base}/{table}.
type airtable struct {
	client *resty.Client
	baseID string
}

func newAirtable(baseID, token string, opts ClientOptions, logger *zap.Logger) *airtable {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAirtableURL
	}
	opts.Headers = map[string]string{"Authorization": "Bearer " + token}
	return &airtable{client: newClient(opts, logger), baseID: baseID}
}

func (a *airtable) tablePath(table string) string {
	return "/v0/" + url.PathEscape(a.baseID) + "/" + url.PathEscape(table)
}

func (a *airtable) List(ctx context.Context, table string, where []Condition) ([]Record, error) {
	var (
		records []Record
		offset  string
	)
	formula := airtableFormula(where)

	for {
		req := a.client.R().SetContext(ctx).SetQueryParam("pageSize", "100")
		if formula != "" {
			req.SetQueryParam("filterByFormula", formula)
		}
		if offset != "" {
			req.SetQueryParam("offset", offset)
		}

		resp, err := req.Get(a.tablePath(table))
		if err := checkResponse(resp, err); err != nil {
			return nil, fmt.Errorf("list airtable %s: %w", table, err)
		}

		body := resp.Body()
		for _, item := range gjson.GetBytes(body, "records").Array() {
			records = append(records, airtableRecord(item))
		}

		offset = gjson.GetBytes(body, "offset").String()
		if offset == "" {
			return records, nil
		}
	}
}

func (a *airtable) Get(ctx context.Context, table, id string) (Record, error) {
	resp, err := a.client.R().SetContext(ctx).Get(a.tablePath(table) + "/" + url.PathEscape(id))
	if err := checkResponse(resp, err); err != nil {
		return Record{}, fmt.Errorf("get airtable %s/%s: %w", table, id, err)
	}
	return airtableRecord(gjson.ParseBytes(resp.Body())), nil
}

func (a *airtable) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	resp, err := a.client.R().SetContext(ctx).
		SetBody(map[string]any{"fields": fields, "typecast": true}).
		Post(a.tablePath(table))
	if err := checkResponse(resp, err); err != nil {
		return Record{}, fmt.Errorf("create airtable %s: %w", table, err)
	}
	return airtableRecord(gjson.ParseBytes(resp.Body())), nil
}

func (a *airtable) Update(ctx context.Context, table, id string, fields map[string]any) (Record, error) {
	resp, err := a.client.R().SetContext(ctx).
		SetBody(map[string]any{"fields": fields, "typecast": true}).
		Patch(a.tablePath(table) + "/" + url.PathEscape(id))
	if err := checkResponse(resp, err); err != nil {
		return Record{}, fmt.Errorf("update airtable %s/%s: %w", table, id, err)
	}
	return airtableRecord(gjson.ParseBytes(resp.Body())), nil
}

func airtableRecord(item gjson.Result) Record {
	fields, _ := item.Get("fields").Value().(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return Record{ID: item.Get("id").String(), Fields: fields}
}

// airtableFormula renders conditions as an AND() formula.
func airtableFormula(where []Condition) string {
	if len(where) == 0 {
		return ""
	}
	parts := make([]string, 0, len(where))
	for _, c := range where {
		field := "{" + c.Field + "}"
		switch v := c.Value.(type) {
		case bool:
			if v {
				parts = append(parts, field)
			} else {
				parts = append(parts, "NOT("+field+")")
			}
		default:
			value := strings.ReplaceAll(fmt.Sprint(v), `\`, `\\`)
			value = strings.ReplaceAll(value, `'`, `\'`)
			parts = append(parts, field+"='"+value+"'")
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "AND(" + strings.Join(parts, ",") + ")"
}
