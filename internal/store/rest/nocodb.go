package rest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const nocoPageSize = 100

// nocodb talks to the v2 records API: /api/v2/tables/{table}/records.
type nocodb struct {
	client *resty.Client
}

func newNocoDB(token string, opts ClientOptions, logger *zap.Logger) *nocodb {
	opts.Headers = map[string]string{"xc-token": token}
	return &nocodb{client: newClient(opts, logger)}
}

func recordsPath(table string) string {
	return "/api/v2/tables/" + url.PathEscape(table) + "/records"
}

func (n *nocodb) List(ctx context.Context, table string, where []Condition) ([]Record, error) {
	var records []Record
	clause := nocoWhere(where)

	for offset := 0; ; offset += nocoPageSize {
		req := n.client.R().SetContext(ctx).SetQueryParams(map[string]string{
			"limit":  strconv.Itoa(nocoPageSize),
			"offset": strconv.Itoa(offset),
		})
		if clause != "" {
			req.SetQueryParam("where", clause)
		}

		resp, err := req.Get(recordsPath(table))
		if err := checkResponse(resp, err); err != nil {
			return nil, fmt.Errorf("list nocodb %s: %w", table, err)
		}

		body := resp.Body()
		page := gjson.GetBytes(body, "list").Array()
		for _, item := range page {
			records = append(records, nocoRecord(item))
		}

		last := gjson.GetBytes(body, "pageInfo.isLastPage")
		if len(page) == 0 || (last.Exists() && last.Bool()) || (!last.Exists() && len(page) < nocoPageSize) {
			return records, nil
		}
	}
}

func (n *nocodb) Get(ctx context.Context, table, id string) (Record, error) {
	resp, err := n.client.R().SetContext(ctx).Get(recordsPath(table) + "/" + url.PathEscape(id))
	if err := checkResponse(resp, err); err != nil {
		return Record{}, fmt.Errorf("get nocodb %s/%s: %w", table, id, err)
	}
	return nocoRecord(gjson.ParseBytes(resp.Body())), nil
}

// Create and Update only return the row id, so the row is read back.
func (n *nocodb) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	resp, err := n.client.R().SetContext(ctx).SetBody(fields).Post(recordsPath(table))
	if err := checkResponse(resp, err); err != nil {
		return Record{}, fmt.Errorf("create nocodb %s: %w", table, err)
	}
	return n.Get(ctx, table, gjson.GetBytes(resp.Body(), "Id").String())
}

func (n *nocodb) Update(ctx context.Context, table, id string, fields map[string]any) (Record, error) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	if numeric, err := strconv.Atoi(id); err == nil {
		body["Id"] = numeric
	} else {
		body["Id"] = id
	}

	resp, err := n.client.R().SetContext(ctx).SetBody(body).Patch(recordsPath(table))
	if err := checkResponse(resp, err); err != nil {
		return Record{}, fmt.Errorf("update nocodb %s/%s: %w", table, id, err)
	}
	return n.Get(ctx, table, id)
}

func nocoRecord(item gjson.Result) Record {
	fields, _ := item.Value().(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	id := item.Get("Id").String()
	delete(fields, "Id")
	return Record{ID: id, Fields: fields}
}

// nocoWhere renders conditions as (field,eq,value)~and(...).
func nocoWhere(where []Condition) string {
	parts := make([]string, 0, len(where))
	for _, c := range where {
		parts = append(parts, fmt.Sprintf("(%s,eq,%v)", c.Field, c.Value))
	}
	return strings.Join(parts, "~and")
}
