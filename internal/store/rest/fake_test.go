package rest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// fakeAPI keeps tables in memory and mimics the record services closely
// enough to exercise Store.
type fakeAPI struct {
	mu     sync.Mutex
	seq    int
	tables map[string]map[string]map[string]any
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{tables: map[string]map[string]map[string]any{}}
}

func (f *fakeAPI) table(name string) map[string]map[string]any {
	if f.tables[name] == nil {
		f.tables[name] = map[string]map[string]any{}
	}
	return f.tables[name]
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (f *fakeAPI) List(_ context.Context, table string, where []Condition) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Record
	for id, fields := range f.table(table) {
		match := true
		for _, c := range where {
			if fmt.Sprint(fields[c.Field]) != fmt.Sprint(c.Value) {
				match = false
				break
			}
		}
		if match {
			out = append(out, Record{ID: id, Fields: copyFields(fields)})
		}
	}
	return out, nil
}

func (f *fakeAPI) Get(_ context.Context, table, id string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fields, ok := f.table(table)[id]
	if !ok {
		return Record{}, &StatusError{Method: http.MethodGet, URL: table + "/" + id, Status: http.StatusNotFound}
	}
	return Record{ID: id, Fields: copyFields(fields)}, nil
}

func (f *fakeAPI) Create(_ context.Context, table string, fields map[string]any) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	id := fmt.Sprintf("rec%04d", f.seq)
	f.table(table)[id] = copyFields(fields)
	return Record{ID: id, Fields: copyFields(fields)}, nil
}

func (f *fakeAPI) Update(_ context.Context, table, id string, fields map[string]any) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.table(table)[id]
	if !ok {
		return Record{}, &StatusError{Method: http.MethodPatch, URL: table + "/" + id, Status: http.StatusNotFound}
	}
	for k, v := range fields {
		if v == nil {
			delete(stored, k)
			continue
		}
		stored[k] = v
	}
	return Record{ID: id, Fields: copyFields(stored)}, nil
}
