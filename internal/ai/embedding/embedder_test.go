package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEmbeddingsServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()

	var inputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"), r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		inputs = append(inputs, req.Input...)

		data := make([]map[string]any, 0, len(req.Input))
		for i, in := range req.Input {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(in)), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)

	return srv, &inputs
}

func TestEmbedTexts(t *testing.T) {
	srv, inputs := fakeEmbeddingsServer(t)

	e, err := New(Config{Host: srv.URL, Model: "text-embedding-3-small"}, nil)
	require.NoError(t, err)

	vectors, err := e.EmbedTexts(context.Background(), []string{"Go\ndeveloper", "SRE"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(12), vectors[0][0])
	assert.Equal(t, float32(3), vectors[1][0])

	assert.NotContains(t, (*inputs)[0], "\n", "newlines must be stripped")
}

func TestEmbedTextSingle(t *testing.T) {
	srv, _ := fakeEmbeddingsServer(t)

	e, err := New(Config{Host: srv.URL, Model: "text-embedding-3-small", Token: "sk-test"}, nil)
	require.NoError(t, err)

	vector, err := e.EmbedText(context.Background(), "Data engineer")
	require.NoError(t, err)
	assert.Equal(t, []float32{13, 1}, vector)
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(Config{Host: "http://localhost"}, nil)
	require.Error(t, err)
}
