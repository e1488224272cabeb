package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/store/memory"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	items := []*vacancy.Vacancy{
		{ID: "1", URL: "https://board.example/jobs/1", Title: "Go developer"},
		{ID: "2", URL: "https://board.example/jobs/2", Title: "SRE"},
	}

	if err := WriteJSONL(&buf, items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var decoded vacancy.Vacancy
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("line is not json: %v", err)
	}
	if decoded.Title != "SRE" {
		t.Fatalf("unexpected title %q", decoded.Title)
	}
}

func TestWriteJSONLEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONL[*vacancy.Match](&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty output, got %q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteJSONLPropagatesWriteErrors(t *testing.T) {
	if err := WriteJSONL(failingWriter{}, []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	v, err := s.SaveVacancy(ctx, &vacancy.Vacancy{URL: "https://board.example/jobs/1", Title: "Go developer"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveVacancy(ctx, &vacancy.Vacancy{URL: "https://board.example/jobs/2", Title: "SRE"}); err != nil {
		t.Fatal(err)
	}
	r, err := s.SaveResume(ctx, &vacancy.Resume{Name: "Ann", Text: "Go", Active: true, Embedding: []float32{1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveMatch(ctx, &vacancy.Match{VacancyID: v.ID, ResumeID: r.ID, Score: 0.8, Fit: true}); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "out")
	files, err := Snapshot(ctx, s, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]int{VacanciesFile: 2, ResumesFile: 1, MatchesFile: 1}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), files)
	}
	for _, file := range files {
		if got := countLines(t, file); got != want[filepath.Base(file)] {
			t.Fatalf("%s: expected %d lines, got %d", file, want[filepath.Base(file)], got)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, ResumesFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "embedding") {
		t.Fatalf("embeddings must not be exported: %s", data)
	}
}

func countLines(t *testing.T, name string) int {
	t.Helper()
	file, err := os.Open(name)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	defer file.Close()

	n := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		n++
	}
	return n
}

func TestContentTypeForKey(t *testing.T) {
	tests := map[string]string{
		"snap/vacancies.jsonl": "application/x-ndjson",
		"snap/VACANCIES.JSONL": "application/x-ndjson",
		"report.json":          "application/json",
		"notes.txt":            "text/plain",
		"archive.tar":          "",
	}
	for key, want := range tests {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("%s: expected %q, got %q", key, want, got)
		}
	}
}

type s3Object struct {
	body        []byte
	contentType string
}

type s3Stub struct {
	mu      sync.Mutex
	objects map[string]s3Object
}

func (s *s3Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resource := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		s.objects[resource] = s3Object{body: body, contentType: r.Header.Get("Content-Type")}
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := s.objects[resource]; ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestUploaderPutsFilesUnderPrefix(t *testing.T) {
	stub := &s3Stub{objects: map[string]s3Object{}}
	server := httptest.NewServer(stub)
	defer server.Close()

	client := s3.NewFromConfig(aws.Config{
		Region:                     "eu-west-1",
		Credentials:                aws.AnonymousCredentials{},
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(server.URL)
		o.UsePathStyle = true
	})
	uploader := NewUploaderWithClient(client, "snapshots", "/daily/", zap.NewNop())

	file := filepath.Join(t.TempDir(), VacanciesFile)
	if err := os.WriteFile(file, []byte("{\"id\":\"1\"}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := uploader.Upload(context.Background(), []string{file}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	obj, ok := stub.objects["snapshots/daily/"+VacanciesFile]
	if !ok {
		t.Fatalf("object not stored, have %v", stub.objects)
	}
	if string(obj.body) != "{\"id\":\"1\"}\n" {
		t.Fatalf("unexpected body %q", obj.body)
	}
	if obj.contentType != "application/x-ndjson" {
		t.Fatalf("unexpected content type %q", obj.contentType)
	}
}

func TestUploaderKey(t *testing.T) {
	u := NewUploaderWithClient(nil, "b", "", nil)
	if got := u.Key("/tmp/out/matches.jsonl"); got != "matches.jsonl" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewUploaderRequiresBucket(t *testing.T) {
	if _, err := NewUploader(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
