package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
	"github.com/JakeFAU/site-summarizer/internal/pipeline"
	"github.com/JakeFAU/site-summarizer/internal/storage/memory"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []runCall
	res   pipeline.Result
	err   error
	panic bool
}

type runCall struct {
	url   string
	depth int
}

func (f *fakeRunner) Run(_ context.Context, seedURL string, maxDepth int) (pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	f.calls = append(f.calls, runCall{url: seedURL, depth: maxDepth})
	return f.res, f.err
}

type testEnv struct {
	server *Server
	runner *fakeRunner
	blobs  *memory.BlobStore
	runs   *memory.RunStore
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		runner: &fakeRunner{res: pipeline.Result{
			RunID:       "run-1",
			SummaryFile: "summary_abc.md",
			ReportFile:  "report_def.md",
			Pages:       3,
		}},
		blobs: memory.NewBlobStore(),
		runs:  memory.NewRunStore(),
	}
	env.server = NewServer(env.runner, env.blobs, env.runs, cfg, nil)
	return env
}

func defaultConfig() Config {
	return Config{DefaultDepth: 1, MaxDepth: 3, RequestTimeout: 5 * time.Second}
}

func serve(s *Server, method, target string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestScrapeSucceeds(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultConfig())

	rec := serve(env.server, http.MethodPost, "/scrape", `{"url":"https://example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp scrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, completeMessage, resp.Message)
	assert.Equal(t, "/download/summary_abc.md", resp.DownloadURL)
	assert.Equal(t, "/download/report_def.md", resp.ReportURL)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, 3, resp.Pages)
	require.Len(t, env.runner.calls, 1)
	assert.Equal(t, runCall{url: "https://example.com", depth: 1}, env.runner.calls[0])
}

func TestScrapeExplicitDepth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultConfig())

	rec := serve(env.server, http.MethodPost, "/scrape", `{"url":"http://example.com/a","depth":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.runner.calls[0].depth)
}

func TestScrapeRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{invalid"},
		{"missing url", `{}`},
		{"relative url", `{"url":"/about"}`},
		{"ftp url", `{"url":"ftp://example.com"}`},
		{"negative depth", `{"url":"https://example.com","depth":-1}`},
		{"depth over cap", `{"url":"https://example.com","depth":4}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, defaultConfig())
			rec := serve(env.server, http.MethodPost, "/scrape", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, env.runner.calls)
		})
	}
}

func TestScrapeNoContent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultConfig())
	env.runner.err = pipeline.ErrNoContent

	rec := serve(env.server, http.MethodPost, "/scrape", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no content scraped")
}

func TestScrapeTimeoutMapsTo504(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultConfig())
	env.runner.err = fmt.Errorf("crawl: %w", context.DeadlineExceeded)

	rec := serve(env.server, http.MethodPost, "/scrape", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, seedURL string, _ int) (pipeline.Result, error) {
	<-ctx.Done()
	return pipeline.Result{}, fmt.Errorf("crawl %s: %w", seedURL, ctx.Err())
}

func TestScrapeRequestDeadlineReturnsJSON504(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	srv := NewServer(blockingRunner{}, memory.NewBlobStore(), memory.NewRunStore(), cfg, nil)

	start := time.Now()
	rec := serve(srv, http.MethodPost, "/scrape", `{"url":"https://example.com"}`)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "deadline exceeded")
}

func TestDownload(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultConfig())
	_, err := env.blobs.PutObject(context.Background(), "summary_abc.md", "text/markdown", strings.NewReader("# Summaries"))
	require.NoError(t, err)

	rec := serve(env.server, http.MethodGet, "/download/summary_abc.md", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Summaries", rec.Body.String())
	assert.Equal(t, pipeline.MarkdownContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="summary_abc.md"`)

	rec = serve(env.server, http.MethodGet, "/download/missing.md", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(env.server, http.MethodGet, "/download/notes.txt", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(env.server, http.MethodGet, "/download/..%2Fsecret.md", "")
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestReportPages(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultConfig())
	doc := "# x - Website Summaries\n\n## Page 1: Home\nhello\n## Page 2: About\nworld\n"
	_, err := env.blobs.PutObject(context.Background(), "summary_abc.md", "text/markdown", strings.NewReader(doc))
	require.NoError(t, err)

	rec := serve(env.server, http.MethodGet, "/v1/reports/summary_abc.md/pages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		File  string `json:"file"`
		Pages []struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		} `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "summary_abc.md", body.File)
	require.Len(t, body.Pages, 2)
	assert.Equal(t, "Page 2: About", body.Pages[1].Title)
	assert.Equal(t, "world", body.Pages[1].Body)
}

func TestRuns(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultConfig())
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, env.runs.RecordRun(ctx, crawler.RunRecord{ID: "old", FinishedAt: now}))
	require.NoError(t, env.runs.RecordRun(ctx, crawler.RunRecord{ID: "new", FinishedAt: now.Add(time.Minute)}))

	rec := serve(env.server, http.MethodGet, "/v1/runs?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []crawler.RunRecord `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "new", list.Runs[0].ID)

	rec = serve(env.server, http.MethodGet, "/v1/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(env.server, http.MethodGet, "/v1/runs/old", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"old"`)

	rec = serve(env.server, http.MethodGet, "/v1/runs/none", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsEmptyListIsArray(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultConfig())

	rec := serve(env.server, http.MethodGet, "/v1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultConfig())

	assert.Equal(t, http.StatusOK, serve(env.server, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, serve(env.server, http.MethodGet, "/readyz", "").Code)

	serve(env.server, http.MethodGet, "/healthz", "")
	rec := serve(env.server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig()
	cfg.APIKey = "secret"
	env := newTestEnv(t, cfg)

	rec := serve(env.server, http.MethodGet, "/v1/runs", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(env.server, http.MethodGet, "/v1/runs?api_key=secret", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(env.server, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code, "probes stay open")
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{DefaultDepth: 1})
	env.runner.panic = true

	rec := serve(env.server, http.MethodPost, "/scrape", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, defaultConfig())

	rec := serve(env.server, http.MethodGet, "/healthz", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.Error(t, err)
	assert.Equal(t, "hijacker not supported", err.Error())

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.NoError(t, conn.Close())
	require.NoError(t, h.CloseClient())
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
