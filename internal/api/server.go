package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
	"github.com/JakeFAU/site-summarizer/internal/metrics"
	"github.com/JakeFAU/site-summarizer/internal/pipeline"
	"github.com/JakeFAU/site-summarizer/internal/report"
)

const (
	completeMessage = "Crawling + Summaries Complete"
	defaultRunLimit = 20
	maxRunLimit     = 200
)

var reportFileName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*\.md$`)

// Runner executes one crawl and report pipeline run.
type Runner interface {
	Run(ctx context.Context, seedURL string, maxDepth int) (pipeline.Result, error)
}

// Config holds the HTTP-facing knobs of the server.
type Config struct {
	DefaultDepth   int
	MaxDepth       int
	RequestTimeout time.Duration
	APIKey         string
}

// Server wires HTTP handlers to the report pipeline and stores.
type Server struct {
	router chi.Router
	runner Runner
	blobs  crawler.BlobStore
	runs   crawler.RunStore
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	runner Runner,
	blobs crawler.BlobStore,
	runs crawler.RunStore,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner: runner,
		blobs:  blobs,
		runs:   runs,
		cfg:    cfg,
		logger: logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(timeoutMiddleware(cfg.RequestTimeout))
		}
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Post("/scrape", s.scrape)
		r.Get("/download/{filename}", s.download)
		r.Route("/v1", func(r chi.Router) {
			r.Get("/runs", s.listRuns)
			r.Get("/runs/{run_id}", s.getRun)
			r.Get("/reports/{filename}/pages", s.reportPages)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeRequest struct {
	URL   string `json:"url"`
	Depth *int   `json:"depth"`
}

type scrapeResponse struct {
	Message     string `json:"message"`
	DownloadURL string `json:"download_url"`
	ReportURL   string `json:"report_url"`
	RunID       string `json:"run_id"`
	Pages       int    `json:"pages"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !validSeed(req.URL) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http or https URL")
		return
	}
	depth := s.cfg.DefaultDepth
	if req.Depth != nil {
		depth = *req.Depth
	}
	if depth < 0 || (s.cfg.MaxDepth > 0 && depth > s.cfg.MaxDepth) {
		writeError(w, http.StatusBadRequest, "depth must be between 0 and "+strconv.Itoa(s.cfg.MaxDepth))
		return
	}

	res, err := s.runner.Run(r.Context(), req.URL, depth)
	if err != nil {
		s.logger.Error("Scrape failed",
			zap.String("url", req.URL),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scrapeResponse{
		Message:     completeMessage,
		DownloadURL: "/download/" + res.SummaryFile,
		ReportURL:   "/download/" + res.ReportFile,
		RunID:       res.RunID,
		Pages:       res.Pages,
	})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	data, ok := s.loadReport(w, r, name)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", pipeline.MarkdownContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("Failed to write download", zap.String("file", name), zap.Error(err))
	}
}

func (s *Server) reportPages(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	data, ok := s.loadReport(w, r, name)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file":  name,
		"pages": report.Sections(string(data)),
	})
}

// loadReport fetches a report object, writing the error response itself when
// it returns false.
func (s *Server) loadReport(w http.ResponseWriter, r *http.Request, name string) ([]byte, bool) {
	if !reportFileName.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return nil, false
	}
	data, err := s.blobs.GetObject(r.Context(), name)
	switch {
	case errors.Is(err, crawler.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found")
		return nil, false
	case err != nil:
		s.logger.Error("Failed to read report", zap.String("file", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return nil, false
	}
	return data, true
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRunLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxRunLimit))
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []crawler.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "run_id")
	run, err := s.runs.GetRun(r.Context(), id)
	switch {
	case errors.Is(err, crawler.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		s.logger.Error("Failed to load run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func validSeed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
