// Package httpapi exposes the pipeline jobs as authenticated HTTP triggers.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/domain"
)

// Ingester runs a fetch pass over every active source.
type Ingester interface {
	IngestActive(ctx context.Context) ([]domain.IngestResult, error)
}

// BatchRunner summarises pending articles.
type BatchRunner interface {
	ProcessPending(ctx context.Context, batchSize int) (domain.BatchResult, error)
}

// DigestService builds digests and retries their audio.
type DigestService interface {
	Generate(ctx context.Context) (domain.DigestResult, error)
	RetryAudio(ctx context.Context, digestID string) (string, error)
}

// UsageReporter exposes the primary provider's daily usage.
type UsageReporter interface {
	UsageStats(ctx context.Context) domain.UsageStats
}

// HealthReporter produces the readiness report.
type HealthReporter interface {
	Check(ctx context.Context) domain.HealthReport
}

// Deps wires the server to the use cases it triggers.
type Deps struct {
	Ingest        Ingester
	Batches       BatchRunner
	Digests       DigestService
	Usage         UsageReporter
	Health        HealthReporter
	Metrics       http.Handler
	CronSecret    string
	BatchSize     int
	JobTimeout    time.Duration
	DigestTimeout time.Duration
	Logger        *slog.Logger
}

// Server owns the echo instance serving job triggers.
type Server struct {
	echo *echo.Echo
	deps Deps
	log  *slog.Logger
}

// NewServer registers every route.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, deps: deps, log: logger}

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(deps.Metrics))

	methods := []string{http.MethodGet, http.MethodPost}
	jobs := e.Group("/jobs", CronSecret(deps.CronSecret, logger))
	jobs.Match(methods, "/fetch-news", s.fetchNews)
	jobs.Match(methods, "/summarise", s.summarise)
	jobs.Match(methods, "/daily-digest", s.dailyDigest)
	jobs.POST("/digests/:id/retry-audio", s.retryAudio)

	admin := e.Group("/admin", CronSecret(deps.CronSecret, logger))
	admin.GET("/usage", s.usage)

	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	report := s.deps.Health.Check(c.Request().Context())
	status := http.StatusOK
	if report.Status != domain.HealthOK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}

type fetchResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Results []domain.IngestResult `json:"results"`
}

func (s *Server) fetchNews(c echo.Context) error {
	ctx, cancel := withTimeout(c.Request().Context(), s.deps.JobTimeout)
	defer cancel()

	results, err := s.deps.Ingest.IngestActive(ctx)
	if err != nil {
		return s.fail(c, "fetch-news", err)
	}

	inserted, skipped := 0, 0
	for _, r := range results {
		inserted += r.Inserted
		skipped += r.Skipped
	}
	return c.JSON(http.StatusOK, fetchResponse{
		Success: true,
		Message: fmt.Sprintf("Fetch complete: %d inserted, %d skipped", inserted, skipped),
		Results: results,
	})
}

type articleResult struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Category string `json:"category,omitempty"`
	Error    string `json:"error,omitempty"`
}

type summariseResponse struct {
	Success   bool            `json:"success"`
	Processed int             `json:"processed"`
	Completed int             `json:"completed"`
	Failed    int             `json:"failed"`
	Results   []articleResult `json:"results"`
	Message   string          `json:"message"`
}

func (s *Server) summarise(c echo.Context) error {
	batch := s.deps.BatchSize
	if raw := c.QueryParam("batch"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid batch size"})
		}
		batch = n
	}

	ctx, cancel := withTimeout(c.Request().Context(), s.deps.JobTimeout)
	defer cancel()

	res, err := s.deps.Batches.ProcessPending(ctx, batch)
	if err != nil {
		return s.fail(c, "summarise", err)
	}

	results := make([]articleResult, 0, len(res.Results))
	for _, r := range res.Results {
		item := articleResult{ID: r.ID, Status: string(r.Status), Error: r.Error}
		if r.Category != nil {
			item.Category = string(*r.Category)
		}
		results = append(results, item)
	}
	return c.JSON(http.StatusOK, summariseResponse{
		Success:   true,
		Processed: res.Processed,
		Completed: res.Completed,
		Failed:    res.Failed,
		Results:   results,
		Message:   fmt.Sprintf("Processed %d articles: %d completed, %d failed", res.Processed, res.Completed, res.Failed),
	})
}

type digestResponse struct {
	Success        bool    `json:"success"`
	Skipped        bool    `json:"skipped,omitempty"`
	DigestID       *string `json:"digestId,omitempty"`
	ArticleCount   int     `json:"articleCount"`
	AudioGenerated bool    `json:"audioGenerated"`
	AudioURL       *string `json:"audioUrl,omitempty"`
	Message        string  `json:"message"`
}

type skippedBody struct {
	Error   string `json:"error"`
	Skipped bool   `json:"skipped"`
}

func (s *Server) dailyDigest(c echo.Context) error {
	ctx, cancel := withTimeout(c.Request().Context(), s.deps.DigestTimeout)
	defer cancel()

	res, err := s.deps.Digests.Generate(ctx)
	if apperr.Is(err, apperr.CodeDigestExists) {
		return c.JSON(http.StatusOK, skippedBody{Error: "Digest already exists for today", Skipped: true})
	}
	if err != nil {
		return s.fail(c, "daily-digest", err)
	}

	if res.Skipped {
		return c.JSON(http.StatusOK, digestResponse{
			Success:      true,
			Skipped:      true,
			ArticleCount: res.ArticleCount,
			Message:      "Not enough articles for a digest",
		})
	}
	return c.JSON(http.StatusOK, digestResponse{
		Success:        true,
		DigestID:       res.DigestID,
		ArticleCount:   res.ArticleCount,
		AudioGenerated: res.AudioURL != nil,
		AudioURL:       res.AudioURL,
		Message:        fmt.Sprintf("Digest generated from %d articles", res.ArticleCount),
	})
}

type retryResponse struct {
	Success  bool   `json:"success"`
	AudioURL string `json:"audioUrl"`
}

func (s *Server) retryAudio(c echo.Context) error {
	ctx, cancel := withTimeout(c.Request().Context(), s.deps.DigestTimeout)
	defer cancel()

	url, err := s.deps.Digests.RetryAudio(ctx, c.Param("id"))
	if err != nil {
		return s.fail(c, "retry-audio", err)
	}
	return c.JSON(http.StatusOK, retryResponse{Success: true, AudioURL: url})
}

func (s *Server) usage(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Usage.UsageStats(c.Request().Context()))
}

func (s *Server) fail(c echo.Context, job string, err error) error {
	status := statusFor(err)
	s.log.Error("job failed", "job", job, "status", status, "error", err)
	return c.JSON(status, errorBody{
		Error:   job + " failed",
		Message: err.Error(),
		Code:    string(apperr.CodeOf(err)),
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
