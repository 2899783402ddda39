package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/config"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/httpapi"
	infrallm "NewsBriefing/internal/infrastructure/llm"
	"NewsBriefing/internal/infrastructure/objectstore"
	"NewsBriefing/internal/infrastructure/parser"
	"NewsBriefing/internal/infrastructure/scheduler"
	"NewsBriefing/internal/infrastructure/storage"
	"NewsBriefing/internal/infrastructure/telegram"
	"NewsBriefing/internal/infrastructure/tts"
	"NewsBriefing/internal/infrastructure/usage"
	"NewsBriefing/internal/llm"
	"NewsBriefing/internal/logging"
	"NewsBriefing/internal/ports"
	"NewsBriefing/internal/scanner"
	"NewsBriefing/internal/usecase"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sqlx.DB
	repo     *storage.PostgresRepository
	buckets  bucketEnsurer
	redis    *redis.Client
	gateway  *llm.Gateway
	ingestor *usecase.Ingestor
	pipeline *usecase.Pipeline
	digests  *usecase.DigestComposer
	health   *usecase.HealthChecker
}

// New connects to the database and builds every component.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	repo := storage.NewPostgresRepository(db)

	a := &Application{cfg: cfg, logger: baseLogger, db: db, repo: repo}

	limiter := parser.NewHostLimiter(rate.Every(500*time.Millisecond), 1)
	registry := scanner.NewRegistry()
	registry.Register(parser.NewRSSScanner(nil, limiter))
	registry.Register(parser.NewGNewsScanner(cfg.GNews, nil, limiter))
	registry.Register(parser.NewArxivScanner(nil, limiter))
	source := parser.NewStrategySource(registry, baseLogger.With("component", "source"))

	a.ingestor = usecase.NewIngestor(usecase.IngestorDeps{
		Fetcher:  source,
		Articles: repo,
		Sources:  repo,
		Static:   parser.SitesAsSources(cfg.Sites),
		Logger:   baseLogger.With("component", "ingest"),
	})

	primary := a.provider(ctx, cfg.LLM.Primary)
	fallback := a.provider(ctx, cfg.LLM.Fallback)
	a.gateway = llm.NewGateway(llm.GatewayDeps{
		Primary:     primary,
		Fallback:    fallback,
		Counter:     a.counter(),
		CallTimeout: cfg.LLM.CallTimeout,
		Logger:      baseLogger.With("component", "llm"),
	})

	summariser := usecase.NewSummariser(a.gateway, cfg.LLM.RelevanceMin, baseLogger.With("component", "summariser"))
	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Articles:   repo,
		Summariser: summariser,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	var store ports.ObjectStorage
	if s, err := objectstore.New(cfg.Storage); err != nil {
		baseLogger.Warn("object storage disabled", "error", err)
	} else {
		store = s
		a.buckets = s
	}

	var notifier ports.Notifier
	if n := telegram.NewNotifier(cfg.Notifications.Telegram); n.Enabled() {
		notifier = n
	}

	a.digests = usecase.NewDigestComposer(usecase.DigestDeps{
		Articles:     repo,
		Digests:      repo,
		Generator:    a.gateway,
		Speech:       tts.NewClient(cfg.TTS),
		Storage:      store,
		Notifier:     notifier,
		Bucket:       cfg.Storage.Bucket,
		ArticleLimit: cfg.Pipeline.DigestArticleCount,
		MinArticles:  cfg.Pipeline.DigestMinArticles,
		Window:       cfg.Pipeline.DigestWindow,
		WideWindow:   cfg.Pipeline.DigestWideWindow,
		Location:     cfg.Scheduler.Location(),
		Logger:       baseLogger.With("component", "digest"),
	})

	a.health = usecase.NewHealthChecker(Version, repo, RequiredSettings(cfg)...)

	return a, nil
}

// Close releases the database and redis connections.
func (a *Application) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

type bucketEnsurer interface {
	EnsureBucket(ctx context.Context, bucket string) error
}

// Migrate applies the embedded schema and creates the digest audio bucket.
func (a *Application) Migrate(ctx context.Context) error {
	if err := a.repo.Migrate(ctx); err != nil {
		return err
	}
	return a.ensureBucket(ctx)
}

func (a *Application) ensureBucket(ctx context.Context) error {
	if a.buckets == nil {
		a.logger.Warn("object storage disabled, skipping bucket setup")
		return nil
	}
	if err := a.buckets.EnsureBucket(ctx, a.cfg.Storage.Bucket); err != nil {
		return apperr.Wrap(apperr.CodeUploadFailed, "ensure bucket "+a.cfg.Storage.Bucket, err)
	}
	a.logger.Info("bucket ready", "bucket", a.cfg.Storage.Bucket)
	return nil
}

// FetchNews ingests every active source.
func (a *Application) FetchNews(ctx context.Context) ([]domain.IngestResult, error) {
	return a.ingestor.IngestActive(ctx)
}

// Summarise processes one batch; a non-positive size uses the configured default.
func (a *Application) Summarise(ctx context.Context, batchSize int) (domain.BatchResult, error) {
	if batchSize <= 0 {
		batchSize = a.cfg.Pipeline.BatchSize
	}
	return a.pipeline.ProcessPending(ctx, batchSize)
}

// Digest generates today's digest.
func (a *Application) Digest(ctx context.Context) (domain.DigestResult, error) {
	return a.digests.Generate(ctx)
}

// RetryAudio regenerates audio for an existing digest.
func (a *Application) RetryAudio(ctx context.Context, digestID string) (string, error) {
	return a.digests.RetryAudio(ctx, digestID)
}

// UsageStats reports the primary provider's daily usage.
func (a *Application) UsageStats(ctx context.Context) domain.UsageStats {
	return a.gateway.UsageStats(ctx)
}

// Health reports configuration and database readiness.
func (a *Application) Health(ctx context.Context) domain.HealthReport {
	return a.health.Check(ctx)
}

// Serve runs the cron jobs and the HTTP trigger server until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.Location(), a.logger.With("component", "cron"))
	sched := usecase.NewScheduler(driver, a.logger.With("component", "scheduler"), a.jobs()...)

	server := httpapi.NewServer(httpapi.Deps{
		Ingest:        a.ingestor,
		Batches:       a.pipeline,
		Digests:       a.digests,
		Usage:         a.gateway,
		Health:        a.health,
		CronSecret:    a.cfg.HTTP.CronSecret,
		BatchSize:     a.cfg.Pipeline.BatchSize,
		JobTimeout:    a.cfg.Pipeline.JobTimeout,
		DigestTimeout: a.cfg.Pipeline.DigestTimeout,
		Logger:        a.logger.With("component", "http"),
	})
	if a.cfg.HTTP.CronSecret == "" {
		a.logger.Warn("CRON_SECRET is empty, job trigger routes will reject every request")
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(a.cfg.HTTP.Addr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, server.Shutdown(shutdownCtx), sched.Stop(shutdownCtx))
}

func (a *Application) jobs() []usecase.Job {
	return []usecase.Job{
		{
			Name:    "fetch-news",
			Spec:    a.cfg.Scheduler.FetchCron,
			Timeout: a.cfg.Pipeline.JobTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.FetchNews(ctx)
				return err
			},
		},
		{
			Name:    "summarise",
			Spec:    a.cfg.Scheduler.SummariseCron,
			Timeout: a.cfg.Pipeline.JobTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.Summarise(ctx, 0)
				return err
			},
		},
		{
			Name:    "daily-digest",
			Spec:    a.cfg.Scheduler.DigestCron,
			Timeout: a.cfg.Pipeline.DigestTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.Digest(ctx)
				if apperr.Is(err, apperr.CodeDigestExists) {
					return nil
				}
				return err
			},
		},
	}
}

func (a *Application) provider(ctx context.Context, name string) ports.TextProvider {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	p, err := NewProvider(ctx, name, a.cfg.LLM)
	if err != nil {
		a.logger.Warn("llm provider disabled", "provider", name, "error", err)
		return nil
	}
	return p
}

func (a *Application) counter() ports.UsageCounter {
	u := a.cfg.Usage
	if strings.EqualFold(u.Backend, "redis") {
		a.redis = redis.NewClient(&redis.Options{Addr: u.RedisAddr})
		return usage.NewRedisCounter(a.redis, u.KeyPrefix, a.cfg.LLM.DailyLimit, a.cfg.LLM.WarningRatio,
			a.logger.With("component", "usage"))
	}
	return llm.NewMemoryCounter(a.cfg.LLM.DailyLimit, a.cfg.LLM.WarningRatio)
}

// NewProvider builds the named LLM backend.
func NewProvider(ctx context.Context, name string, cfg config.LLMConfig) (ports.TextProvider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini":
		p, err := infrallm.NewGeminiProvider(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "groq":
		if cfg.Groq.APIKey == "" {
			return nil, apperr.NewConfigMissing("GROQ_API_KEY")
		}
		return infrallm.NewChatCompletionsClient("groq", cfg.Groq), nil
	case "anthropic", "claude":
		p, err := infrallm.NewAnthropicProvider(cfg.Anthropic)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}

// RequiredSettings lists the values the health check expects to be set.
func RequiredSettings(cfg config.Config) []usecase.Setting {
	settings := []usecase.Setting{
		{Name: "DATABASE_URL", Value: cfg.Database.DSN},
		{Name: "CRON_SECRET", Value: cfg.HTTP.CronSecret},
	}
	switch strings.ToLower(cfg.LLM.Primary) {
	case "gemini":
		settings = append(settings, usecase.Setting{Name: "GEMINI_API_KEY", Value: cfg.LLM.Gemini.APIKey})
	case "groq":
		settings = append(settings, usecase.Setting{Name: "GROQ_API_KEY", Value: cfg.LLM.Groq.APIKey})
	case "anthropic", "claude":
		settings = append(settings, usecase.Setting{Name: "ANTHROPIC_API_KEY", Value: cfg.LLM.Anthropic.APIKey})
	}
	return settings
}

type unreachable struct{ err error }

func (u unreachable) Ping(context.Context) error { return u.err }

// UnreachableHealth reports health when the application could not be built.
func UnreachableHealth(ctx context.Context, cfg config.Config, err error) domain.HealthReport {
	return usecase.NewHealthChecker(Version, unreachable{err: err}, RequiredSettings(cfg)...).Check(ctx)
}
