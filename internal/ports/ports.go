package ports

import (
	"context"
	"time"

	"NewsBriefing/internal/domain"
)

// ArticleRepository persists fetched articles and summarisation outcomes.
type ArticleRepository interface {
	// Insert stores a pending article; a slug or url collision returns an apperr DB_CONFLICT.
	Insert(ctx context.Context, article domain.FetchedArticle) (string, error)
	// Pending returns up to limit pending articles, oldest fetched first.
	Pending(ctx context.Context, limit int) ([]domain.Article, error)
	// ApplySummary writes a result only while the article is still pending.
	ApplySummary(ctx context.Context, result domain.SummarisationResult) error
	// DigestCandidates returns completed on-topic articles fresher than since.
	DigestCandidates(ctx context.Context, since time.Time, categories []domain.Category, limit int) ([]domain.Article, error)
}

// DigestRepository stores daily digests.
type DigestRepository interface {
	ExistsForDate(ctx context.Context, date string) (bool, error)
	// Create inserts a digest; a date collision returns an apperr DIGEST_EXISTS.
	Create(ctx context.Context, digest domain.DailyDigest) (string, error)
	Get(ctx context.Context, id string) (domain.DailyDigest, bool, error)
	UpdateAudio(ctx context.Context, id string, status domain.AudioStatus, audioURL *string) error
}

// SourceRepository reads configured sources and records fetch outcomes.
type SourceRepository interface {
	ActiveSources(ctx context.Context) ([]domain.Source, error)
	MarkFetched(ctx context.Context, id string, at time.Time, lastError *string) error
}

// ArticleFetcher pulls normalised articles for a single source.
type ArticleFetcher interface {
	Fetch(ctx context.Context, source domain.Source) ([]domain.FetchedArticle, error)
}

// TextProvider is one LLM backend.
type TextProvider interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// UsageCounter tracks daily primary-provider calls.
type UsageCounter interface {
	ShouldUseProvider(ctx context.Context) bool
	IsNearLimit(ctx context.Context) bool
	Record(ctx context.Context)
	Stats(ctx context.Context) domain.UsageStats
}

// SpeechSynthesizer converts plain text to audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (domain.Audio, error)
}

// ObjectStorage uploads blobs and resolves their public URL.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string, overwrite bool) error
	PublicURL(bucket, key string) string
}

// Notifier announces a finished digest on an outbound channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	Add(spec, name string, job func(ctx context.Context, trigger time.Time)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
