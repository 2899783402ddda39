package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/metrics"
	"NewsBriefing/internal/ports"
	"NewsBriefing/internal/prompts"
	"NewsBriefing/internal/ttsprep"
)

const (
	defaultDigestBucket  = "digests"
	defaultArticleLimit  = 10
	defaultMinArticles   = 3
	defaultDigestWindow  = 24 * time.Hour
	defaultWideWindow    = 48 * time.Hour
	defaultAudioMIMEType = "audio/mpeg"
)

// DigestDeps wires everything the digest composer touches.
type DigestDeps struct {
	Articles  ports.ArticleRepository
	Digests   ports.DigestRepository
	Generator TextGenerator
	Speech    ports.SpeechSynthesizer
	Storage   ports.ObjectStorage
	// Notifier is optional.
	Notifier     ports.Notifier
	Bucket       string
	ArticleLimit int
	MinArticles  int
	Window       time.Duration
	WideWindow   time.Duration
	Location     *time.Location
	Logger       *slog.Logger
}

// DigestComposer produces at most one written and spoken briefing per day.
type DigestComposer struct {
	articles     ports.ArticleRepository
	digests      ports.DigestRepository
	generator    TextGenerator
	speech       ports.SpeechSynthesizer
	storage      ports.ObjectStorage
	notifier     ports.Notifier
	bucket       string
	articleLimit int
	minArticles  int
	window       time.Duration
	wideWindow   time.Duration
	location     *time.Location
	logger       *slog.Logger
	now          func() time.Time
}

// NewDigestComposer applies defaults for every unset tuning field.
func NewDigestComposer(deps DigestDeps) *DigestComposer {
	c := &DigestComposer{
		articles:     deps.Articles,
		digests:      deps.Digests,
		generator:    deps.Generator,
		speech:       deps.Speech,
		storage:      deps.Storage,
		notifier:     deps.Notifier,
		bucket:       deps.Bucket,
		articleLimit: deps.ArticleLimit,
		minArticles:  deps.MinArticles,
		window:       deps.Window,
		wideWindow:   deps.WideWindow,
		location:     deps.Location,
		logger:       deps.Logger,
		now:          time.Now,
	}
	if c.bucket == "" {
		c.bucket = defaultDigestBucket
	}
	if c.articleLimit <= 0 {
		c.articleLimit = defaultArticleLimit
	}
	if c.minArticles <= 0 {
		c.minArticles = defaultMinArticles
	}
	if c.window <= 0 {
		c.window = defaultDigestWindow
	}
	if c.wideWindow <= 0 {
		c.wideWindow = defaultWideWindow
	}
	if c.location == nil {
		c.location = time.UTC
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// AudioObjectKey names the stored audio for a digest date.
func AudioObjectKey(date string) string {
	return "digest-" + date + ".mp3"
}

// Generate creates today's digest. An existing digest yields DIGEST_EXISTS; too few
// candidates yield a skipped result. Audio failures are recorded on the row and
// do not fail the run.
func (c *DigestComposer) Generate(ctx context.Context) (domain.DigestResult, error) {
	now := c.now()
	date := now.In(c.location).Format(domain.DigestDateLayout)

	exists, err := c.digests.ExistsForDate(ctx, date)
	if err != nil {
		metrics.DigestRunsTotal.WithLabelValues("error").Inc()
		return domain.DigestResult{}, fmt.Errorf("check digest for %s: %w", date, err)
	}
	if exists {
		metrics.DigestRunsTotal.WithLabelValues("exists").Inc()
		return domain.DigestResult{}, apperr.NewDigestExists(date)
	}

	articles, err := c.candidates(ctx, now)
	if err != nil {
		metrics.DigestRunsTotal.WithLabelValues("error").Inc()
		return domain.DigestResult{}, err
	}
	if len(articles) < c.minArticles {
		c.logger.Info("digest skipped: not enough articles", "date", date, "found", len(articles), "min", c.minArticles)
		metrics.DigestRunsTotal.WithLabelValues("skipped").Inc()
		return domain.DigestResult{Skipped: true}, nil
	}

	resp, err := c.generator.GenerateText(ctx, prompts.DailyDigest, prompts.DailyDigestInput(articles))
	if err != nil {
		metrics.DigestRunsTotal.WithLabelValues("error").Inc()
		return domain.DigestResult{}, fmt.Errorf("generate digest text: %w", err)
	}
	text := resp.Text

	ids := make([]string, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	id, err := c.digests.Create(ctx, domain.DailyDigest{
		DigestDate:  date,
		SummaryText: &text,
		AudioStatus: domain.AudioPending,
		ArticleIDs:  ids,
	})
	if err != nil {
		metrics.DigestRunsTotal.WithLabelValues("error").Inc()
		if apperr.CodeOf(err) == "" {
			err = apperr.Wrap(apperr.CodeDBInsertFailed, "create digest", err)
		}
		return domain.DigestResult{}, err
	}

	result := domain.DigestResult{
		DigestID:     &id,
		SummaryText:  &text,
		ArticleCount: len(articles),
	}

	url, err := c.produceAudio(ctx, id, date, text)
	if err != nil {
		c.logger.Error("digest audio failed", "digest", id, "date", date, "code", apperr.CodeOf(err), "error", err)
		metrics.DigestRunsTotal.WithLabelValues("audio_failed").Inc()
	} else {
		result.AudioURL = &url
		metrics.DigestRunsTotal.WithLabelValues("completed").Inc()
	}

	c.announce(ctx, date, text, result.AudioURL)
	c.logger.Info("digest created", "digest", id, "date", date, "articles", len(articles), "audio", result.AudioURL != nil)
	return result, nil
}

// RetryAudio regenerates audio for a digest whose text exists but whose audio is missing.
func (c *DigestComposer) RetryAudio(ctx context.Context, digestID string) (string, error) {
	digest, ok, err := c.digests.Get(ctx, digestID)
	if err != nil {
		return "", fmt.Errorf("load digest %s: %w", digestID, err)
	}
	if !ok {
		return "", apperr.NewDigestNotFound(digestID)
	}
	if digest.AudioStatus == domain.AudioCompleted {
		return "", apperr.New(apperr.CodeAudioCompleted, "audio already generated for digest "+digestID)
	}
	if digest.SummaryText == nil || strings.TrimSpace(*digest.SummaryText) == "" {
		return "", apperr.New(apperr.CodeNoDigestText, "no summary text available for digest "+digestID)
	}

	url, err := c.produceAudio(ctx, digest.ID, digest.DigestDate, *digest.SummaryText)
	if err != nil {
		return "", err
	}
	c.logger.Info("digest audio regenerated", "digest", digestID, "url", url)
	return url, nil
}

// candidates widens the lookback once when the first window is too thin.
func (c *DigestComposer) candidates(ctx context.Context, now time.Time) ([]domain.Article, error) {
	articles, err := c.articles.DigestCandidates(ctx, now.Add(-c.window), domain.DigestCategories, c.articleLimit)
	if err != nil {
		return nil, fmt.Errorf("select digest articles: %w", err)
	}
	if len(articles) >= c.minArticles {
		return articles, nil
	}

	articles, err = c.articles.DigestCandidates(ctx, now.Add(-c.wideWindow), domain.DigestCategories, c.articleLimit)
	if err != nil {
		return nil, fmt.Errorf("select digest articles (wide window): %w", err)
	}
	return articles, nil
}

// produceAudio renders and stores audio, then records the outcome on the digest row.
func (c *DigestComposer) produceAudio(ctx context.Context, id, date, text string) (string, error) {
	url, err := c.renderAudio(ctx, date, text)
	if err != nil {
		if uErr := c.digests.UpdateAudio(ctx, id, domain.AudioFailed, nil); uErr != nil {
			c.logger.Error("mark digest audio failed", "digest", id, "error", uErr)
		}
		return "", err
	}
	if err := c.digests.UpdateAudio(ctx, id, domain.AudioCompleted, &url); err != nil {
		return "", fmt.Errorf("record digest audio: %w", err)
	}
	return url, nil
}

func (c *DigestComposer) renderAudio(ctx context.Context, date, text string) (string, error) {
	if c.speech == nil || c.storage == nil {
		return "", apperr.NewConfigMissing("speech synthesis or object storage")
	}
	script, err := c.generator.GenerateText(ctx, prompts.AudioScript, prompts.AudioScriptInput(text))
	if err != nil {
		return "", fmt.Errorf("generate audio script: %w", err)
	}

	spoken := ttsprep.Preprocess(script.Text)
	if spoken == "" {
		return "", apperr.New(apperr.CodeTTSFailed, "audio script is empty after preprocessing")
	}

	audio, err := c.speech.Synthesize(ctx, spoken)
	if err != nil {
		return "", fmt.Errorf("synthesize speech: %w", err)
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = defaultAudioMIMEType
	}

	key := AudioObjectKey(date)
	if err := c.storage.Upload(ctx, c.bucket, key, audio.Data, contentType, true); err != nil {
		if apperr.CodeOf(err) == "" {
			err = apperr.Wrap(apperr.CodeUploadFailed, "upload "+key, err)
		}
		return "", err
	}
	return c.storage.PublicURL(c.bucket, key), nil
}

func (c *DigestComposer) announce(ctx context.Context, date, text string, audioURL *string) {
	if c.notifier == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Today in AI, %s\n\n%s", date, text)
	if audioURL != nil {
		fmt.Fprintf(&b, "\n\nListen: %s", *audioURL)
	}
	if err := c.notifier.PublishDigest(ctx, b.String()); err != nil {
		c.logger.Warn("announce digest failed", "date", date, "error", err)
	}
}
