package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/metrics"
	"NewsBriefing/internal/ports"
)

// IngestorDeps wires fetchers and storage into the ingestion use case.
type IngestorDeps struct {
	Fetcher  ports.ArticleFetcher
	Articles ports.ArticleRepository
	Sources  ports.SourceRepository
	// Static sources are used when the repository has no active rows.
	Static []domain.Source
	Logger *slog.Logger
}

// Ingestor pulls every active source and stores new articles as pending.
type Ingestor struct {
	fetcher  ports.ArticleFetcher
	articles ports.ArticleRepository
	sources  ports.SourceRepository
	static   []domain.Source
	logger   *slog.Logger
	now      func() time.Time
}

// NewIngestor constructs the ingestion component.
func NewIngestor(deps IngestorDeps) *Ingestor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{
		fetcher:  deps.Fetcher,
		articles: deps.Articles,
		sources:  deps.Sources,
		static:   deps.Static,
		logger:   logger,
		now:      time.Now,
	}
}

// IngestActive fetches all active sources sequentially. A failing source is
// reported in its result and does not stop the others.
func (i *Ingestor) IngestActive(ctx context.Context) ([]domain.IngestResult, error) {
	sources, err := i.activeSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	results := make([]domain.IngestResult, 0, len(sources))
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, i.FetchAndIngest(ctx, source))
	}

	inserted, skipped := 0, 0
	for _, r := range results {
		inserted += r.Inserted
		skipped += r.Skipped
	}
	i.logger.Info("fetch complete", "sources", len(results), "inserted", inserted, "skipped", skipped)
	return results, nil
}

// FetchAndIngest fetches one source and inserts its articles one by one.
// Duplicates and failed inserts count as skipped.
func (i *Ingestor) FetchAndIngest(ctx context.Context, source domain.Source) domain.IngestResult {
	result := domain.IngestResult{Source: source.Name}

	articles, err := i.fetcher.Fetch(ctx, source)
	if err != nil {
		result.Error = err.Error()
		i.logger.Warn("fetch source failed", "source", source.Name, "error", err)
		metrics.ErrorsTotal.WithLabelValues("fetch", string(source.Type)).Inc()
		i.markFetched(ctx, source, &result.Error)
		return result
	}
	result.Fetched = len(articles)

	for _, article := range articles {
		if _, err := i.articles.Insert(ctx, article); err != nil {
			result.Skipped++
			if apperr.Is(err, apperr.CodeDBConflict) {
				metrics.ArticlesIngestedTotal.WithLabelValues(source.Name, "duplicate").Inc()
				continue
			}
			i.logger.Warn("insert article failed", "source", source.Name, "title", article.Title, "error", err)
			metrics.ArticlesIngestedTotal.WithLabelValues(source.Name, "error").Inc()
			continue
		}
		result.Inserted++
		metrics.ArticlesIngestedTotal.WithLabelValues(source.Name, "inserted").Inc()
	}

	i.markFetched(ctx, source, nil)
	return result
}

func (i *Ingestor) activeSources(ctx context.Context) ([]domain.Source, error) {
	if i.sources != nil {
		sources, err := i.sources.ActiveSources(ctx)
		if err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			return sources, nil
		}
	}
	return i.static, nil
}

// markFetched records the attempt; static sources have no row to update.
func (i *Ingestor) markFetched(ctx context.Context, source domain.Source, lastError *string) {
	if i.sources == nil || source.ID == "" {
		return
	}
	if err := i.sources.MarkFetched(ctx, source.ID, i.now().UTC(), lastError); err != nil {
		i.logger.Warn("update source failed", "source", source.Name, "error", err)
	}
}
