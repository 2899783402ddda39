package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/metrics"
	"NewsBriefing/internal/ports"
)

const (
	defaultBatchSize   = 10
	defaultConcurrency = 3
)

// PipelineDeps wires storage and the summariser into the batch orchestrator.
type PipelineDeps struct {
	Articles    ports.ArticleRepository
	Summariser  *Summariser
	Concurrency int
	Logger      *slog.Logger
}

// Pipeline summarises pending articles in bounded-width batches.
type Pipeline struct {
	articles    ports.ArticleRepository
	summariser  *Summariser
	concurrency int
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		articles:    deps.Articles,
		summariser:  deps.Summariser,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ProcessPending summarises up to batchSize pending articles, oldest first.
// Per-article failures land in the results. The run fails when the selection fails or
// when no LLM provider is configured; unconfigured articles stay pending.
func (p *Pipeline) ProcessPending(ctx context.Context, batchSize int) (domain.BatchResult, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	articles, err := p.articles.Pending(ctx, batchSize)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("select_pending", string(apperr.CodeDBFetchFailed)).Inc()
		if apperr.CodeOf(err) == "" {
			err = apperr.Wrap(apperr.CodeDBFetchFailed, "select pending articles", err)
		}
		return domain.BatchResult{}, err
	}
	if len(articles) == 0 {
		return domain.BatchResult{Results: []domain.SummarisationResult{}}, nil
	}

	results := make([]domain.SummarisationResult, len(articles))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, article := range articles {
		g.Go(func() error {
			results[i] = p.summarise(ctx, article)
			return nil
		})
	}
	_ = g.Wait()

	batch := domain.BatchResult{Results: make([]domain.SummarisationResult, 0, len(results))}
	unconfigured := 0
	for _, result := range results {
		if result.Status == domain.StatusPending {
			unconfigured++
			continue
		}
		batch.Processed++
		batch.Results = append(batch.Results, result)
		metrics.SummariesTotal.WithLabelValues(string(result.Status)).Inc()
		if result.Status == domain.StatusCompleted {
			batch.Completed++
		} else {
			batch.Failed++
		}

		if err := p.articles.ApplySummary(ctx, result); err != nil {
			p.logger.Error("persist summary failed", "article", result.ID, "status", result.Status, "error", err)
			metrics.ErrorsTotal.WithLabelValues("apply_summary", string(apperr.CodeOf(err))).Inc()
		}
	}

	if unconfigured > 0 {
		p.logger.Error("llm providers are not configured, articles left pending", "articles", unconfigured)
		metrics.ErrorsTotal.WithLabelValues("summarise", string(apperr.CodeConfigMissing)).Inc()
		return batch, apperr.NewConfigMissing("LLM provider")
	}

	p.logger.Info("summarise batch complete",
		"processed", batch.Processed,
		"completed", batch.Completed,
		"failed", batch.Failed)
	return batch, nil
}

// summarise isolates one article so a panic cannot take down the batch.
func (p *Pipeline) summarise(ctx context.Context, article domain.Article) (result domain.SummarisationResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("summarise article panicked", "article", article.ID, "panic", r)
			result = domain.SummarisationResult{
				ID:     article.ID,
				Status: domain.StatusSkipped,
				Error:  fmt.Sprintf("internal error: %v", r),
			}
		}
	}()
	return p.summariser.SummariseOne(ctx, article)
}
