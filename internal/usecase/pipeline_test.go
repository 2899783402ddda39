package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/llm"
)

func pendingArticles(n int) []domain.Article {
	base := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	out := make([]domain.Article, 0, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		out = append(out, domain.Article{
			ID:            id,
			Title:         "Story " + id,
			URL:           "https://example.com/" + id,
			FetchedAt:     base.Add(time.Duration(i) * time.Minute),
			SummaryStatus: domain.StatusPending,
		})
	}
	return out
}

func newTestPipeline(repo *fakeArticles, gen *fakeGenerator) *Pipeline {
	return NewPipeline(PipelineDeps{
		Articles:   repo,
		Summariser: NewSummariser(gen, 5, nil),
	})
}

func TestProcessPendingEmpty(t *testing.T) {
	t.Parallel()

	gen := textGenerator(completeAnswer)
	res, err := newTestPipeline(newFakeArticles(), gen).ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Empty(t, res.Results)
	assert.Equal(t, 0, gen.callCount())
}

func TestProcessPendingTransitionsOnce(t *testing.T) {
	t.Parallel()

	repo := newFakeArticles(pendingArticles(4)...)
	gen := textGenerator(completeAnswer)
	p := newTestPipeline(repo, gen)

	res, err := p.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 4, res.Completed)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, domain.StatusCompleted, repo.status("a"))

	again, err := p.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Processed)
	assert.Equal(t, 4, gen.callCount())
}

func TestProcessPendingRespectsBatchSizeOldestFirst(t *testing.T) {
	t.Parallel()

	repo := newFakeArticles(pendingArticles(5)...)
	res, err := newTestPipeline(repo, textGenerator(completeAnswer)).ProcessPending(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "a", res.Results[0].ID)
	assert.Equal(t, "b", res.Results[1].ID)
	assert.Equal(t, domain.StatusPending, repo.status("c"))
}

func TestProcessPendingCountsFailures(t *testing.T) {
	t.Parallel()

	repo := newFakeArticles(pendingArticles(3)...)
	gen := &fakeGenerator{respond: func(_, content string) (string, error) {
		switch {
		case strings.Contains(content, "Story a"):
			return "", apperr.NewSafetyBlock("gemini", nil)
		case strings.Contains(content, "Story b"):
			return `{"classification":"llm","relevance_score":2}`, nil
		default:
			return completeAnswer, nil
		}
	}}

	res, err := newTestPipeline(repo, gen).ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, domain.StatusFailedSafety, repo.status("a"))
	assert.Equal(t, domain.StatusSkipped, repo.status("b"))
	assert.Equal(t, domain.StatusCompleted, repo.status("c"))
}

func TestProcessPendingBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak int32
	gen := &fakeGenerator{respond: func(string, string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return completeAnswer, nil
	}}

	repo := newFakeArticles(pendingArticles(9)...)
	res, err := newTestPipeline(repo, gen).ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 9, res.Completed)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestProcessPendingPersistFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	repo := newFakeArticles(pendingArticles(3)...)
	repo.applyErr = map[string]error{"b": errors.New("write timeout")}

	res, err := newTestPipeline(repo, textGenerator(completeAnswer)).ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, domain.StatusCompleted, repo.status("a"))
	assert.Equal(t, domain.StatusPending, repo.status("b"))
	assert.Equal(t, domain.StatusCompleted, repo.status("c"))
}

func TestProcessPendingSelectFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeArticles()
	repo.pendErr = errors.New("connection refused")

	_, err := newTestPipeline(repo, textGenerator(completeAnswer)).ProcessPending(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeDBFetchFailed))
}

func TestProcessPendingRecoversPanickingTask(t *testing.T) {
	t.Parallel()

	repo := newFakeArticles(pendingArticles(2)...)
	gen := &fakeGenerator{respond: func(_, content string) (string, error) {
		if strings.Contains(content, "Story a") {
			panic("nil map")
		}
		return completeAnswer, nil
	}}

	res, err := newTestPipeline(repo, gen).ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, domain.StatusSkipped, repo.status("a"))
}

func TestProcessPendingWithoutProvidersLeavesBacklogPending(t *testing.T) {
	t.Parallel()

	repo := newFakeArticles(pendingArticles(3)...)
	p := NewPipeline(PipelineDeps{
		Articles:   repo,
		Summariser: NewSummariser(llm.NewGateway(llm.GatewayDeps{}), 5, nil),
	})

	res, err := p.ProcessPending(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConfigMissing))
	assert.Equal(t, 0, res.Processed)
	assert.Empty(t, res.Results)
	assert.Empty(t, repo.applied)

	left, err := repo.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, left, 3)
}
