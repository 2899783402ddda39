package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/prompts"
)

var digestNow = time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)

func digestArticles(n int) []domain.Article {
	out := make([]domain.Article, 0, n)
	for i := 0; i < n; i++ {
		id := "art-" + string(rune('a'+i))
		out = append(out, domain.Article{
			ID:            id,
			Title:         "Model launch " + id,
			Source:        strPtr("Lab Blog"),
			AISummary:     strPtr("A new model."),
			Category:      categoryPtr(domain.CategoryModels),
			SummaryStatus: domain.StatusCompleted,
		})
	}
	return out
}

func digestGenerator() *fakeGenerator {
	return &fakeGenerator{respond: func(task, _ string) (string, error) {
		if task == prompts.AudioScript {
			return "## Hello\n\n**Good morning!** The new AI API shipped, e.g. today.", nil
		}
		return "## The Big Picture\nModels everywhere.", nil
	}}
}

type digestFixture struct {
	articles *fakeArticles
	digests  *fakeDigests
	gen      *fakeGenerator
	speech   *fakeSpeech
	storage  *fakeStorage
	notifier *fakeNotifier
	composer *DigestComposer
}

func newDigestFixture(candidates ...[]domain.Article) *digestFixture {
	f := &digestFixture{
		articles: newFakeArticles(),
		digests:  newFakeDigests(),
		gen:      digestGenerator(),
		speech:   &fakeSpeech{},
		storage:  &fakeStorage{},
		notifier: &fakeNotifier{},
	}
	f.articles.candidates = candidates
	f.composer = NewDigestComposer(DigestDeps{
		Articles:  f.articles,
		Digests:   f.digests,
		Generator: f.gen,
		Speech:    f.speech,
		Storage:   f.storage,
		Notifier:  f.notifier,
	})
	f.composer.now = func() time.Time { return digestNow }
	return f
}

func TestGenerateDigestCreatesTextAndAudio(t *testing.T) {
	t.Parallel()

	f := newDigestFixture(digestArticles(4))

	res, err := f.composer.Generate(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.DigestID)
	require.NotNil(t, res.SummaryText)
	require.NotNil(t, res.AudioURL)
	assert.False(t, res.Skipped)
	assert.Equal(t, 4, res.ArticleCount)
	assert.Equal(t, "## The Big Picture\nModels everywhere.", *res.SummaryText)
	assert.Equal(t, "https://cdn.example.com/digests/digest-2026-03-02.mp3", *res.AudioURL)

	assert.Equal(t, []string{prompts.DailyDigest, prompts.AudioScript}, f.gen.calls)
	assert.Equal(t, prompts.AudioScriptInput(*res.SummaryText), f.gen.inputs[1])

	assert.Equal(t, "digests", f.storage.bucket)
	assert.Equal(t, "digest-2026-03-02.mp3", f.storage.key)
	assert.True(t, f.storage.overwrite)

	assert.NotContains(t, f.speech.text, "##")
	assert.NotContains(t, f.speech.text, "**")
	assert.Contains(t, f.speech.text, "A.I.")
	assert.Contains(t, f.speech.text, "A.P.I.")
	assert.Contains(t, f.speech.text, "for example")

	row := f.digests.row(*res.DigestID)
	assert.Equal(t, "2026-03-02", row.DigestDate)
	assert.Equal(t, domain.AudioCompleted, row.AudioStatus)
	assert.Equal(t, []string{"art-a", "art-b", "art-c", "art-d"}, row.ArticleIDs)

	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "Listen: https://cdn.example.com/digests/digest-2026-03-02.mp3")

	require.Len(t, f.articles.candidateCalls, 1)
	assert.Equal(t, digestNow.Add(-24*time.Hour), f.articles.candidateCalls[0])
}

func TestGenerateDigestTwiceSameDay(t *testing.T) {
	t.Parallel()

	f := newDigestFixture(digestArticles(3), digestArticles(3))

	_, err := f.composer.Generate(context.Background())
	require.NoError(t, err)

	_, err = f.composer.Generate(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsDigestExists(err))
	assert.Equal(t, 1, f.digests.created)
}

func TestGenerateDigestSkipsWhenBothWindowsThin(t *testing.T) {
	t.Parallel()

	f := newDigestFixture(digestArticles(1), digestArticles(2))

	res, err := f.composer.Generate(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Nil(t, res.DigestID)
	assert.Nil(t, res.SummaryText)
	assert.Nil(t, res.AudioURL)
	assert.Equal(t, 0, res.ArticleCount)
	assert.Equal(t, 0, f.gen.callCount())
	assert.Equal(t, 0, f.digests.created)

	require.Len(t, f.articles.candidateCalls, 2)
	assert.Equal(t, digestNow.Add(-24*time.Hour), f.articles.candidateCalls[0])
	assert.Equal(t, digestNow.Add(-48*time.Hour), f.articles.candidateCalls[1])
}

func TestGenerateDigestWidensWindow(t *testing.T) {
	t.Parallel()

	f := newDigestFixture(digestArticles(2), digestArticles(5))

	res, err := f.composer.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.ArticleCount)
}

func TestGenerateDigestAudioFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	f := newDigestFixture(digestArticles(3))
	f.speech.err = apperr.New(apperr.CodeTTSFailed, "tts returned 500")

	res, err := f.composer.Generate(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.DigestID)
	require.NotNil(t, res.SummaryText)
	assert.Nil(t, res.AudioURL)
	assert.Equal(t, domain.AudioFailed, f.digests.row(*res.DigestID).AudioStatus)

	require.Len(t, f.notifier.messages, 1)
	assert.NotContains(t, f.notifier.messages[0], "Listen:")
}

func TestGenerateDigestWithoutStorageMarksAudioFailed(t *testing.T) {
	t.Parallel()

	f := newDigestFixture(digestArticles(3))
	composer := NewDigestComposer(DigestDeps{
		Articles:  f.articles,
		Digests:   f.digests,
		Generator: f.gen,
		Speech:    f.speech,
	})
	composer.now = func() time.Time { return digestNow }

	res, err := composer.Generate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.DigestID)
	assert.Nil(t, res.AudioURL)
	assert.Equal(t, domain.AudioFailed, f.digests.row(*res.DigestID).AudioStatus)
}

func TestGenerateDigestScriptFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	f := newDigestFixture(digestArticles(3))
	f.gen.respond = func(task, _ string) (string, error) {
		if task == prompts.AudioScript {
			return "", apperr.New(apperr.CodeLLMBothFailed, "down")
		}
		return "written", nil
	}

	res, err := f.composer.Generate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.DigestID)
	assert.Nil(t, res.AudioURL)
	assert.Equal(t, domain.AudioFailed, f.digests.row(*res.DigestID).AudioStatus)
}

func TestGenerateDigestTextFailureCreatesNoRow(t *testing.T) {
	t.Parallel()

	f := newDigestFixture(digestArticles(3))
	f.gen.respond = func(string, string) (string, error) {
		return "", apperr.NewQuotaExceeded("exhausted", nil)
	}

	_, err := f.composer.Generate(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeQuotaExceeded))
	assert.Equal(t, 0, f.digests.created)
}

func TestGenerateDigestNotifierFailureIgnored(t *testing.T) {
	t.Parallel()

	f := newDigestFixture(digestArticles(3))
	f.notifier.err = errors.New("chat not found")

	res, err := f.composer.Generate(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, res.AudioURL)
}

func TestGenerateDigestUsesConfiguredLocation(t *testing.T) {
	t.Parallel()

	f := newDigestFixture(digestArticles(3))
	f.composer.location = time.FixedZone("UTC+3", 3*60*60)

	res, err := f.composer.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", f.digests.row(*res.DigestID).DigestDate)
	assert.Equal(t, "digest-2026-03-03.mp3", f.storage.key)
}

func TestRetryAudio(t *testing.T) {
	t.Parallel()

	text := "## Key Releases\n- **Model** shipped"
	f := newDigestFixture()
	f.digests = newFakeDigests(
		domain.DailyDigest{ID: "failed", DigestDate: "2026-03-01", SummaryText: &text, AudioStatus: domain.AudioFailed},
		domain.DailyDigest{ID: "done", DigestDate: "2026-02-28", SummaryText: &text, AudioStatus: domain.AudioCompleted},
		domain.DailyDigest{ID: "empty", DigestDate: "2026-02-27", AudioStatus: domain.AudioFailed},
	)
	f.composer.digests = f.digests

	t.Run("regenerates failed audio", func(t *testing.T) {
		url, err := f.composer.RetryAudio(context.Background(), "failed")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/digests/digest-2026-03-01.mp3", url)
		row := f.digests.row("failed")
		assert.Equal(t, domain.AudioCompleted, row.AudioStatus)
		require.NotNil(t, row.AudioURL)
		assert.Equal(t, url, *row.AudioURL)
	})

	t.Run("missing digest", func(t *testing.T) {
		_, err := f.composer.RetryAudio(context.Background(), "nope")
		assert.True(t, apperr.Is(err, apperr.CodeDigestNotFound))
	})

	t.Run("already completed", func(t *testing.T) {
		_, err := f.composer.RetryAudio(context.Background(), "done")
		assert.True(t, apperr.Is(err, apperr.CodeAudioCompleted))
	})

	t.Run("no text", func(t *testing.T) {
		_, err := f.composer.RetryAudio(context.Background(), "empty")
		assert.True(t, apperr.Is(err, apperr.CodeNoDigestText))
	})
}

func TestRetryAudioUploadFailurePropagates(t *testing.T) {
	t.Parallel()

	text := "digest"
	f := newDigestFixture()
	f.digests = newFakeDigests(domain.DailyDigest{ID: "d1", DigestDate: "2026-03-01", SummaryText: &text, AudioStatus: domain.AudioPending})
	f.composer.digests = f.digests
	f.storage.err = errors.New("bucket missing")

	_, err := f.composer.RetryAudio(context.Background(), "d1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeUploadFailed))
	assert.Equal(t, domain.AudioFailed, f.digests.row("d1").AudioStatus)
}
