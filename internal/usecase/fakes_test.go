package usecase

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/llm"
)

type fakeArticles struct {
	mu       sync.Mutex
	rows     map[string]*domain.Article
	urls     map[string]bool
	nextID   int
	applied  []domain.SummarisationResult
	pendErr  error
	applyErr map[string]error
	insErr   map[string]error

	candidateCalls []time.Time
	candidates     [][]domain.Article
}

func newFakeArticles(articles ...domain.Article) *fakeArticles {
	f := &fakeArticles{rows: map[string]*domain.Article{}, urls: map[string]bool{}}
	for i := range articles {
		a := articles[i]
		f.rows[a.ID] = &a
		f.urls[a.URL] = true
	}
	return f
}

func (f *fakeArticles) Insert(_ context.Context, article domain.FetchedArticle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insErr[article.URL]; err != nil {
		return "", err
	}
	if f.urls[article.URL] {
		return "", apperr.New(apperr.CodeDBConflict, "duplicate "+article.URL)
	}
	f.nextID++
	id := "new-" + strconv.Itoa(f.nextID)
	f.urls[article.URL] = true
	f.rows[id] = &domain.Article{ID: id, Title: article.Title, URL: article.URL, SummaryStatus: domain.StatusPending}
	return id, nil
}

func (f *fakeArticles) Pending(_ context.Context, limit int) ([]domain.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendErr != nil {
		return nil, f.pendErr
	}
	var out []domain.Article
	for _, a := range f.rows {
		if a.SummaryStatus == domain.StatusPending {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FetchedAt.Before(out[j].FetchedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeArticles) ApplySummary(_ context.Context, result domain.SummarisationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.applyErr[result.ID]; err != nil {
		return err
	}
	f.applied = append(f.applied, result)
	if a, ok := f.rows[result.ID]; ok && a.SummaryStatus == domain.StatusPending {
		a.SummaryStatus = result.Status
		a.AISummary = result.Summary
	}
	return nil
}

func (f *fakeArticles) DigestCandidates(_ context.Context, since time.Time, _ []domain.Category, _ int) ([]domain.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.candidateCalls)
	f.candidateCalls = append(f.candidateCalls, since)
	if call < len(f.candidates) {
		return f.candidates[call], nil
	}
	return nil, nil
}

func (f *fakeArticles) status(id string) domain.SummaryStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].SummaryStatus
}

type fakeDigests struct {
	mu      sync.Mutex
	rows    map[string]*domain.DailyDigest
	created int
	updates []domain.AudioStatus
}

func newFakeDigests(digests ...domain.DailyDigest) *fakeDigests {
	f := &fakeDigests{rows: map[string]*domain.DailyDigest{}}
	for i := range digests {
		d := digests[i]
		f.rows[d.ID] = &d
	}
	return f
}

func (f *fakeDigests) ExistsForDate(_ context.Context, date string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.rows {
		if d.DigestDate == date {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDigests) Create(_ context.Context, digest domain.DailyDigest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.rows {
		if d.DigestDate == digest.DigestDate {
			return "", apperr.NewDigestExists(digest.DigestDate)
		}
	}
	f.created++
	digest.ID = "digest-" + strconv.Itoa(f.created)
	f.rows[digest.ID] = &digest
	return digest.ID, nil
}

func (f *fakeDigests) Get(_ context.Context, id string) (domain.DailyDigest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return domain.DailyDigest{}, false, nil
	}
	return *d, true, nil
}

func (f *fakeDigests) UpdateAudio(_ context.Context, id string, status domain.AudioStatus, audioURL *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return apperr.NewDigestNotFound(id)
	}
	d.AudioStatus = status
	if audioURL != nil {
		d.AudioURL = audioURL
	}
	f.updates = append(f.updates, status)
	return nil
}

func (f *fakeDigests) row(id string) domain.DailyDigest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

// fakeGenerator answers per task; respond may block or panic to exercise callers.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []string
	inputs  []string
	respond func(task, content string) (string, error)
}

func (f *fakeGenerator) GenerateText(_ context.Context, task, content string) (llm.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, task)
	f.inputs = append(f.inputs, content)
	respond := f.respond
	f.mu.Unlock()

	text, err := respond(task, content)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Text: text, Provider: "fake"}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func textGenerator(text string) *fakeGenerator {
	return &fakeGenerator{respond: func(string, string) (string, error) { return text, nil }}
}

type fakeSpeech struct {
	text string
	err  error
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) (domain.Audio, error) {
	f.text = text
	if f.err != nil {
		return domain.Audio{}, f.err
	}
	return domain.Audio{Data: []byte("mp3"), ContentType: "audio/mpeg"}, nil
}

type fakeStorage struct {
	bucket    string
	key       string
	overwrite bool
	err       error
}

func (f *fakeStorage) Upload(_ context.Context, bucket, key string, _ []byte, _ string, overwrite bool) error {
	f.bucket, f.key, f.overwrite = bucket, key, overwrite
	return f.err
}

func (f *fakeStorage) PublicURL(bucket, key string) string {
	return "https://cdn.example.com/" + bucket + "/" + key
}

type fakeNotifier struct {
	messages []string
	err      error
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.messages = append(f.messages, digest)
	return f.err
}

type fakeFetcher struct {
	articles map[string][]domain.FetchedArticle
	errs     map[string]error
	fetched  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, source domain.Source) ([]domain.FetchedArticle, error) {
	f.fetched = append(f.fetched, source.Name)
	if err := f.errs[source.Name]; err != nil {
		return nil, err
	}
	return f.articles[source.Name], nil
}

type markCall struct {
	id        string
	lastError *string
}

type fakeSources struct {
	active []domain.Source
	err    error
	marks  []markCall
}

func (f *fakeSources) ActiveSources(context.Context) ([]domain.Source, error) {
	return f.active, f.err
}

func (f *fakeSources) MarkFetched(_ context.Context, id string, _ time.Time, lastError *string) error {
	f.marks = append(f.marks, markCall{id: id, lastError: lastError})
	return nil
}

func strPtr(s string) *string { return &s }

func categoryPtr(c domain.Category) *domain.Category { return &c }
