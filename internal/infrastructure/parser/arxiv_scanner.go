package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/scanner"
	"NewsBriefing/internal/textnorm"
)

const (
	arxivBaseURL = "https://arxiv.org"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// arxivEntry is one row of a listing page before normalisation.
type arxivEntry struct {
	ID          string
	Title       string
	Abstract    string
	URL         string
	Source      string
	PublishedAt time.Time
}

// ArxivScanner crawls category listing pages and keeps papers announced on the requested day.
type ArxivScanner struct {
	client   *http.Client
	limiter  *HostLimiter
	pageSize int
}

// NewArxivScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivScanner(client *http.Client, limiter *HostLimiter) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ArxivScanner{client: client, limiter: limiter, pageSize: 200}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return string(domain.SourceArxiv)
}

// Scan pages through the category listing named by the "url" option and returns
// all papers published on the requested day.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FetchedArticle, error) {
	listURL := req.Option("url", "")
	if listURL == "" {
		return nil, fmt.Errorf("no category url provided for source %s", req.SourceName)
	}
	category := req.Option("category", "")

	day := req.Day
	if day.IsZero() {
		day = time.Now()
	}
	targetDay := day.UTC().Truncate(24 * time.Hour)

	slugs := textnorm.NewSlugSet()
	results := make([]domain.FetchedArticle, 0)
	seen := map[string]struct{}{}

	skip := 0
	for {
		pageURL, err := buildPageURL(listURL, skip, a.pageSize)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}

		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}

		entries, shouldContinue := a.extractEntries(doc, targetDay, req.SourceName, category)
		for _, entry := range entries {
			if _, ok := seen[entry.ID]; ok {
				continue
			}
			seen[entry.ID] = struct{}{}
			results = append(results, entry.toFetched(slugs))
		}

		if !shouldContinue {
			break
		}
		skip += a.pageSize
	}

	return results, nil
}

func (e arxivEntry) toFetched(slugs *textnorm.SlugSet) domain.FetchedArticle {
	title := textnorm.SanitizeText(e.Title, textnorm.MaxTitleLength)
	published := e.PublishedAt.UTC()
	article := domain.FetchedArticle{
		Title:       title,
		Slug:        slugs.Next(textnorm.Slugify(title)),
		URL:         e.URL,
		Source:      e.Source,
		PublishedAt: &published,
	}
	if excerpt := textnorm.SanitizeText(e.Abstract, textnorm.MaxExcerptLength); excerpt != "" {
		article.RawExcerpt = &excerpt
	}
	return article
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := a.limiter.Wait(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("wait for arxiv: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsBriefing/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (a *ArxivScanner) extractEntries(doc *goquery.Document, targetDay time.Time, sourceName, category string) ([]arxivEntry, bool) {
	var (
		collected    []arxivEntry
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		entry, ok := parseEntry(dt, dd, sourceName, category)
		if !ok {
			return true
		}

		entryDay := entry.PublishedAt.UTC().Truncate(24 * time.Hour)
		if entryDay.Equal(targetDay) {
			collected = append(collected, entry)
		}
		if entryDay.Before(targetDay) {
			continueScan = false
			return false
		}

		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

func parseEntry(dt, dd *goquery.Selection, sourceName, category string) (arxivEntry, bool) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")

	id := strings.TrimSpace(link.Text())
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if href == "" {
		return arxivEntry{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))
	if title == "" {
		return arxivEntry{}, false
	}

	abstract := dd.Find(".mathjax").Not(".list-title").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	publishedAt := time.Now().UTC()
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = parsed
		}
	}

	if id == "" {
		id = href
	}

	source := sourceName
	if category != "" {
		source = fmt.Sprintf("%s/%s", sourceName, category)
	}

	return arxivEntry{
		ID:          id,
		Title:       title,
		Abstract:    abstract,
		URL:         href,
		Source:      source,
		PublishedAt: publishedAt,
	}, true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
