package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/config"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/scanner"
	"NewsBriefing/internal/textnorm"
)

const gnewsTimeout = 15 * time.Second

// HTTPStatusError reports a non-2xx upstream response.
type HTTPStatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Service, e.StatusCode, e.Body)
}

type gnewsResponse struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Content     string  `json:"content"`
	URL         string  `json:"url"`
	Image       *string `json:"image"`
	PublishedAt string  `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

// GNewsScanner queries the GNews search API.
type GNewsScanner struct {
	cfg     config.GNewsConfig
	client  *http.Client
	limiter *HostLimiter
}

// NewGNewsScanner wires API defaults and an HTTP client.
func NewGNewsScanner(cfg config.GNewsConfig, client *http.Client, limiter *HostLimiter) *GNewsScanner {
	if client == nil {
		client = &http.Client{Timeout: gnewsTimeout}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://gnews.io/api/v4"
	}
	return &GNewsScanner{cfg: cfg, client: client, limiter: limiter}
}

// Name identifies the strategy inside the registry.
func (g *GNewsScanner) Name() string {
	return "gnews"
}

// Scan runs one search using query, lang and max options over configured defaults.
func (g *GNewsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FetchedArticle, error) {
	if g.cfg.APIKey == "" {
		return nil, apperr.NewConfigMissing("GNEWS_API_KEY")
	}

	endpoint, err := g.searchURL(req)
	if err != nil {
		return nil, err
	}
	if err := g.limiter.Wait(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("wait for gnews: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, gnewsTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request gnews: %w", withoutURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &HTTPStatusError{Service: "GNews", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded gnewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode gnews response: %w", err)
	}

	return gnewsToArticles(decoded.Articles), nil
}

func (g *GNewsScanner) searchURL(req scanner.Request) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(g.cfg.BaseURL, "/") + "/search")
	if err != nil {
		return "", fmt.Errorf("invalid gnews base url: %w", err)
	}

	maxResults := g.cfg.Max
	if raw := req.Option("max", ""); raw != "" {
		if n, convErr := strconv.Atoi(raw); convErr == nil && n > 0 {
			maxResults = n
		}
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	q := url.Values{}
	q.Set("q", req.Option("query", orDefault(g.cfg.Query, "artificial intelligence")))
	q.Set("lang", req.Option("lang", orDefault(g.cfg.Lang, "en")))
	q.Set("max", strconv.Itoa(maxResults))
	q.Set("token", g.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// withoutURL drops the request URL from transport errors; it carries the API token.
func withoutURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func gnewsToArticles(items []gnewsArticle) []domain.FetchedArticle {
	slugs := textnorm.NewSlugSet()
	articles := make([]domain.FetchedArticle, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.URL) == "" {
			continue
		}

		title := textnorm.SanitizeText(item.Title, textnorm.MaxTitleLength)
		article := domain.FetchedArticle{
			Title:  title,
			Slug:   slugs.Next(textnorm.Slugify(title)),
			URL:    item.URL,
			Source: item.Source.Name,
		}
		if published, err := time.Parse(time.RFC3339, item.PublishedAt); err == nil {
			published = published.UTC()
			article.PublishedAt = &published
		}
		if item.Image != nil && *item.Image != "" {
			image := *item.Image
			article.ThumbnailURL = &image
		}
		if item.Description != "" {
			excerpt := textnorm.SanitizeText(item.Description, textnorm.MaxExcerptLength)
			article.RawExcerpt = &excerpt
		}
		articles = append(articles, article)
	}
	return articles
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
