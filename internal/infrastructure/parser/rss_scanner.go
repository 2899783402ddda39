package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/scanner"
	"NewsBriefing/internal/textnorm"
)

const rssTimeout = 10 * time.Second

// RSSScanner reads RSS/Atom feeds into normalised articles.
type RSSScanner struct {
	client  *http.Client
	limiter *HostLimiter
}

// NewRSSScanner wires an HTTP client; a nil client gets a 10 second timeout.
func NewRSSScanner(client *http.Client, limiter *HostLimiter) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: rssTimeout}
	}
	return &RSSScanner{client: client, limiter: limiter}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return string(domain.SourceRSS)
}

// Scan fetches the feed at the "url" option.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FetchedArticle, error) {
	feedURL := req.Option("url", "")
	if feedURL == "" {
		return nil, fmt.Errorf("rss source %s has no url configured", req.SourceName)
	}
	if err := s.limiter.Wait(ctx, feedURL); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", feedURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, rssTimeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = s.client
	fp.UserAgent = "NewsBriefing/1.0"
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	return itemsToArticles(feed.Items, req.SourceName), nil
}

func itemsToArticles(items []*gofeed.Item, sourceName string) []domain.FetchedArticle {
	slugs := textnorm.NewSlugSet()
	articles := make([]domain.FetchedArticle, 0, len(items))
	for _, item := range items {
		if item == nil || strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Link) == "" {
			continue
		}

		title := textnorm.SanitizeText(item.Title, textnorm.MaxTitleLength)
		article := domain.FetchedArticle{
			Title:       title,
			Slug:        slugs.Next(textnorm.Slugify(title)),
			URL:         strings.TrimSpace(item.Link),
			Source:      sourceName,
			PublishedAt: itemPublished(item),
		}

		if thumb := ExtractThumbnail(item); thumb != "" {
			article.ThumbnailURL = &thumb
		}

		raw := item.Description
		if strings.TrimSpace(raw) == "" {
			raw = item.Content
		}
		if excerpt := textnorm.SanitizeText(raw, textnorm.MaxExcerptLength); excerpt != "" {
			article.RawExcerpt = &excerpt
		}

		articles = append(articles, article)
	}
	return articles
}

func itemPublished(item *gofeed.Item) *time.Time {
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		return &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		return &t
	default:
		return nil
	}
}

// ExtractThumbnail picks the item image.
// Priority: media:thumbnail > media:content (image) > enclosure (image/*).
func ExtractThumbnail(item *gofeed.Item) string {
	if mediaExt, ok := item.Extensions["media"]; ok {
		for _, thumb := range mediaExt["thumbnail"] {
			if u := thumb.Attrs["url"]; isHTTPURL(u) {
				return u
			}
		}
		for _, content := range mediaExt["content"] {
			if content.Attrs["medium"] == "image" || strings.HasPrefix(content.Attrs["type"], "image/") {
				if u := content.Attrs["url"]; isHTTPURL(u) {
					return u
				}
			}
		}
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && isHTTPURL(enc.URL) {
			return enc.URL
		}
	}
	return ""
}

func isHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
