package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsBriefing/internal/config"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/ports"
	"NewsBriefing/internal/scanner"
)

// StrategySource implements ArticleFetcher via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.ArticleFetcher = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		logger:   log,
		now:      time.Now,
	}
}

// Fetch resolves the scanner for the source type and runs it.
func (s *StrategySource) Fetch(ctx context.Context, source domain.Source) ([]domain.FetchedArticle, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	name, err := scannerFor(source)
	if err != nil {
		return nil, err
	}
	strategy, err := s.registry.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.Name, err)
	}

	s.debug("process source", "source", source.Name, "type", source.Type, "scanner", name)

	req := scanner.Request{
		Day:        s.now(),
		SourceName: source.Name,
		Options:    source.Config,
	}
	results, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan source %s: %w", source.Name, err)
	}

	for i := range results {
		if results[i].Source == "" {
			results[i].Source = source.Name
		}
	}
	s.debug("source produced articles", "source", source.Name, "count", len(results))
	return results, nil
}

func scannerFor(source domain.Source) (string, error) {
	switch source.Type {
	case domain.SourceRSS:
		return "rss", nil
	case domain.SourceArxiv:
		return "arxiv", nil
	case domain.SourceAPI:
		provider := source.Config["provider"]
		if provider == "" {
			provider = "gnews"
		}
		return provider, nil
	default:
		return "", fmt.Errorf("unknown source type %q for %s", source.Type, source.Name)
	}
}

// SitesAsSources turns static site config into sources, one per category endpoint.
func SitesAsSources(sites []config.SiteConfig) []domain.Source {
	var sources []domain.Source
	for _, site := range sites {
		if len(site.Categories) == 0 {
			sources = append(sources, domain.Source{
				Name:     site.Name,
				Type:     domain.SourceType(site.Scanner),
				Config:   copyOptions(site.Options),
				IsActive: true,
			})
			continue
		}
		for _, cat := range site.Categories {
			opts := copyOptions(site.Options)
			opts["url"] = cat.URL
			opts["category"] = cat.Name
			sources = append(sources, domain.Source{
				Name:     site.Name,
				Type:     domain.SourceType(site.Scanner),
				Config:   opts,
				IsActive: true,
			})
		}
	}
	return sources
}

func copyOptions(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
