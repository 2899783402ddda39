package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/llm"
	"NewsBriefing/internal/prompts"
)

const defaultRelevanceThreshold = 5

// TextGenerator is the part of the LLM gateway the use cases depend on.
type TextGenerator interface {
	GenerateText(ctx context.Context, task, content string) (llm.Response, error)
}

// Classification is the structured answer requested by the article prompt.
type Classification struct {
	Classification *string  `json:"classification"`
	RelevanceScore *float64 `json:"relevance_score"`
	TLDR           string   `json:"tldr"`
	KeyPoints      []string `json:"key_points"`
	TechStack      []string `json:"tech_stack"`
	WhyItMatters   string   `json:"why_it_matters"`
}

// Summariser classifies and summarises one article at a time.
type Summariser struct {
	generator TextGenerator
	threshold int
	logger    *slog.Logger
}

// NewSummariser builds a summariser; threshold <= 0 selects the default of 5.
func NewSummariser(generator TextGenerator, threshold int, logger *slog.Logger) *Summariser {
	if threshold <= 0 {
		threshold = defaultRelevanceThreshold
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Summariser{generator: generator, threshold: threshold, logger: logger}
}

// SummariseOne never returns an error: every failure is folded into the result status.
// A missing provider configuration leaves the result pending so the article is retried.
func (s *Summariser) SummariseOne(ctx context.Context, article domain.Article) domain.SummarisationResult {
	input := prompts.ArticleSummaryInput(article.Title, article.Source, article.RawExcerpt)
	resp, err := s.generator.GenerateText(ctx, prompts.ArticleSummary, input)
	if err != nil {
		s.logger.Warn("summarise article failed", "article", article.ID, "code", apperr.CodeOf(err), "error", err)
		return failureResult(article.ID, err)
	}

	parsed, ok := ParseClassification(resp.Text)
	if !ok {
		raw := resp.Text
		return domain.SummarisationResult{ID: article.ID, Status: domain.StatusCompleted, Summary: &raw}
	}

	category := domain.ParseCategory(*parsed.Classification)
	score := *parsed.RelevanceScore
	techStack := parsed.TechStack
	if techStack == nil {
		techStack = []string{}
	}
	metadata := &domain.ArticleMetadata{RelevanceScore: int(math.Round(score)), TechStack: techStack}

	if score < float64(s.threshold) {
		return domain.SummarisationResult{
			ID:       article.ID,
			Status:   domain.StatusSkipped,
			Category: &category,
			Metadata: metadata,
			Error:    fmt.Sprintf("low relevance score: %s/%d", strconv.FormatFloat(score, 'f', -1, 64), s.threshold),
		}
	}

	summary := FormatSummary(parsed)
	return domain.SummarisationResult{
		ID:       article.ID,
		Status:   domain.StatusCompleted,
		Summary:  &summary,
		Category: &category,
		Metadata: metadata,
	}
}

func failureResult(id string, err error) domain.SummarisationResult {
	switch {
	case apperr.Is(err, apperr.CodeConfigMissing):
		return domain.SummarisationResult{ID: id, Status: domain.StatusPending, Error: err.Error()}
	case apperr.IsSafetyBlock(err):
		return domain.SummarisationResult{ID: id, Status: domain.StatusFailedSafety, Error: "content blocked by safety filters"}
	case apperr.IsQuotaOrRateLimit(err):
		return domain.SummarisationResult{ID: id, Status: domain.StatusFailedQuota, Error: err.Error()}
	default:
		return domain.SummarisationResult{ID: id, Status: domain.StatusSkipped, Error: err.Error()}
	}
}

// ParseClassification decodes the model answer, tolerating a markdown code fence.
// It reports false when the JSON is invalid or lacks a classification or a numeric score.
// Optional fields of the wrong shape are dropped rather than failing the parse.
func ParseClassification(text string) (Classification, bool) {
	var raw struct {
		Classification *string         `json:"classification"`
		RelevanceScore *float64        `json:"relevance_score"`
		TLDR           json.RawMessage `json:"tldr"`
		KeyPoints      json.RawMessage `json:"key_points"`
		TechStack      json.RawMessage `json:"tech_stack"`
		WhyItMatters   json.RawMessage `json:"why_it_matters"`
	}
	if err := json.Unmarshal([]byte(stripFence(text)), &raw); err != nil {
		return Classification{}, false
	}
	if raw.Classification == nil || *raw.Classification == "" || raw.RelevanceScore == nil {
		return Classification{}, false
	}
	return Classification{
		Classification: raw.Classification,
		RelevanceScore: raw.RelevanceScore,
		TLDR:           looseString(raw.TLDR),
		KeyPoints:      looseStrings(raw.KeyPoints),
		TechStack:      looseStrings(raw.TechStack),
		WhyItMatters:   looseString(raw.WhyItMatters),
	}, true
}

func looseString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// looseStrings accepts a string list, a single string, or a list with stray non-string items.
func looseStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		rest = strings.TrimPrefix(rest, "json")
		s = strings.TrimPrefix(rest, "\n")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// FormatSummary renders the stored markdown: tldr, key points, why it matters.
func FormatSummary(c Classification) string {
	var b strings.Builder
	b.WriteString(c.TLDR)
	b.WriteString("\n\n")
	if len(c.KeyPoints) > 0 {
		for _, point := range c.KeyPoints {
			b.WriteString("- ")
			b.WriteString(point)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if c.WhyItMatters != "" {
		b.WriteString("**Why it matters:** ")
		b.WriteString(c.WhyItMatters)
	}
	return strings.TrimRight(b.String(), "\n")
}
