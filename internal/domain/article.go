package domain

import "time"

// SummaryStatus tracks an article through summarisation.
type SummaryStatus string

const (
	StatusPending      SummaryStatus = "pending"
	StatusCompleted    SummaryStatus = "completed"
	StatusFailedSafety SummaryStatus = "failed_safety"
	StatusFailedQuota  SummaryStatus = "failed_quota"
	StatusSkipped      SummaryStatus = "skipped"
)

// Category is the topical bucket assigned by the classifier.
type Category string

const (
	CategoryLLM      Category = "llm"
	CategoryAgents   Category = "agents"
	CategoryModels   Category = "models"
	CategoryResearch Category = "research"
	CategoryTools    Category = "tools"
	CategoryOther    Category = "other"
)

// DigestCategories are the categories eligible for the daily digest.
var DigestCategories = []Category{CategoryLLM, CategoryAgents, CategoryModels, CategoryResearch}

// ParseCategory maps a classifier label to a known category, defaulting to other.
func ParseCategory(raw string) Category {
	switch c := Category(raw); c {
	case CategoryLLM, CategoryAgents, CategoryModels, CategoryResearch, CategoryTools, CategoryOther:
		return c
	default:
		return CategoryOther
	}
}

// ArticleMetadata keeps classifier output that is not part of the summary text.
type ArticleMetadata struct {
	RelevanceScore int      `json:"relevance_score"`
	TechStack      []string `json:"tech_stack"`
}

// FetchedArticle is the normalised output of every source fetcher.
type FetchedArticle struct {
	Title        string
	Slug         string
	URL          string
	Source       string
	PublishedAt  *time.Time
	ThumbnailURL *string
	RawExcerpt   *string
}

// Article is a persisted news item.
type Article struct {
	ID            string
	Title         string
	Slug          string
	URL           string
	Source        *string
	PublishedAt   *time.Time
	FetchedAt     time.Time
	ThumbnailURL  *string
	RawExcerpt    *string
	AISummary     *string
	SummaryStatus SummaryStatus
	Category      *Category
	Metadata      *ArticleMetadata
	IsFeatured    bool
	IsArchived    bool
}

// SummarisationResult is the outcome of summarising one article.
type SummarisationResult struct {
	ID       string
	Status   SummaryStatus
	Summary  *string
	Category *Category
	Metadata *ArticleMetadata
	Error    string
}

// BatchResult reports one orchestrator run.
type BatchResult struct {
	Processed int
	Completed int
	Failed    int
	Results   []SummarisationResult
}
