package domain

import "time"

// SourceType selects the fetcher strategy.
type SourceType string

const (
	SourceRSS   SourceType = "rss"
	SourceAPI   SourceType = "api"
	SourceArxiv SourceType = "arxiv"
)

// Source is a configured upstream feed.
type Source struct {
	ID            string
	Name          string
	Type          SourceType
	Config        map[string]string
	IsActive      bool
	LastFetchedAt *time.Time
	LastError     *string
}

// IngestResult summarises one source's fetch and insert pass.
type IngestResult struct {
	Source   string `json:"source"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Error    string `json:"error,omitempty"`
}
