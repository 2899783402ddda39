package domain

import "time"

// AudioStatus tracks speech synthesis for a digest.
type AudioStatus string

const (
	AudioPending   AudioStatus = "pending"
	AudioCompleted AudioStatus = "completed"
	AudioFailed    AudioStatus = "failed"
)

// DigestDateLayout formats digest dates and audio object keys.
const DigestDateLayout = "2006-01-02"

// DailyDigest is the once-per-day briefing.
type DailyDigest struct {
	ID          string
	DigestDate  string
	SummaryText *string
	AudioURL    *string
	AudioStatus AudioStatus
	ArticleIDs  []string
	CreatedAt   time.Time
}

// DigestResult is returned by a digest generation run.
type DigestResult struct {
	DigestID     *string
	SummaryText  *string
	AudioURL     *string
	ArticleCount int
	Skipped      bool
}

// Audio is a synthesised speech payload.
type Audio struct {
	Data        []byte
	ContentType string
}
