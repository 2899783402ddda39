package domain

// UsageStats is a snapshot of the primary provider's daily usage.
type UsageStats struct {
	Date          string `json:"date"`
	CallCount     int    `json:"callCount"`
	Limit         int    `json:"limit"`
	PercentUsed   int    `json:"percentUsed"`
	UsingFallback bool   `json:"usingFallback"`
}
