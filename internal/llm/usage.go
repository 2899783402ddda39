package llm

import (
	"context"
	"math"
	"sync"
	"time"

	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/ports"
)

const (
	// DefaultDailyLimit sits 20 calls below the provider's 250 requests per day.
	DefaultDailyLimit = 230
	// DefaultWarningRatio is the share of the limit that triggers a warning.
	DefaultWarningRatio = 0.8
)

// MemoryCounter is a process-local daily call counter that resets at UTC midnight.
type MemoryCounter struct {
	limit  int
	warnAt int
	now    func() time.Time

	mu    sync.Mutex
	day   string
	count int
}

var _ ports.UsageCounter = (*MemoryCounter)(nil)

// NewMemoryCounter builds a counter; non-positive arguments fall back to defaults.
func NewMemoryCounter(limit int, warningRatio float64) *MemoryCounter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if warningRatio <= 0 || warningRatio > 1 {
		warningRatio = DefaultWarningRatio
	}
	return &MemoryCounter{
		limit:  limit,
		warnAt: WarnThreshold(limit, warningRatio),
		now:    time.Now,
	}
}

// WarnThreshold is the call count at which usage is considered near the limit.
func WarnThreshold(limit int, ratio float64) int {
	return int(math.Floor(float64(limit) * ratio))
}

// ShouldUseProvider reports whether the primary provider is still under its daily limit.
func (c *MemoryCounter) ShouldUseProvider(context.Context) bool {
	return c.current() < c.limit
}

// IsNearLimit reports whether usage crossed the warning threshold.
func (c *MemoryCounter) IsNearLimit(context.Context) bool {
	return c.current() >= c.warnAt
}

// Record counts one successful primary call.
func (c *MemoryCounter) Record(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	c.count++
}

// Stats returns a snapshot for the current UTC day.
func (c *MemoryCounter) Stats(context.Context) domain.UsageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	return BuildStats(c.day, c.count, c.limit)
}

// BuildStats derives the public usage snapshot from a raw count.
func BuildStats(day string, count, limit int) domain.UsageStats {
	percent := 0
	if limit > 0 {
		percent = int(math.Round(float64(count) / float64(limit) * 100))
	}
	return domain.UsageStats{
		Date:          day,
		CallCount:     count,
		Limit:         limit,
		PercentUsed:   percent,
		UsingFallback: count >= limit,
	}
}

func (c *MemoryCounter) current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	return c.count
}

// rollover must be called with mu held.
func (c *MemoryCounter) rollover() {
	today := c.now().UTC().Format(domain.DigestDateLayout)
	if c.day != today {
		c.day = today
		c.count = 0
	}
}
