package usecase

import (
	"context"
	"time"

	"NewsBriefing/internal/domain"
)

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Setting is a named configuration value that must be present.
type Setting struct {
	Name  string
	Value string
}

// HealthChecker reports configuration presence and database reachability.
type HealthChecker struct {
	required []Setting
	db       Pinger
	version  string
	now      func() time.Time
}

// NewHealthChecker builds a checker; db may be nil when no store is wired.
func NewHealthChecker(version string, db Pinger, required ...Setting) *HealthChecker {
	return &HealthChecker{required: required, db: db, version: version, now: time.Now}
}

// Check is degraded when a required setting is empty or the database ping fails.
func (h *HealthChecker) Check(ctx context.Context) domain.HealthReport {
	report := domain.HealthReport{
		Status:    domain.HealthOK,
		Timestamp: h.now().UTC(),
		Version:   h.version,
		Checks:    domain.HealthChecks{Env: domain.EnvCheck{Status: domain.HealthOK}},
	}

	for _, s := range h.required {
		if s.Value == "" {
			report.Checks.Env.Missing = append(report.Checks.Env.Missing, s.Name)
		}
	}
	if len(report.Checks.Env.Missing) > 0 {
		report.Checks.Env.Status = domain.HealthMissing
		report.Status = domain.HealthDegraded
	}

	if h.db != nil {
		check := &domain.DatabaseCheck{Status: domain.HealthOK}
		if err := h.db.Ping(ctx); err != nil {
			check.Status = domain.HealthError
			check.Message = err.Error()
			report.Status = domain.HealthDegraded
		}
		report.Checks.Database = check
	}

	return report
}
