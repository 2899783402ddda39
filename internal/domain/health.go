package domain

import "time"

// Health states.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthMissing  = "missing"
	HealthError    = "error"
)

// HealthReport is the readiness summary served to operators.
type HealthReport struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Version   string       `json:"version"`
	Checks    HealthChecks `json:"checks"`
}

// HealthChecks groups the individual probes.
type HealthChecks struct {
	Env      EnvCheck       `json:"env"`
	Database *DatabaseCheck `json:"database,omitempty"`
}

// EnvCheck lists required settings that are empty.
type EnvCheck struct {
	Status  string   `json:"status"`
	Missing []string `json:"missing,omitempty"`
}

// DatabaseCheck reports store connectivity.
type DatabaseCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
