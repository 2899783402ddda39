package llm

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"NewsBriefing/internal/apperr"
)

// Free-text matching is the last resort; adapters map structured signals first.
var (
	quotaPattern = regexp.MustCompile(`(?i)quota|resource_exhausted|resource exhausted`)
	ratePattern  = regexp.MustCompile(`(?i)\b429\b|rate[ _-]?limit|\brate\b|too many requests`)
)

// TranslateError converts a raw provider failure into a tagged apperr error.
func TranslateError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *apperr.Error
	if errors.As(err, &tagged) {
		return err
	}

	msg := err.Error()
	switch {
	case quotaPattern.MatchString(msg):
		return apperr.NewQuotaExceeded(provider+" quota exhausted", err)
	case ratePattern.MatchString(msg):
		return apperr.NewRateLimited(provider, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.CodeLLMFailed, provider+" call timed out", err)
	default:
		return apperr.Wrap(apperr.CodeLLMFailed, provider+" call failed", err)
	}
}

// translateStatus maps an HTTP status from a provider to a tagged error, or nil when the
// status carries no specific meaning.
func translateStatus(provider string, status int, err error) error {
	switch status {
	case http.StatusTooManyRequests:
		if quotaPattern.MatchString(err.Error()) {
			return apperr.NewQuotaExceeded(provider+" quota exhausted", err)
		}
		return apperr.NewRateLimited(provider, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.Wrap(apperr.CodeLLMFailed, provider+" rejected credentials", err)
	default:
		return nil
	}
}
