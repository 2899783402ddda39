package httpapi

import (
	"net/http"

	"NewsBriefing/internal/apperr"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func statusFor(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeDigestNotFound:
		return http.StatusNotFound
	case apperr.CodeAudioCompleted, apperr.CodeDigestExists:
		return http.StatusConflict
	case apperr.CodeNoDigestText:
		return http.StatusUnprocessableEntity
	case apperr.CodeQuotaExceeded, apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperr.CodeLLMBothFailed, apperr.CodeLLMFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
