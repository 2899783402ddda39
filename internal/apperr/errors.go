package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a failure category shared across the pipeline.
type Code string

const (
	CodeConfigMissing        Code = "CONFIG_MISSING"
	CodeSafetyBlock          Code = "SAFETY_BLOCK"
	CodeQuotaExceeded        Code = "QUOTA_EXCEEDED"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeLLMEmptyResponse     Code = "LLM_EMPTY_RESPONSE"
	CodeLLMBothFailed        Code = "LLM_BOTH_FAILED"
	CodeLLMFailed            Code = "LLM_FAILED"
	CodeDigestExists         Code = "DIGEST_EXISTS"
	CodeDigestNotFound       Code = "DIGEST_NOT_FOUND"
	CodeInsufficientArticles Code = "INSUFFICIENT_ARTICLES"
	CodeDBFetchFailed        Code = "DB_FETCH_FAILED"
	CodeDBInsertFailed       Code = "DB_INSERT_FAILED"
	CodeDBConflict           Code = "DB_CONFLICT"
	CodeUploadFailed         Code = "UPLOAD_FAILED"
	CodeTTSFailed            Code = "TTS_FAILED"
	CodeAudioCompleted       Code = "AUDIO_ALREADY_COMPLETED"
	CodeNoDigestText         Code = "NO_DIGEST_TEXT"
)

// Error is a tagged failure carrying a code and a retry hint.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a tagged error; retryability is derived from the code.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Retryable: retryable(code)}
}

// Wrap builds a tagged error around a cause.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Retryable: retryable(code), Err: err}
}

// NewConfigMissing reports a required setting that is absent.
func NewConfigMissing(name string) *Error {
	return New(CodeConfigMissing, name+" is not configured")
}

// NewSafetyBlock reports content refused by a provider's safety filter.
func NewSafetyBlock(provider string, err error) *Error {
	return Wrap(CodeSafetyBlock, "content blocked by "+provider+" safety filters", err)
}

// NewQuotaExceeded reports an exhausted provider quota.
func NewQuotaExceeded(msg string, err error) *Error {
	return Wrap(CodeQuotaExceeded, msg, err)
}

// NewRateLimited reports a provider throttling response.
func NewRateLimited(provider string, err error) *Error {
	return Wrap(CodeRateLimited, provider+" rate limit hit", err)
}

// NewEmptyResponse reports a provider returning no text.
func NewEmptyResponse(provider string) *Error {
	return New(CodeLLMEmptyResponse, provider+" returned an empty response")
}

// NewDigestExists reports an already generated digest for a date.
func NewDigestExists(date string) *Error {
	return New(CodeDigestExists, "digest already exists for "+date)
}

// NewDigestNotFound reports a missing digest row.
func NewDigestNotFound(id string) *Error {
	return New(CodeDigestNotFound, "digest not found: "+id)
}

func retryable(code Code) bool {
	switch code {
	case CodeQuotaExceeded, CodeRateLimited, CodeLLMEmptyResponse, CodeLLMBothFailed,
		CodeLLMFailed, CodeDBFetchFailed, CodeDBInsertFailed, CodeUploadFailed, CodeTTSFailed:
		return true
	default:
		return false
	}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Code == code
	}
	return false
}

// CodeOf returns the code of the first tagged error in the chain.
func CodeOf(err error) Code {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Code
	}
	return ""
}

// IsRetryable reports whether a tagged error may succeed on a later attempt.
func IsRetryable(err error) bool {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Retryable
	}
	return false
}

// IsSafetyBlock reports a safety refusal.
func IsSafetyBlock(err error) bool {
	return Is(err, CodeSafetyBlock)
}

// IsQuotaOrRateLimit reports quota exhaustion or throttling.
func IsQuotaOrRateLimit(err error) bool {
	return Is(err, CodeQuotaExceeded) || Is(err, CodeRateLimited)
}

// IsDigestExists reports an idempotency hit on digest creation.
func IsDigestExists(err error) bool {
	return Is(err, CodeDigestExists)
}
