package entity

import (
	"errors"
	"fmt"
)

// FailureKind classifies why an acquisition attempt failed.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureTransport   FailureKind = "transport"
	FailureServer      FailureKind = "http_5xx"
	FailureRateLimited FailureKind = "rate_limited"
	FailureClient      FailureKind = "http_4xx"
	FailureBlocked     FailureKind = "blocked"
	FailureMalformed   FailureKind = "malformed"
	FailureArchive     FailureKind = "archive"
	FailureUnknown     FailureKind = "unknown"
)

// Transient reports whether another pass may succeed.
func (k FailureKind) Transient() bool {
	switch k {
	case FailureClient:
		return false
	}
	return true
}

// FetchError is returned by acquisition methods and carries its classification.
type FetchError struct {
	Kind       FailureKind
	Method     ScrapeMethod
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Method, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind of err, or FailureUnknown.
func KindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return FailureUnknown
}

// KindForStatus maps an HTTP status code to a failure kind; 0 means success.
func KindForStatus(code int) FailureKind {
	switch {
	case code == 429:
		return FailureRateLimited
	case code == 403:
		return FailureBlocked
	case code >= 500:
		return FailureServer
	case code >= 400:
		return FailureClient
	}
	return ""
}
