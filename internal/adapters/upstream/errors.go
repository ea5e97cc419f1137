// Package upstream is the REST client for the workspace directory service.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Static errors for the upstream client.
var (
	ErrNoHost        = errors.New("upstream host not configured")
	ErrNoCredentials = errors.New("no upstream credentials configured")
	ErrDecode        = errors.New("decode upstream response")
)

// APIError is a non-2xx upstream response.
type APIError struct {
	Op         string
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, e.ErrorCode, msg)
	}
	return fmt.Sprintf("%s: %d: %s", e.Op, e.StatusCode, msg)
}

// Class is the failure category of an upstream error.
type Class string

// Failure classes.
const (
	ClassPermissionDenied Class = "permission_denied"
	ClassUnauthenticated  Class = "unauthenticated"
	ClassNotFound         Class = "not_found"
	ClassRateLimited      Class = "rate_limited"
	ClassTimeout          Class = "timeout"
	ClassUpstream5xx      Class = "upstream_5xx"
	ClassOther            Class = "other"
)

// Skippable reports whether failures of this class are an expected access
// gap rather than a fault. A rejected scanner credential is a fault.
func (c Class) Skippable() bool {
	return c == ClassPermissionDenied || c == ClassNotFound
}

// Classify maps err onto a failure class. Errors without an APIError in
// their chain are classified from their text.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if c := classifyCode(apiErr.ErrorCode); c != "" {
			return c
		}
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return ClassUnauthenticated
		case apiErr.StatusCode == http.StatusForbidden:
			return ClassPermissionDenied
		case apiErr.StatusCode == http.StatusNotFound:
			return ClassNotFound
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return ClassRateLimited
		case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusGatewayTimeout:
			return ClassTimeout
		case apiErr.StatusCode >= 500:
			return ClassUpstream5xx
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "invalid access token"):
		return ClassUnauthenticated
	case strings.Contains(msg, "permission") || strings.Contains(msg, "forbidden") || strings.Contains(msg, "not authorized"):
		return ClassPermissionDenied
	case strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist"):
		return ClassNotFound
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return ClassRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return ClassTimeout
	}
	return ClassOther
}

func classifyCode(code string) Class {
	switch strings.ToUpper(code) {
	case "PERMISSION_DENIED":
		return ClassPermissionDenied
	case "UNAUTHENTICATED":
		return ClassUnauthenticated
	case "RESOURCE_DOES_NOT_EXIST", "NOT_FOUND", "FEATURE_DISABLED":
		return ClassNotFound
	case "REQUEST_LIMIT_EXCEEDED", "RESOURCE_EXHAUSTED", "TOO_MANY_REQUESTS":
		return ClassRateLimited
	case "DEADLINE_EXCEEDED":
		return ClassTimeout
	case "TEMPORARILY_UNAVAILABLE", "INTERNAL_ERROR":
		return ClassUpstream5xx
	default:
		return ""
	}
}
