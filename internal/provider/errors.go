package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrFatalAPI marks errors that must not be retried (auth, billing, quota).
	ErrFatalAPI = errors.New("fatal API error")

	// ErrCooldown is returned without a network call while a provider is cooling down.
	ErrCooldown = errors.New("provider in cooldown")

	// ErrMalformed indicates the provider answered but the body was unusable.
	ErrMalformed = errors.New("malformed provider response")

	// ErrNoResults indicates a search backend returned zero results.
	ErrNoResults = errors.New("no results")

	// ErrUnsupported is returned when a provider lacks an optional capability.
	ErrUnsupported = errors.New("operation not supported by provider")
)

// Error is a classified provider failure.
type Error struct {
	Provider string
	Status   int
	Fatal    bool
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Unwrap exposes the cause and, for fatal errors, ErrFatalAPI.
func (e *Error) Unwrap() []error {
	if e.Fatal {
		return []error{e.Err, ErrFatalAPI}
	}
	return []error{e.Err}
}

// fatalPatterns are substrings that indicate a non-retriable API condition.
var fatalPatterns = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"resource_exhausted",
	"too many requests",
}

// httpCode matches a standalone 4xx/5xx code. Digits inside IPs, ports
// and longer numbers are excluded.
var httpCode = regexp.MustCompile(`(?:^|[^\d.:])([45]\d\d)(?:$|[^\d.])`)

// IsFatalAPIError reports whether err's message indicates a non-retriable API error.
func IsFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	for _, m := range httpCode.FindAllStringSubmatch(msg, -1) {
		if n, _ := strconv.Atoi(m[1]); FatalStatus(n) {
			return true
		}
	}
	return false
}

// WrapFatalError attaches ErrFatalAPI to err if it is fatal, otherwise returns err unchanged.
func WrapFatalError(err error) error {
	if err == nil || !IsFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}

// FatalStatus reports whether an HTTP status must never be retried.
func FatalStatus(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}

// Classify builds a typed Error for a failed call.
// A zero status means the status is unknown and only the message is inspected.
func Classify(name string, status int, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return &Error{
		Provider: name,
		Status:   status,
		Fatal:    FatalStatus(status) || IsFatalAPIError(err),
		Err:      err,
	}
}

// IsFatal reports whether err must skip retries and trip the cooldown.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFatalAPI) {
		return true
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Fatal
	}
	return false
}

// Retriable reports whether err is transient and worth another attempt.
func Retriable(err error) bool {
	switch {
	case err == nil,
		IsFatal(err),
		errors.Is(err, ErrMalformed),
		errors.Is(err, ErrNoResults),
		errors.Is(err, ErrCooldown),
		errors.Is(err, ErrUnsupported),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// Status extracts the HTTP status of a classified error, or 0.
func Status(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}

// StatusFromMessage extracts an HTTP status code embedded in an error message, or 0.
// Some SDKs only surface the status as text.
func StatusFromMessage(err error) int {
	if err == nil {
		return 0
	}
	m := httpCode.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
