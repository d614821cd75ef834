package apiclient

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrUnauthorized is returned when a 401 survives the single token refresh.
	ErrUnauthorized = errors.New("session expired")
	// ErrNetwork wraps transport failures: the backend was not reached or did not answer.
	ErrNetwork = errors.New("backend unreachable")
)

const (
	GenericErrorMessage = "An unexpected error occurred. Please try again later."
	NetworkErrorMessage = "Unable to reach the server. Please check your connection and try again."
	ExpiredErrorMessage = "Your session has expired. Please sign in again."
)

// APIError is a non-2xx backend answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend request failed with status %d", e.Status)
}

var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]+`)

// Code returns the machine error code leading the message, such as EMAIL_EXISTS
// in "EMAIL_EXISTS" or "TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled".
func (e *APIError) Code() string {
	return codePattern.FindString(strings.TrimSpace(e.Message))
}

// errorPaths are tried in order to find a displayable message in an error body.
var errorPaths = []string{"error.message", "error", "msg", "message", "detail"}

// ExtractMessage pulls the backend error text out of a response body.
// It returns "" when the body carries no usable message.
func ExtractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	if !gjson.Valid(trimmed) {
		if strings.HasPrefix(trimmed, "<") || len(trimmed) > 300 {
			return ""
		}
		return trimmed
	}
	for _, path := range errorPaths {
		if r := gjson.Get(trimmed, path); r.Type == gjson.String && strings.TrimSpace(r.Str) != "" {
			return strings.TrimSpace(r.Str)
		}
	}
	return ""
}

// Message turns any client error into the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return ExpiredErrorMessage
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, ErrNetwork):
		return NetworkErrorMessage
	default:
		return GenericErrorMessage
	}
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
