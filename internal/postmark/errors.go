package postmark

import (
	"errors"
	"fmt"
	"net/http"
)

// API error codes the CLI reacts to.
const (
	ErrorCodeInvalidToken     = 10
	ErrorCodeTemplateNotFound = 1101
)

var (
	// ErrMissingToken is returned before any request when no token is configured.
	ErrMissingToken = errors.New("server token is required")
	// ErrUnauthorized matches APIErrors caused by a rejected token.
	ErrUnauthorized = errors.New("server token was rejected")
	// ErrNotFound matches APIErrors for unknown templates.
	ErrNotFound = errors.New("template not found")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Status     string
	ErrorCode  int
	Message    string
}

func (e *APIError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	if e.ErrorCode != 0 {
		return fmt.Sprintf("postmark request failed (%s): [%d] %s", status, e.ErrorCode, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("postmark request failed (%s)", status)
	}
	return fmt.Sprintf("postmark request failed (%s): %s", status, e.Message)
}

// Is lets errors.Is match the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.ErrorCode == ErrorCodeInvalidToken
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound || e.ErrorCode == ErrorCodeTemplateNotFound
	default:
		return false
	}
}
