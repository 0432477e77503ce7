// Package clients holds the market-data provider clients and their shared
// error types.
package clients

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidQuote is returned when a provider answers with an unusable quote.
var ErrInvalidQuote = errors.New("invalid quote")

// APIError is returned by a provider client once its own retries are exhausted.
type APIError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether a response status is worth another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
