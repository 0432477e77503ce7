package clients

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("ingest: %w", &APIError{Provider: "upbit", Op: "ticker", StatusCode: 503, Err: cause})

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "upbit ticker: status 503: connection reset", apiErr.Error())

	noStatus := &APIError{Provider: "binance", Op: "price", Err: cause}
	assert.Equal(t, "binance price: connection reset", noStatus.Error())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(429))
	assert.True(t, Retryable(502))
	assert.False(t, Retryable(400))
	assert.False(t, Retryable(200))
}
