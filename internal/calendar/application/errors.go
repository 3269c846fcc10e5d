package application

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is a non-2xx response from the calendar provider.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the failure is transient. Authorization
// failures are never retryable.
func (e *ProviderError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a provider 404 or 410.
func IsNotFound(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Status == http.StatusNotFound || pe.Status == http.StatusGone
}
