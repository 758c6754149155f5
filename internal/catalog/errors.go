package catalog

import "strings"

// AuthenticationError indicates invalid or missing credentials. Always
// permanent: retrying with the same credentials cannot succeed
// (spec.md §4.3).
type AuthenticationError struct{ Message string }

func (e *AuthenticationError) Error() string { return "catalog: authentication failed: " + e.Message }

// RateLimitError indicates the catalog rejected a call for exceeding its
// rate limit. Always transient.
type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return "catalog: rate limited: " + e.Message }

// APIError is a generic catalog failure, classified transient or
// permanent by substring match on its message (spec.md §4.3).
type APIError struct{ Message string }

func (e *APIError) Error() string { return "catalog: api error: " + e.Message }

var transientSubstrings = []string{"503", "502", "504", "500", "timeout", "unavailable"}

// IsTransient classifies an APIError's message; AuthenticationError is
// always permanent and RateLimitError always transient, so only APIError
// needs substring classification.
func (e *APIError) IsTransient() bool {
	lower := strings.ToLower(e.Message)
	for _, substr := range transientSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}
