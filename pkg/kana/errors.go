package kana

import (
	"fmt"
)

// APIError is returned for non-2xx responses and for 2xx responses whose
// envelope reports success=false. Body carries the raw response text so the
// venue's own error message is never lost.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kana api error: %s - %s", e.Status, e.Body)
}
