package source

import (
	"fmt"
	"net/http"
)

// LoadError reports that a static artifact could not be fetched or parsed.
// StatusCode is set when the server answered with a non-2xx status.
type LoadError struct {
	Artifact   string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to load %s: %d %s", e.Artifact, e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to load %s: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("failed to load %s", e.Artifact)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}
