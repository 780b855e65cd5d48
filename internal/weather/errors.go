package weather

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the clients and the store wraps exactly
// one of these, so callers classify failures with errors.Is.
var (
	ErrNetwork  = errors.New("network error")
	ErrUpstream = errors.New("upstream error")
	ErrParse    = errors.New("parse error")
	ErrStorage  = errors.New("storage error")

	// ErrInvalidQuery is returned for geocoding queries shorter than two
	// characters once trimmed.
	ErrInvalidQuery = errors.New("query must have at least 2 characters")

	// ErrInvalidLocation is returned when a location fails validation.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrNotTracked is returned when an operation names an unknown favorite.
	ErrNotTracked = errors.New("location is not a favorite")
)

// UpstreamError is a non-success answer from a reachable provider.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

// Is makes every UpstreamError match ErrUpstream.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// NetworkError wraps a transport failure.
func NetworkError(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrNetwork, provider, err)
}

// ParseError wraps a response shape mismatch.
func ParseError(provider, detail string) error {
	return fmt.Errorf("%w: %s: %s", ErrParse, provider, detail)
}

// StorageError wraps a persistence failure.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// IsFetchError reports whether err is one of the kinds a bulk refresh swallows.
func IsFetchError(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrUpstream) || errors.Is(err, ErrParse)
}
