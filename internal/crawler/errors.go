package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailure marks a branch abandoned because its request failed.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrMalformedPayload marks a branch abandoned because the response did
	// not carry the keys its step branches on.
	ErrMalformedPayload = errors.New("malformed payload")
)

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}
