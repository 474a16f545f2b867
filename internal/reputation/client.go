package reputation

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable marks a reputation service that could not be reached,
	// timed out or answered with a non-2xx status.
	ErrUnavailable = errors.New("reputation service unavailable")
	// ErrMalformed marks a response body that did not have the expected shape.
	ErrMalformed = errors.New("reputation service returned a malformed response")
)

// Client is one external reputation source.
type Client interface {
	// Name identifies the service in results and as the source of promoted domains.
	Name() string
	// Check reports whether the service considers the domain or URL malicious.
	Check(ctx context.Context, input string) (bool, error)
}
