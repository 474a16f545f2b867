package reveal

import (
	"context"
	"errors"
	"time"
)

const DefaultTTL = 10 * time.Minute

var ErrNotFound = errors.New("reveal token not found or expired")

// Finding is one flagged URL and the tier source that flagged it.
type Finding struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Store maps short-lived tokens to the findings hidden behind a warning.
// A token expires a fixed time after creation whether or not it was redeemed.
type Store interface {
	Put(ctx context.Context, findings []Finding) (string, error)
	Get(ctx context.Context, token string) ([]Finding, error)
}
