// Package idempotency describes stored responses for replayed write requests.
package idempotency

import (
	"context"
	"time"
)

// DefaultTTL is how long a stored response can be replayed.
const DefaultTTL = 24 * time.Hour

// Entry is the response recorded for one Idempotency-Key.
type Entry struct {
	Key            string
	ResponseBody   string
	ResponseStatus int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Repository stores recorded responses. Get returns nil, nil for unknown or expired keys.
type Repository interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
}
