package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/idempotency"
	"github.com/rs/zerolog"
)

const maxIdempotencyBodySize = 1 << 20

// Idempotency replays the stored response when a request repeats its
// Idempotency-Key. Keys are scoped to the authenticated user, so it must run
// after RequireAuth.
func Idempotency(store idempotency.Repository, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if userID, ok := GetUserID(r.Context()); ok {
				key = fmt.Sprintf("%d:%s", userID, key)
			}

			entry, err := store.Get(r.Context(), key)
			if err != nil {
				logger.Warn().Err(err).Str("idempotency_key", key).Msg("Idempotency lookup failed")
			}
			if err == nil && entry != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Replayed", "true")
				w.WriteHeader(entry.ResponseStatus)
				w.Write([]byte(entry.ResponseBody))
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if replayable(rec.statusCode) && !rec.bodyTruncated {
				now := time.Now()
				err := store.Set(r.Context(), &idempotency.Entry{
					Key:            key,
					ResponseBody:   rec.body.String(),
					ResponseStatus: rec.statusCode,
					CreatedAt:      now,
					ExpiresAt:      now.Add(idempotency.DefaultTTL),
				})
				if err != nil {
					logger.Warn().Err(err).Str("idempotency_key", key).Msg("Failed to store idempotent response")
				}
			}
		})
	}
}

// replayable reports whether a response is final for its key. Server errors,
// conflicts with an in-flight request and rate limiting are expected to clear
// on retry.
func replayable(status int) bool {
	switch status {
	case http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return status >= 200 && status < 500
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	body          *bytes.Buffer
	bodyTruncated bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.bodyTruncated {
		if r.body.Len()+len(b) > maxIdempotencyBodySize {
			r.bodyTruncated = true
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}
