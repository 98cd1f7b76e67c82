package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cassiomorais/realestate/internal/domain/idempotency"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*idempotency.Entry
	getErr  error
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{entries: make(map[string]*idempotency.Entry)}
}

func (s *memIdempotencyStore) Get(_ context.Context, key string) (*idempotency.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.entries[key], nil
}

func (s *memIdempotencyStore) Set(_ context.Context, e *idempotency.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Key] = e
	return nil
}

func countingHandler(status int, body string) (http.Handler, *int) {
	calls := 0
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
		w.Write([]byte(body))
	}), &calls
}

func postAs(userID int64, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/properties/1/purchase", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if userID > 0 {
		req = req.WithContext(WithUser(req.Context(), userID, false))
	}
	return req
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	store := newMemIdempotencyStore()
	next, calls := countingHandler(http.StatusAccepted, `{"job_id":"a"}`)
	h := Idempotency(store, zerolog.Nop())(next)

	h.ServeHTTP(httptest.NewRecorder(), postAs(1, ""))
	h.ServeHTTP(httptest.NewRecorder(), postAs(1, ""))

	assert.Equal(t, 2, *calls)
	assert.Empty(t, store.entries)
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	store := newMemIdempotencyStore()
	next, calls := countingHandler(http.StatusAccepted, `{"job_id":"a"}`)
	h := Idempotency(store, zerolog.Nop())(next)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, postAs(1, "buy-1"))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, postAs(1, "buy-1"))

	assert.Equal(t, 1, *calls)
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, `{"job_id":"a"}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replayed"))
	assert.Empty(t, first.Header().Get("X-Idempotency-Replayed"))
}

func TestIdempotency_KeysAreScopedPerUser(t *testing.T) {
	store := newMemIdempotencyStore()
	next, calls := countingHandler(http.StatusAccepted, `{}`)
	h := Idempotency(store, zerolog.Nop())(next)

	h.ServeHTTP(httptest.NewRecorder(), postAs(1, "same"))
	h.ServeHTTP(httptest.NewRecorder(), postAs(2, "same"))

	assert.Equal(t, 2, *calls)
	assert.Contains(t, store.entries, "1:same")
	assert.Contains(t, store.entries, "2:same")
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	store := newMemIdempotencyStore()
	next, calls := countingHandler(http.StatusInternalServerError, `{"error":"boom"}`)
	h := Idempotency(store, zerolog.Nop())(next)

	h.ServeHTTP(httptest.NewRecorder(), postAs(1, "k"))
	h.ServeHTTP(httptest.NewRecorder(), postAs(1, "k"))

	assert.Equal(t, 2, *calls)
}

func TestIdempotency_TransientRejectionsAreNotStored(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "purchase in progress", status: http.StatusConflict, body: `{"error":"purchase_in_progress"}`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"rate_limited"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemIdempotencyStore()
			calls := 0
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls == 1 {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
					return
				}
				w.WriteHeader(http.StatusAccepted)
				w.Write([]byte(`{"job_id":"a"}`))
			})
			h := Idempotency(store, zerolog.Nop())(next)

			first := httptest.NewRecorder()
			h.ServeHTTP(first, postAs(1, "buy-1"))
			require.Equal(t, tt.status, first.Code)
			assert.Empty(t, store.entries)

			second := httptest.NewRecorder()
			h.ServeHTTP(second, postAs(1, "buy-1"))

			assert.Equal(t, 2, calls)
			assert.Equal(t, http.StatusAccepted, second.Code)
			assert.Empty(t, second.Header().Get("X-Idempotency-Replayed"))
			assert.Contains(t, store.entries, "1:buy-1")
		})
	}
}

func TestIdempotency_LookupErrorRunsHandler(t *testing.T) {
	store := newMemIdempotencyStore()
	store.getErr = errors.New("connection refused")
	next, calls := countingHandler(http.StatusCreated, `{}`)
	h := Idempotency(store, zerolog.Nop())(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, postAs(1, "k"))

	assert.Equal(t, 1, *calls)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestIdempotency_LargeBodyIsNotStored(t *testing.T) {
	store := newMemIdempotencyStore()
	large := bytes.Repeat([]byte("x"), maxIdempotencyBodySize+100)
	next, _ := countingHandler(http.StatusOK, string(large))
	h := Idempotency(store, zerolog.Nop())(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, postAs(1, "big"))

	require.Equal(t, len(large), w.Body.Len())
	assert.Empty(t, store.entries)
}
