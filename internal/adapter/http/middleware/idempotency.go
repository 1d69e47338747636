package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/iho/offledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader marks a response served from the store.
	IdempotencyReplayHeader = "X-Idempotency-Replay"

	processingMarker = "processing"
)

// storedResponse is what a completed request leaves behind for replays.
type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// IdempotencyMiddleware replays completed responses for repeated keys.
type IdempotencyMiddleware struct {
	store usecase.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
// A zero ttl uses usecase.IdempotencyKeyTTL.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = usecase.IdempotencyKeyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl}
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only apply to mutating requests
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(IdempotencyKeyHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := scopedKey(r, header)

		exists, cached, err := m.store.CheckAndSet(r.Context(), key, nil, m.ttl)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "idempotency check failed")
			return
		}

		if exists {
			if len(cached) == 0 || string(cached) == processingMarker {
				writeJSONError(w, http.StatusConflict, "request with this idempotency key is in progress")
				return
			}

			var stored storedResponse
			if err := json.Unmarshal(cached, &stored); err != nil {
				writeJSONError(w, http.StatusInternalServerError, "corrupt idempotency record")
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(IdempotencyReplayHeader, "true")
			w.WriteHeader(stored.Status)
			_, _ = w.Write(stored.Body)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		// the response is already written; bookkeeping must outlive the request
		ctx := context.WithoutCancel(r.Context())
		log := hlog.FromRequest(r)

		if recorder.statusCode >= 200 && recorder.statusCode < 300 {
			payload, _ := json.Marshal(storedResponse{Status: recorder.statusCode, Body: recorder.body.Bytes()})
			if err := m.store.Update(ctx, key, payload, m.ttl); err != nil {
				log.Warn().Err(err).Str("idempotency_key", header).Msg("failed to store response")
			}
			return
		}

		if err := m.store.Release(ctx, key); err != nil {
			log.Warn().Err(err).Str("idempotency_key", header).Msg("failed to release idempotency key")
		}
	})
}

// scopedKey keeps one user's keys from colliding with another's.
func scopedKey(r *http.Request, key string) string {
	userID, _ := UserIDFromContext(r.Context())
	return userID + ":" + r.URL.Path + ":" + key
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
