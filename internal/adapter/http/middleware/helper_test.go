package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iho/offledger/internal/infrastructure/auth"
	"github.com/iho/offledger/internal/infrastructure/metrics"
)

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	return metrics.NewWithRegistry(prometheus.NewRegistry())
}

type stubVerifier struct {
	claims *auth.Claims
	err    error
}

func (s stubVerifier) Verify(string) (*auth.Claims, error) {
	return s.claims, s.err
}

// memoryIdempotencyStore mirrors the Redis store semantics in memory.
type memoryIdempotencyStore struct {
	mu       sync.Mutex
	values   map[string][]byte
	released []string
	checkErr error
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{values: make(map[string][]byte)}
}

func (s *memoryIdempotencyStore) CheckAndSet(_ context.Context, key string, response []byte, _ time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkErr != nil {
		return false, nil, s.checkErr
	}

	if v, ok := s.values[key]; ok {
		return true, v, nil
	}

	if response == nil {
		response = []byte(processingMarker)
	}
	s.values[key] = response

	return false, nil, nil
}

func (s *memoryIdempotencyStore) Update(_ context.Context, key string, response []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = response
	return nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	s.released = append(s.released, key)
	return nil
}
