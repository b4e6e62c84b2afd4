package redis

import (
	"context"
	"errors"
	"time"

	"github.com/polos-ead/academic-records/pkg/circuitbreaker"
)

// BreakerStore sends Store calls through a circuit breaker. While the breaker
// is open every call fails with circuitbreaker.ErrCircuitOpen at once and the
// lookups go straight to the database.
type BreakerStore struct {
	next    Store
	breaker *circuitbreaker.CircuitBreaker
}

// NewBreakerStore wraps next. A nil breaker gets circuitbreaker.Cache.
func NewBreakerStore(next Store, breaker *circuitbreaker.CircuitBreaker) *BreakerStore {
	if breaker == nil {
		breaker = circuitbreaker.Cache(IsCacheMiss, nil)
	}
	return &BreakerStore{next: next, breaker: breaker}
}

// IsCacheMiss reports whether err only means the key is absent.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func (s *BreakerStore) Get(ctx context.Context, key string, dest any) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Get(ctx, key, dest)
	})
}

func (s *BreakerStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Set(ctx, key, value, ttl)
	})
}

func (s *BreakerStore) Delete(ctx context.Context, keys ...string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Delete(ctx, keys...)
	})
}

// State exposes the breaker state for health reporting.
func (s *BreakerStore) State() circuitbreaker.State {
	return s.breaker.State()
}
