package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/infrastructure/messaging"
	"github.com/polos-ead/academic-records/internal/infrastructure/persistence/memory"
	"github.com/polos-ead/academic-records/pkg/circuitbreaker"
)

type countingStore struct {
	*fakeStore
	gets int
}

func (s *countingStore) Get(ctx context.Context, key string, dest any) error {
	s.gets++
	return s.fakeStore.Get(ctx, key, dest)
}

func (s *countingStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.failGet {
		return errors.New("connection refused")
	}
	return s.fakeStore.Set(ctx, key, value, ttl)
}

func TestBreakerStore_MissesDoNotTrip(t *testing.T) {
	store := NewBreakerStore(newFakeStore(), circuitbreaker.Cache(IsCacheMiss, nil))

	var v string
	for range 5 {
		assert.ErrorIs(t, store.Get(context.Background(), "course:none", &v), ErrCacheMiss)
	}
	assert.Equal(t, circuitbreaker.StateClosed, store.State())
}

func TestBreakerStore_StopsCallingFailingRedis(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore(), messaging.NopDispatcher{})
	pole, err := course.NewPole("Polo Sul")
	require.NoError(t, err)
	require.NoError(t, repos.Poles.Create(ctx, pole))

	inner := &countingStore{fakeStore: newFakeStore()}
	inner.failGet = true
	store := NewBreakerStore(inner, circuitbreaker.New("test",
		circuitbreaker.WithFailureThreshold(2),
		circuitbreaker.WithTimeout(time.Hour),
		circuitbreaker.WithIsFailure(func(err error) bool { return !IsCacheMiss(err) }),
	))
	cached := NewPoleRepository(repos.Poles, store, time.Minute, zerolog.Nop())

	for range 5 {
		got, err := cached.FindByID(ctx, pole.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, pole.ID, got.ID)
	}
	assert.Equal(t, 1, inner.gets)
	assert.Equal(t, circuitbreaker.StateOpen, store.State())
}
