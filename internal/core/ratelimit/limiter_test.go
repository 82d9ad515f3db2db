package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"mealplan-generator/internal/infrastructure/config"
	"mealplan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounterStore 記憶體中的固定視窗計數器
type fakeCounterStore struct {
	counts map[string]int64
	err    error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: make(map[string]int64)}
}

func (s *fakeCounterStore) IncrementAndCheck(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	s.counts[key]++
	return s.counts[key], window, nil
}

func (s *fakeCounterStore) Decrement(ctx context.Context, key string) error {
	if s.err != nil {
		return s.err
	}
	s.counts[key]--
	return nil
}

func testLimiter(store CounterStore) *Limiter {
	return NewLimiter(store, &config.RateLimitConfig{
		Enabled:  true,
		Requests: 3,
		Window:   24 * time.Hour,
	})
}

func TestValidDeviceID(t *testing.T) {
	assert.True(t, ValidDeviceID("abc-123-DEF"))
	assert.True(t, ValidDeviceID("a"))

	assert.False(t, ValidDeviceID(""))
	assert.False(t, ValidDeviceID("has space"))
	assert.False(t, ValidDeviceID("semi;colon"))
	assert.False(t, ValidDeviceID("under_score"))
	assert.False(t, ValidDeviceID("slash/slash"))
	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ValidDeviceID(string(long)))
	assert.True(t, ValidDeviceID(string(long[:128])))
}

func TestLimiterExhaustsQuota(t *testing.T) {
	store := newFakeCounterStore()
	limiter := testLimiter(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "device-a", ActionGeneratePlan)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2-i, result.Remaining)
		assert.Equal(t, 3, result.Limit)
	}

	result, err := limiter.Check(ctx, "device-a", ActionGeneratePlan)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Zero(t, result.Remaining)
	assert.False(t, result.ResetTime.IsZero())

	// A rejected check must not consume quota: the counter stays at the limit.
	assert.Equal(t, int64(3), store.counts["ratelimit:device-a:generate_meal_plan"])
}

func TestLimiterIsolatesDevices(t *testing.T) {
	store := newFakeCounterStore()
	limiter := testLimiter(store)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		limiter.Check(ctx, "device-a", ActionGeneratePlan)
	}

	result, err := limiter.Check(ctx, "device-b", ActionGeneratePlan)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 2, result.Remaining)
}

func TestLimiterFailsClosed(t *testing.T) {
	store := newFakeCounterStore()
	store.err = errors.New("connection refused")
	limiter := testLimiter(store)

	result, err := limiter.Check(context.Background(), "device-a", ActionGeneratePlan)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, common.ErrRateLimitStoreUnavailable)
}

func TestLimiterRejectsInvalidDeviceBeforeStore(t *testing.T) {
	store := newFakeCounterStore()
	limiter := testLimiter(store)

	result, err := limiter.Check(context.Background(), "bad device", ActionGeneratePlan)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, common.IsValidationError(err))
	assert.Empty(t, store.counts, "invalid device must not touch the counter")
}
