package mealplan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"mealplan-generator/internal/core/ai"
	"mealplan-generator/internal/core/ratelimit"
	"mealplan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuota 腳本化的配額閘門
type fakeQuota struct {
	mu     sync.Mutex
	calls  int
	result *ratelimit.Result
	err    error
}

func (q *fakeQuota) Check(ctx context.Context, deviceID, action string) (*ratelimit.Result, error) {
	q.mu.Lock()
	q.calls++
	q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	return q.result, nil
}

func (q *fakeQuota) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func allowedQuota() *fakeQuota {
	return &fakeQuota{result: &ratelimit.Result{
		Allowed:   true,
		Remaining: 2,
		ResetTime: time.Now().Add(24 * time.Hour),
		Limit:     3,
	}}
}

// fakeRecipeSaver 記住每個指紋（小寫名稱），重複只計數
type fakeRecipeSaver struct {
	mu    sync.Mutex
	seen  map[string]bool
	err   error
	calls int
}

func newFakeRecipeSaver() *fakeRecipeSaver {
	return &fakeRecipeSaver{seen: make(map[string]bool)}
}

func (s *fakeRecipeSaver) SaveAllIfUnique(ctx context.Context, recipes []GeneratedRecipe) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, 0, s.err
	}
	saved, duplicates := 0, 0
	for _, recipe := range recipes {
		name := strings.ToLower(recipe.Name)
		if s.seen[name] {
			duplicates++
			continue
		}
		s.seen[name] = true
		saved++
	}
	return saved, duplicates, nil
}

func newTestService(completer ai.Completer, quota QuotaGate, recipes RecipeSaver) *PlanService {
	cfg := testConfig()
	return NewPlanService(
		NewSkeletonPlanner(completer, cfg),
		NewBatchDetailGenerator(completer, cfg),
		quota,
		recipes,
		cfg,
	)
}

func TestGenerateFullWeek(t *testing.T) {
	completer := &fakeCompleter{fn: planReplier(true)}
	recipes := newFakeRecipeSaver()
	service := newTestService(completer, allowedQuota(), recipes)

	result := service.Generate(context.Background(), validRequest())
	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, http.StatusOK, result.Status)

	require.NotNil(t, result.MealPlan)
	assert.True(t, strings.HasPrefix(result.MealPlan.ID, "plan_"))
	require.Len(t, result.MealPlan.Days, 7)
	for i, day := range result.MealPlan.Days {
		assert.Equal(t, i, day.Day)
		require.Len(t, day.Meals, 5)
	}

	// Every generated recipe is accounted for, either saved or deduplicated.
	assert.Equal(t, 35, result.RecipesAdded+result.RecipesDuplicate)

	require.NotNil(t, result.RateLimitInfo)
	assert.Equal(t, 3, result.RateLimitInfo.Limit)
	assert.Equal(t, 2, result.RateLimitInfo.Remaining)
}

func TestGenerateSkeletonFailureStillSucceeds(t *testing.T) {
	completer := &fakeCompleter{fn: func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
		if !isBatchRequest(req) {
			return nil, errors.New("skeleton model overloaded")
		}
		return planReplier(true)(req)
	}}
	service := newTestService(completer, allowedQuota(), newFakeRecipeSaver())

	result := service.Generate(context.Background(), validRequest())
	require.True(t, result.Success, "skeleton failure must degrade, not fail: %s", result.Error)
	assert.Len(t, result.MealPlan.Days, 7)
}

func TestGenerateInvalidDeviceShortCircuits(t *testing.T) {
	completer := &fakeCompleter{fn: planReplier(true)}
	quota := allowedQuota()
	service := newTestService(completer, quota, newFakeRecipeSaver())

	req := validRequest()
	req.DeviceID = "not valid!"
	result := service.Generate(context.Background(), req)

	assert.False(t, result.Success)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "Invalid device ID", result.Error)
	assert.Nil(t, result.MealPlan)
	// No quota consumed and no model call made for invalid input.
	assert.Zero(t, quota.callCount())
	assert.Zero(t, completer.callCount())
}

func TestGenerateRateLimited(t *testing.T) {
	completer := &fakeCompleter{fn: planReplier(true)}
	quota := &fakeQuota{result: &ratelimit.Result{
		Allowed:   false,
		Remaining: 0,
		ResetTime: time.Now().Add(3 * time.Hour),
		Limit:     3,
	}}
	service := newTestService(completer, quota, newFakeRecipeSaver())

	result := service.Generate(context.Background(), validRequest())
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusTooManyRequests, result.Status)
	assert.Equal(t, "Rate limit exceeded. You can generate 3 meal plans per day.", result.Error)
	require.NotNil(t, result.RateLimitInfo)
	assert.Zero(t, result.RateLimitInfo.Remaining)
	assert.Zero(t, completer.callCount(), "a rejected request must not reach the model")
}

func TestGenerateQuotaStoreUnavailable(t *testing.T) {
	completer := &fakeCompleter{fn: planReplier(true)}
	quota := &fakeQuota{err: fmt.Errorf("%w: connection refused", common.ErrRateLimitStoreUnavailable)}
	service := newTestService(completer, quota, newFakeRecipeSaver())

	result := service.Generate(context.Background(), validRequest())
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusServiceUnavailable, result.Status)
	assert.Equal(t, "Service temporarily unavailable. Please try again later.", result.Error)
	assert.Zero(t, completer.callCount())
}

func TestGenerateBatchFailure(t *testing.T) {
	completer := &fakeCompleter{fn: func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
		if isBatchRequest(req) {
			return &ai.CompletionResponse{Content: "not json at all"}, nil
		}
		return &ai.CompletionResponse{Content: scriptedSkeletonContent(7)}, nil
	}}
	recipes := newFakeRecipeSaver()
	service := newTestService(completer, allowedQuota(), recipes)

	result := service.Generate(context.Background(), validRequest())
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusInternalServerError, result.Status)
	assert.Equal(t, "Failed to generate meal plan. Please try again.", result.Error)
	assert.Nil(t, result.MealPlan)
	assert.Zero(t, recipes.calls, "nothing gets persisted when generation fails")
}

func TestGenerateRejectsIncompleteBatches(t *testing.T) {
	// 模型少給一天：回應必須是明確失敗，不能是帶缺口的 success
	completer := &fakeCompleter{fn: func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
		if !isBatchRequest(req) {
			return &ai.CompletionResponse{Content: scriptedSkeletonContent(7)}, nil
		}
		m := batchRangePattern.FindStringSubmatch(req.UserPrompt)
		start, _ := strconv.Atoi(m[1])
		return &ai.CompletionResponse{Content: scriptedBatchContent(start, start, true)}, nil
	}}
	recipes := newFakeRecipeSaver()
	service := newTestService(completer, allowedQuota(), recipes)

	result := service.Generate(context.Background(), validRequest())
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusInternalServerError, result.Status)
	assert.Nil(t, result.MealPlan)
	assert.Zero(t, recipes.calls)
}

func TestGeneratePersistFailureIsNonFatal(t *testing.T) {
	recipes := newFakeRecipeSaver()
	recipes.err = errors.New("redis write failed")
	service := newTestService(&fakeCompleter{fn: planReplier(true)}, allowedQuota(), recipes)

	result := service.Generate(context.Background(), validRequest())
	require.True(t, result.Success, "persistence failure must not discard a generated plan")
	assert.Len(t, result.MealPlan.Days, 7)
	assert.Zero(t, result.RecipesAdded)
}

func TestGenerateDurationDefaultsAndClamps(t *testing.T) {
	service := newTestService(&fakeCompleter{fn: planReplier(true)}, allowedQuota(), newFakeRecipeSaver())

	req := validRequest()
	req.Duration = 0
	result := service.Generate(context.Background(), req)
	require.True(t, result.Success)
	assert.Len(t, result.MealPlan.Days, 7)

	req = validRequest()
	req.Duration = 99
	result = service.Generate(context.Background(), req)
	require.True(t, result.Success)
	assert.Len(t, result.MealPlan.Days, 14)

	req = validRequest()
	req.Duration = -2
	result = service.Generate(context.Background(), req)
	require.True(t, result.Success)
	assert.Len(t, result.MealPlan.Days, 1)
}
