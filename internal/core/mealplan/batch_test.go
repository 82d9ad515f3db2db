package mealplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"mealplan-generator/internal/core/ai"
	"mealplan-generator/internal/infrastructure/config"
	"mealplan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter scripts model replies per request and counts calls.
type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	fn    func(req *ai.CompletionRequest) (*ai.CompletionResponse, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var batchRangePattern = regexp.MustCompile(`Include entries for day (\d+) through day (\d+)`)

// Batch prompts carry a system prompt, the skeleton prompt does not.
func isBatchRequest(req *ai.CompletionRequest) bool {
	return req.SystemPrompt != ""
}

func scriptedBatchDays(start, end int, includeSnacks bool) []MealPlanDay {
	var days []MealPlanDay
	for d := start; d <= end; d++ {
		var meals []Meal
		for i, slot := range mealOrder(includeSnacks) {
			meals = append(meals, Meal{
				MealType: slot,
				Recipe: GeneratedRecipe{
					Name:         fmt.Sprintf("dish %d-%d", d, i),
					Description:  "scripted test dish",
					Nutrition:    Nutrition{Calories: 400 + 10*i, ProteinGrams: 30, CarbsGrams: 40, FatGrams: 15, FiberGrams: 5},
					PrepTime:     10,
					CookTime:     20,
					Servings:     1,
					Complexity:   "easy",
					Cuisine:      "mediterranean",
					Instructions: []string{"combine everything and cook through"},
					Ingredients:  []Ingredient{{Name: "spinach", Quantity: "1", Unit: "cup", Category: "vegetables"}},
				},
			})
		}
		days = append(days, MealPlanDay{Day: d, Meals: meals})
	}
	return days
}

func scriptedBatchContent(start, end int, includeSnacks bool) string {
	payload, _ := json.Marshal(batchPayload{Days: scriptedBatchDays(start, end, includeSnacks)})
	return string(payload)
}

func scriptedSkeletonContent(durationDays int) string {
	skeleton := WeekSkeleton{
		WeeklyGroceryList: []string{"chicken breast", "brown rice", "broccoli", "salmon", "quinoa", "spinach"},
	}
	for d := 0; d < durationDays; d++ {
		skeleton.Days = append(skeleton.Days, SkeletonDay{
			Day:       d,
			Breakfast: &MealConcept{Idea: fmt.Sprintf("breakfast idea %d", d), Protein: "eggs"},
			Lunch:     &MealConcept{Idea: fmt.Sprintf("lunch idea %d", d), Protein: "chicken breast", Cuisine: "mediterranean"},
			Dinner:    &MealConcept{Idea: fmt.Sprintf("dinner idea %d", d), Protein: "salmon"},
		})
	}
	payload, _ := json.Marshal(skeleton)
	return string(payload)
}

// planReplier answers the skeleton prompt and every batch prompt with
// well-formed content for exactly the requested day range.
func planReplier(includeSnacks bool) func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
	return func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
		if !isBatchRequest(req) {
			return &ai.CompletionResponse{Content: scriptedSkeletonContent(7), StopReason: "stop"}, nil
		}
		m := batchRangePattern.FindStringSubmatch(req.UserPrompt)
		if m == nil {
			return nil, fmt.Errorf("batch prompt missing day range")
		}
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		return &ai.CompletionResponse{Content: scriptedBatchContent(start, end, includeSnacks), StopReason: "stop"}, nil
	}
}

func testConfig() *config.Config {
	return &config.Config{
		OpenRouter: config.OpenRouterConfig{
			Model:         "anthropic/claude-3.5-sonnet",
			SkeletonModel: "anthropic/claude-3.5-haiku",
			MaxTokens:     4096,
		},
		RateLimit: config.RateLimitConfig{Enabled: true, Requests: 3, Window: 24 * time.Hour},
		MealPlan:  config.MealPlanConfig{MaxDurationDays: 14, BatchSizeDays: 2, SkeletonMaxTokens: 3000},
	}
}

func testProfile(includeSnacks bool) *UserProfile {
	return &UserProfile{
		Age:                30,
		Gender:             "female",
		WeightKg:           65,
		HeightCm:           170,
		ActivityLevel:      "moderate",
		DailyCalorieTarget: 2000,
		ProteinGrams:       150,
		CarbsGrams:         200,
		FatGrams:           70,
		CookingSkill:       "intermediate",
		MaxCookingTime:     45,
		MealsPerDay:        3,
		IncludeSnacks:      includeSnacks,
		MeasurementSystem:  "metric",
	}
}

func TestClampDuration(t *testing.T) {
	assert.Equal(t, 1, ClampDuration(0, 14))
	assert.Equal(t, 1, ClampDuration(-3, 14))
	assert.Equal(t, 7, ClampDuration(7, 14))
	assert.Equal(t, 14, ClampDuration(14, 14))
	assert.Equal(t, 14, ClampDuration(99, 14))
}

func TestPartitionDays(t *testing.T) {
	assert.Equal(t, []dayRange{{0, 1}, {2, 3}, {4, 5}, {6, 6}}, partitionDays(7, 2))
	assert.Equal(t, []dayRange{{0, 0}}, partitionDays(1, 2))
	assert.Equal(t, []dayRange{{0, 1}}, partitionDays(2, 2))
	assert.Equal(t, []dayRange{{0, 1}, {2, 3}, {4, 5}, {6, 7}, {8, 9}, {10, 11}, {12, 13}}, partitionDays(14, 2))
}

func TestGenerateBatchesEveryDuration(t *testing.T) {
	cfg := testConfig()
	profile := testProfile(true)
	catalog := BuildIngredientCatalog(nil, nil, nil, nil)

	for duration := 1; duration <= 14; duration++ {
		completer := &fakeCompleter{fn: planReplier(true)}
		gen := NewBatchDetailGenerator(completer, cfg)

		days, err := gen.GenerateBatches(context.Background(), profile, duration, catalog, nil, GenerateOptions{})
		require.NoError(t, err, "duration %d", duration)
		require.Len(t, days, duration, "duration %d", duration)

		// Parallel batches must come back sorted by day, one entry per day.
		for i, day := range days {
			assert.Equal(t, i, day.Day, "duration %d", duration)
			require.Len(t, day.Meals, 5, "duration %d day %d", duration, i)
			assert.Equal(t, []MealType{MealBreakfast, MealSnack, MealLunch, MealSnack, MealDinner},
				[]MealType{day.Meals[0].MealType, day.Meals[1].MealType, day.Meals[2].MealType, day.Meals[3].MealType, day.Meals[4].MealType})
		}
	}
}

func TestGenerateBatchesWithoutSnacks(t *testing.T) {
	completer := &fakeCompleter{fn: planReplier(false)}
	gen := NewBatchDetailGenerator(completer, testConfig())
	catalog := BuildIngredientCatalog(nil, nil, nil, nil)

	days, err := gen.GenerateBatches(context.Background(), testProfile(false), 7, catalog, nil, GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, days, 7)
	for _, day := range days {
		require.Len(t, day.Meals, 3)
		assert.Equal(t, MealBreakfast, day.Meals[0].MealType)
		assert.Equal(t, MealLunch, day.Meals[1].MealType)
		assert.Equal(t, MealDinner, day.Meals[2].MealType)
	}
}

func TestGenerateBatchesSingleFailureAbortsAll(t *testing.T) {
	boom := errors.New("upstream 500")
	completer := &fakeCompleter{fn: func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
		m := batchRangePattern.FindStringSubmatch(req.UserPrompt)
		if m != nil && m[1] == "2" {
			return nil, boom
		}
		return planReplier(true)(req)
	}}
	gen := NewBatchDetailGenerator(completer, testConfig())
	catalog := BuildIngredientCatalog(nil, nil, nil, nil)

	days, err := gen.GenerateBatches(context.Background(), testProfile(true), 7, catalog, nil, GenerateOptions{})
	require.Error(t, err)
	assert.Nil(t, days, "a failed batch must never yield a partial plan")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "days 2-3")
}

func TestGenerateBatchesRenumbersMisnumberedDays(t *testing.T) {
	// The model sometimes invents its own day indices; output must be
	// pinned back to the requested range.
	completer := &fakeCompleter{fn: func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
		m := batchRangePattern.FindStringSubmatch(req.UserPrompt)
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		days := scriptedBatchDays(start, end, true)
		for i := range days {
			days[i].Day += 90
		}
		payload, _ := json.Marshal(batchPayload{Days: days})
		return &ai.CompletionResponse{Content: string(payload)}, nil
	}}
	gen := NewBatchDetailGenerator(completer, testConfig())
	catalog := BuildIngredientCatalog(nil, nil, nil, nil)

	days, err := gen.GenerateBatches(context.Background(), testProfile(true), 4, catalog, nil, GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, days, 4)
	for i, day := range days {
		assert.Equal(t, i, day.Day)
	}
}

func TestGenerateBatchesShortBatchIsFatal(t *testing.T) {
	// 批次只回一天卻被要求兩天：缺天必須讓整個請求失敗，
	// 絕不能帶著缺口回傳 success
	completer := &fakeCompleter{fn: func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
		m := batchRangePattern.FindStringSubmatch(req.UserPrompt)
		start, _ := strconv.Atoi(m[1])
		return &ai.CompletionResponse{Content: scriptedBatchContent(start, start, true)}, nil
	}}
	gen := NewBatchDetailGenerator(completer, testConfig())
	catalog := BuildIngredientCatalog(nil, nil, nil, nil)

	days, err := gen.GenerateBatches(context.Background(), testProfile(true), 4, catalog, nil, GenerateOptions{})
	require.Error(t, err)
	assert.Nil(t, days)
	assert.True(t, common.IsMalformedResponseError(err))
	assert.Contains(t, err.Error(), "days 0-1")
	assert.Contains(t, err.Error(), "expected 2 days, got 1")
}

func TestGenerateBatchesOrderedDespiteStaggeredCompletion(t *testing.T) {
	// 越早的批次越晚完成，驗證排序不是靠排程運氣
	var mu sync.Mutex
	var completionOrder []int
	completer := &fakeCompleter{fn: func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
		m := batchRangePattern.FindStringSubmatch(req.UserPrompt)
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		time.Sleep(time.Duration(80-10*start) * time.Millisecond)
		mu.Lock()
		completionOrder = append(completionOrder, start)
		mu.Unlock()
		return &ai.CompletionResponse{Content: scriptedBatchContent(start, end, true)}, nil
	}}
	gen := NewBatchDetailGenerator(completer, testConfig())
	catalog := BuildIngredientCatalog(nil, nil, nil, nil)

	days, err := gen.GenerateBatches(context.Background(), testProfile(true), 8, catalog, nil, GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, days, 8)

	mu.Lock()
	assert.Equal(t, []int{6, 4, 2, 0}, completionOrder, "staggered sleeps should reverse completion order")
	mu.Unlock()
	for i, day := range days {
		assert.Equal(t, i, day.Day)
	}
}

func TestGenerateBatchesEmptyResponse(t *testing.T) {
	completer := &fakeCompleter{fn: func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
		return &ai.CompletionResponse{Content: "   "}, nil
	}}
	gen := NewBatchDetailGenerator(completer, testConfig())
	catalog := BuildIngredientCatalog(nil, nil, nil, nil)

	days, err := gen.GenerateBatches(context.Background(), testProfile(true), 2, catalog, nil, GenerateOptions{})
	require.Error(t, err)
	assert.Nil(t, days)
}

func TestBatchPromptCarriesSkeletonAndExclusions(t *testing.T) {
	var captured string
	completer := &fakeCompleter{fn: func(req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
		captured = req.UserPrompt
		m := batchRangePattern.FindStringSubmatch(req.UserPrompt)
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		return &ai.CompletionResponse{Content: scriptedBatchContent(start, end, true)}, nil
	}}
	gen := NewBatchDetailGenerator(completer, testConfig())
	catalog := BuildIngredientCatalog(nil, nil, nil, nil)

	var skeleton WeekSkeleton
	require.NoError(t, json.Unmarshal([]byte(scriptedSkeletonContent(2)), &skeleton))

	_, err := gen.GenerateBatches(context.Background(), testProfile(true), 2, catalog, &skeleton,
		GenerateOptions{ExcludeRecipeNames: []string{"last week chili"}, WeeklyPreferences: "more fish"})
	require.NoError(t, err)

	assert.Contains(t, captured, "lunch idea 0")
	assert.Contains(t, captured, "last week chili")
	assert.Contains(t, captured, "more fish")
	assert.Contains(t, captured, catalog.RotationHint)
}
