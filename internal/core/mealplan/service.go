package mealplan

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"mealplan-generator/internal/core/ratelimit"
	"mealplan-generator/internal/infrastructure/config"
	"mealplan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// QuotaGate 配額閘門契約（由 ratelimit.Limiter 實作，測試可替換）
type QuotaGate interface {
	Check(ctx context.Context, deviceID, action string) (*ratelimit.Result, error)
}

// RecipeSaver 食譜持久化契約（由 recipestore.Store 實作，測試可替換）
type RecipeSaver interface {
	SaveAllIfUnique(ctx context.Context, recipes []GeneratedRecipe) (saved int, duplicates int, err error)
}

// PlanService 餐單生成管線的編排器：
// 驗證 → 配額 → 食材目錄 → 骨架（盡力而為）→ 批次細節 → 驗證 → 組裝 → 持久化。
type PlanService struct {
	skeleton *SkeletonPlanner
	batches  *BatchDetailGenerator
	quota    QuotaGate
	recipes  RecipeSaver
	config   *config.Config
}

// NewPlanService 創建餐單生成服務
func NewPlanService(skeleton *SkeletonPlanner, batches *BatchDetailGenerator, quota QuotaGate, recipes RecipeSaver, cfg *config.Config) *PlanService {
	return &PlanService{
		skeleton: skeleton,
		batches:  batches,
		quota:    quota,
		recipes:  recipes,
		config:   cfg,
	}
}

// failure 失敗信封：單一錯誤字串，絕不夾帶半份餐單
func failure(status int, message string) *GenerateResult {
	return &GenerateResult{
		Success: false,
		Status:  status,
		Error:   message,
	}
}

// Generate 執行完整生成管線並回傳回應信封
func (s *PlanService) Generate(ctx context.Context, req *GenerateRequest) *GenerateResult {
	// 輸入把關：任何違規都在碰配額與付費調用之前短路
	if err := req.Validate(); err != nil {
		common.LogInfo("生成請求被輸入驗證攔截",
			zap.String("reason", err.Error()),
		)
		return failure(http.StatusBadRequest, err.Error())
	}

	// 配額閘門：儲存不可用時 fail closed
	quota, err := s.quota.Check(ctx, req.DeviceID, ratelimit.ActionGeneratePlan)
	if err != nil {
		if common.IsValidationError(err) {
			return failure(http.StatusBadRequest, err.Error())
		}
		return failure(http.StatusServiceUnavailable, "Service temporarily unavailable. Please try again later.")
	}
	rateInfo := &RateLimitInfo{
		Remaining: quota.Remaining,
		ResetTime: quota.ResetTime.Unix(),
		Limit:     quota.Limit,
	}
	if !quota.Allowed {
		result := failure(http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded. You can generate %d meal plans per day.", quota.Limit))
		result.RateLimitInfo = rateInfo
		return result
	}

	durationDays := req.Duration
	if durationDays == 0 {
		durationDays = 7
	}
	durationDays = ClampDuration(durationDays, s.config.MealPlan.MaxDurationDays)

	profile := &req.UserProfile
	opts := req.options()

	// 食材目錄：純函數，臨時排除只影響這一次
	catalog := BuildIngredientCatalog(profile.DietaryRestrictions, profile.Allergies, profile.FoodDislikes, opts.TemporaryExclusions)

	// 第一階段：骨架是多樣性最佳化，nil 代表降級、照常繼續
	skeleton := s.skeleton.Generate(ctx, profile, durationDays, catalog, opts)

	// 第二階段：並行批次，全有或全無
	days, err := s.batches.GenerateBatches(ctx, profile, durationDays, catalog, skeleton, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			common.LogError("批次生成被取消或超時", zap.Error(err))
			return failure(http.StatusGatewayTimeout, "Meal plan generation timed out. Please try again.")
		}
		common.LogError("批次生成失敗", zap.Error(err))
		return failure(http.StatusInternalServerError, "Failed to generate meal plan. Please try again.")
	}

	// 非致命檢查：只記 log，不拒絕
	ValidatePlanDays(days, profile.IncludeSnacks)

	plan := AssemblePlan(days)

	// 持久化：重複是預期的 no-op；儲存失敗不犧牲已經生成好的餐單
	saved, duplicates, err := s.recipes.SaveAllIfUnique(ctx, CollectRecipes(days))
	if err != nil {
		common.LogError("食譜持久化失敗，餐單照常回傳", zap.Error(err))
	}

	common.LogInfo("餐單生成完成",
		zap.String("plan_id", plan.ID),
		zap.Int("days", len(plan.Days)),
		zap.Int("recipes_added", saved),
		zap.Int("recipes_duplicate", duplicates),
	)

	return &GenerateResult{
		Success:          true,
		Status:           http.StatusOK,
		MealPlan:         plan,
		RecipesAdded:     saved,
		RecipesDuplicate: duplicates,
		RateLimitInfo:    rateInfo,
	}
}
