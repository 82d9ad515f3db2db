package mealplan

import (
	"context"
	"fmt"
	"strings"

	"mealplan-generator/internal/core/ai"
	"mealplan-generator/internal/infrastructure/config"
	"mealplan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// SkeletonPlanner 第一階段：用一次低成本調用產出一週餐點概念骨架，
// 讓後面的批次生成沿著同一條敘事走，而不是各批各自發明。
// 骨架只是多樣性的最佳化，不是正確性要求：任何失敗都回傳 nil 並繼續。
type SkeletonPlanner struct {
	completer ai.Completer
	config    *config.Config
}

// NewSkeletonPlanner 創建骨架規劃器
func NewSkeletonPlanner(completer ai.Completer, cfg *config.Config) *SkeletonPlanner {
	return &SkeletonPlanner{
		completer: completer,
		config:    cfg,
	}
}

// skeletonTokenBudget 天數越多預算越高，但有上限
func (p *SkeletonPlanner) skeletonTokenBudget(durationDays int) int {
	budget := 800 + durationDays*150
	if max := p.config.MealPlan.SkeletonMaxTokens; budget > max {
		budget = max
	}
	return budget
}

// Generate 生成週骨架。回傳 nil 代表「骨架降級，照常繼續」，永遠不回傳錯誤。
func (p *SkeletonPlanner) Generate(ctx context.Context, profile *UserProfile, durationDays int, catalog IngredientCatalog, opts GenerateOptions) *WeekSkeleton {
	prompt := p.buildPrompt(profile, durationDays, catalog, opts)

	resp, err := p.completer.Complete(ctx, &ai.CompletionRequest{
		Model:      p.config.OpenRouter.SkeletonModel,
		MaxTokens:  p.skeletonTokenBudget(durationDays),
		UserPrompt: prompt,
	})
	if err != nil {
		common.LogWarn("骨架生成失敗，降級為無骨架模式",
			zap.Error(err),
			zap.Int("duration_days", durationDays),
		)
		return nil
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		common.LogWarn("骨架回應為空，降級為無骨架模式")
		return nil
	}

	text := common.ExtractJSONObject(resp.Content)
	if text == "" {
		common.LogWarn("骨架回應缺少 JSON 邊界，降級為無骨架模式",
			zap.Int("response_length", len(resp.Content)),
		)
		return nil
	}

	var skeleton WeekSkeleton
	if err := common.ParseJSON(text, &skeleton); err != nil {
		common.LogWarn("骨架 JSON 解析失敗，降級為無骨架模式",
			zap.Error(err),
		)
		return nil
	}

	if len(skeleton.WeeklyGroceryList) == 0 || len(skeleton.Days) == 0 {
		common.LogWarn("骨架缺少 weeklyGroceryList 或 days，降級為無骨架模式",
			zap.Int("grocery_items", len(skeleton.WeeklyGroceryList)),
			zap.Int("days", len(skeleton.Days)),
		)
		return nil
	}

	common.LogInfo("週骨架生成完成",
		zap.Int("days", len(skeleton.Days)),
		zap.Int("grocery_items", len(skeleton.WeeklyGroceryList)),
	)
	return &skeleton
}

// buildPrompt 組骨架 prompt：只要概念與採買清單，不要完整食譜
func (p *SkeletonPlanner) buildPrompt(profile *UserProfile, durationDays int, catalog IngredientCatalog, opts GenerateOptions) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Plan a %d-day meal concept outline for one person. Concepts only, NOT full recipes.\n\n", durationDays))
	sb.WriteString(fmt.Sprintf("Profile: %d kcal/day, %d g protein/day, cooking skill %s, max cooking time %d minutes.\n",
		profile.DailyCalorieTarget, profile.ProteinGrams, profile.CookingSkill, profile.MaxCookingTime))
	if len(profile.PreferredCuisines) > 0 {
		sb.WriteString(fmt.Sprintf("Preferred cuisines: %s.\n", common.StringSliceToString(profile.PreferredCuisines)))
	}
	if len(profile.DislikedCuisines) > 0 {
		sb.WriteString(fmt.Sprintf("Avoid cuisines: %s.\n", common.StringSliceToString(profile.DislikedCuisines)))
	}

	sb.WriteString(fmt.Sprintf("\nAllowed proteins: %s.\n", common.StringSliceToString(catalog.Proteins)))
	sb.WriteString(fmt.Sprintf("Allowed carbs: %s.\n", common.StringSliceToString(catalog.Carbs)))
	sb.WriteString(fmt.Sprintf("Allowed vegetables: %s.\n", common.StringSliceToString(catalog.Vegetables)))
	sb.WriteString(catalog.RotationHint + "\n")

	if opts.WeeklyPreferences != "" {
		sb.WriteString(fmt.Sprintf("\nThis week the user asked for: %s\n", opts.WeeklyPreferences))
	}
	if opts.WeeklyBusyness != "" {
		sb.WriteString(fmt.Sprintf("Schedule this week: %s\n", opts.WeeklyBusyness))
	}
	if len(opts.WeeklyFocus) > 0 {
		sb.WriteString(fmt.Sprintf("Weekly focus: %s\n", common.StringSliceToString(opts.WeeklyFocus)))
	}
	if len(opts.ExcludeRecipeNames) > 0 {
		sb.WriteString(fmt.Sprintf("Do NOT reuse these recent meal ideas: %s\n", common.StringSliceToString(opts.ExcludeRecipeNames)))
	}

	snackLine := ""
	if profile.IncludeSnacks {
		snackLine = `, "snacks": [{"idea": "...", "protein": "..."}, {"idea": "...", "protein": "..."}]`
	}

	sb.WriteString("\nReturn ONLY compact JSON, no markdown fences, no commentary, in exactly this shape:\n")
	sb.WriteString(fmt.Sprintf(`{"weeklyGroceryList": ["item1", "item2", ... 20 to 25 items total],"days": [{"day": 0, "breakfast": {"idea": "...", "protein": "...", "cuisine": "..."}, "lunch": {...}, "dinner": {...}%s}]}`, snackLine))
	sb.WriteString(fmt.Sprintf("\nInclude exactly %d entries in days, with day indices 0 to %d.\n", durationDays, durationDays-1))
	sb.WriteString("Ideas must be short dish names (e.g. \"lemon herb salmon with quinoa\"), varied across the week, reusing grocery list items so one shopping trip covers the whole plan.\n")

	return sb.String()
}
