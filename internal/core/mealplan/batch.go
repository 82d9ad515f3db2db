package mealplan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"mealplan-generator/internal/core/ai"
	"mealplan-generator/internal/infrastructure/config"
	"mealplan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// BatchDetailGenerator 第二階段：把天數切成批次，對模型並行展開完整食譜。
// 批次大小壓在 2 天以內，單批回應才不會撞到模型的 token 上限。
type BatchDetailGenerator struct {
	completer ai.Completer
	config    *config.Config
}

// NewBatchDetailGenerator 創建批次生成器
func NewBatchDetailGenerator(completer ai.Completer, cfg *config.Config) *BatchDetailGenerator {
	return &BatchDetailGenerator{
		completer: completer,
		config:    cfg,
	}
}

// dayRange 一個批次負責的連續日期範圍（含首尾）
type dayRange struct {
	start int
	end   int
}

// label 批次標籤，錯誤與 log 用
func (r dayRange) label() string {
	if r.start == r.end {
		return fmt.Sprintf("day %d", r.start)
	}
	return fmt.Sprintf("days %d-%d", r.start, r.end)
}

// ClampDuration 把天數限制在 [1, max]
func ClampDuration(durationDays, maxDays int) int {
	if durationDays < 1 {
		return 1
	}
	if durationDays > maxDays {
		return maxDays
	}
	return durationDays
}

// partitionDays 把 0..duration-1 切成最多 batchSize 天的連續批次
func partitionDays(durationDays, batchSize int) []dayRange {
	var ranges []dayRange
	for start := 0; start < durationDays; start += batchSize {
		end := start + batchSize - 1
		if end >= durationDays {
			end = durationDays - 1
		}
		ranges = append(ranges, dayRange{start: start, end: end})
	}
	return ranges
}

// batchResult 附著原始批次範圍的結果，讓完成順序亂掉也能排回去
type batchResult struct {
	rng  dayRange
	days []MealPlanDay
}

// GenerateBatches 並行生成所有批次並等全部完成（fan-out/fan-in，無部分結果）。
// 任一批次失敗則整個請求失敗；成功時回傳按日期升冪排序的完整天數。
func (g *BatchDetailGenerator) GenerateBatches(ctx context.Context, profile *UserProfile, durationDays int, catalog IngredientCatalog, skeleton *WeekSkeleton, opts GenerateOptions) ([]MealPlanDay, error) {
	durationDays = ClampDuration(durationDays, g.config.MealPlan.MaxDurationDays)
	ranges := partitionDays(durationDays, g.config.MealPlan.BatchSizeDays)
	targets := ComputeMealTargets(profile)

	common.LogInfo("開始批次生成",
		zap.Int("duration_days", durationDays),
		zap.Int("batches", len(ranges)),
	)

	results := make([]batchResult, len(ranges))
	errs := make([]error, len(ranges))

	var wg sync.WaitGroup
	for i, rng := range ranges {
		wg.Add(1)
		go func(i int, rng dayRange) {
			defer wg.Done()
			days, err := g.generateOne(ctx, profile, rng, durationDays, targets, catalog, skeleton, opts)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = batchResult{rng: rng, days: days}
		}(i, rng)
	}
	wg.Wait()

	// 全有或全無：任一批次失敗就放棄整份餐單
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var all []MealPlanDay
	for _, res := range results {
		all = append(all, res.days...)
	}

	// 併發完成順序不保證，回傳前排回日期升冪
	sort.Slice(all, func(i, j int) bool {
		return all[i].Day < all[j].Day
	})

	return all, nil
}

// generateOne 生成單一批次並驗證天數落在批次範圍內
func (g *BatchDetailGenerator) generateOne(ctx context.Context, profile *UserProfile, rng dayRange, durationDays int, targets []MealTarget, catalog IngredientCatalog, skeleton *WeekSkeleton, opts GenerateOptions) ([]MealPlanDay, error) {
	prompt := g.buildBatchPrompt(profile, rng, durationDays, targets, catalog, skeleton, opts)

	resp, err := g.completer.Complete(ctx, &ai.CompletionRequest{
		Model:        g.config.OpenRouter.Model,
		MaxTokens:    g.config.OpenRouter.MaxTokens,
		SystemPrompt: batchSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("batch %s: AI service error: %w", rng.label(), err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("batch %s: %w", rng.label(), common.ErrEmptyAIResponse)
	}

	days, err := ParseBatchResponse(resp.Content, rng.label())
	if err != nil {
		return nil, err
	}

	// 天數不足是致命錯誤：缺天的餐單就是半份餐單
	expected := rng.end - rng.start + 1
	if len(days) < expected {
		return nil, common.NewMalformedResponseError(rng.label(),
			fmt.Sprintf("expected %d days, got %d", expected, len(days)), nil)
	}

	// 把結果釘回原始日期範圍：模型偶爾會弄錯 day index，多出來的截掉
	if len(days) > expected {
		common.LogWarn("批次回傳天數多於範圍，截斷至範圍長度",
			zap.String("batch", rng.label()),
			zap.Int("expected", expected),
			zap.Int("actual", len(days)),
		)
		days = days[:expected]
	}
	for i := range days {
		days[i].Day = rng.start + i
	}

	return days, nil
}

// batchSystemPrompt 批次生成的系統提示
const batchSystemPrompt = `You are a professional meal planning assistant. You produce realistic, cookable recipes with accurate per-serving nutrition estimates. You reply with compact JSON only: no markdown fences, no commentary, every key double-quoted. Every ingredient mentioned in the instructions MUST appear in the ingredients list.`

// buildBatchPrompt 組單一批次的 prompt：絕對營養目標、骨架切片、跨批次意識清單
func (g *BatchDetailGenerator) buildBatchPrompt(profile *UserProfile, rng dayRange, durationDays int, targets []MealTarget, catalog IngredientCatalog, skeleton *WeekSkeleton, opts GenerateOptions) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate complete meal plan details for %s of a %d-day plan for one person.\n\n", rng.label(), durationDays))

	sb.WriteString(fmt.Sprintf("Profile: age %d, %s, %.0f kg, %.0f cm, activity %s, cooking skill %s, max cooking time %d minutes, measurement system %s.\n",
		profile.Age, profile.Gender, profile.WeightKg, profile.HeightCm, profile.ActivityLevel,
		profile.CookingSkill, profile.MaxCookingTime, profile.MeasurementSystem))
	sb.WriteString(fmt.Sprintf("Daily targets: %d kcal, %d g protein, %d g carbs, %d g fat.\n",
		profile.DailyCalorieTarget, profile.ProteinGrams, profile.CarbsGrams, profile.FatGrams))

	sb.WriteString("\nPer-meal targets (per serving, hit these ranges):\n")
	sb.WriteString(formatMealTargets(targets))

	sb.WriteString("\nAllowed ingredients only:\n")
	sb.WriteString(fmt.Sprintf("- proteins: %s\n", common.StringSliceToString(catalog.Proteins)))
	sb.WriteString(fmt.Sprintf("- carbs: %s\n", common.StringSliceToString(catalog.Carbs)))
	sb.WriteString(fmt.Sprintf("- vegetables: %s\n", common.StringSliceToString(catalog.Vegetables)))
	sb.WriteString(fmt.Sprintf("- fruits: %s\n", common.StringSliceToString(catalog.Fruits)))
	sb.WriteString(fmt.Sprintf("- dairy/fats: %s\n", common.StringSliceToString(catalog.DairyFats)))
	if profile.IncludeSnacks {
		sb.WriteString(fmt.Sprintf("- snack items: %s\n", common.StringSliceToString(catalog.SnackItems)))
	}
	sb.WriteString(catalog.RotationHint + "\n")

	if slice := formatSkeletonSlice(skeleton, rng); slice != "" {
		sb.WriteString("\nFollow these planned meal concepts for your days:\n")
		sb.WriteString(slice)
	}
	if awareness := formatCrossBatchConcepts(skeleton, rng); awareness != "" {
		sb.WriteString("\nOther days of this plan already use these concepts. Do NOT duplicate their proteins or dishes:\n")
		sb.WriteString(awareness)
	}

	if opts.WeeklyPreferences != "" {
		sb.WriteString(fmt.Sprintf("\nThis week the user asked for: %s\n", opts.WeeklyPreferences))
	}
	if len(opts.ExcludeRecipeNames) > 0 {
		sb.WriteString(fmt.Sprintf("Never reuse these recipe names: %s\n", common.StringSliceToString(opts.ExcludeRecipeNames)))
	}

	mealsPerDay := MealsPerDayCount(profile.IncludeSnacks)
	orderNames := make([]string, 0, mealsPerDay)
	for _, slot := range mealOrder(profile.IncludeSnacks) {
		orderNames = append(orderNames, string(slot))
	}

	sb.WriteString("\nRequirements:\n")
	sb.WriteString(fmt.Sprintf("1. Each day has exactly %d meals in this order: %s\n", mealsPerDay, strings.Join(orderNames, ", ")))
	sb.WriteString("2. Every ingredient referenced in instructions must appear in the ingredients list\n")
	sb.WriteString("3. Nutrition values are per serving and must be integers\n")
	sb.WriteString("4. Recipe names must be unique and descriptive\n")
	sb.WriteString("5. Return the most compact JSON possible, no markdown fences, no extra text\n")

	sb.WriteString("\nReturn exactly this JSON shape:\n")
	sb.WriteString(fmt.Sprintf(`{"days":[{"day":%d,"meals":[{"mealType":"breakfast","recipe":{"name":"...","description":"...","nutrition":{"calories":0,"proteinGrams":0,"carbsGrams":0,"fatGrams":0,"fiberGrams":0},"prepTime":0,"cookTime":0,"servings":1,"complexity":"easy","cuisine":"...","instructions":["step 1","step 2"],"ingredients":[{"name":"...","quantity":"...","unit":"...","category":"..."}]}}]}]}`, rng.start))
	sb.WriteString(fmt.Sprintf("\nInclude entries for day %d through day %d.\n", rng.start, rng.end))

	return sb.String()
}

// formatSkeletonSlice 取出屬於本批次日期範圍的骨架概念
func formatSkeletonSlice(skeleton *WeekSkeleton, rng dayRange) string {
	if skeleton == nil {
		return ""
	}
	var sb strings.Builder
	for _, day := range skeleton.Days {
		if day.Day < rng.start || day.Day > rng.end {
			continue
		}
		sb.WriteString(formatSkeletonDay(day))
	}
	return sb.String()
}

// formatCrossBatchConcepts 其他批次日期的概念清單，避免跨批次撞菜
func formatCrossBatchConcepts(skeleton *WeekSkeleton, rng dayRange) string {
	if skeleton == nil {
		return ""
	}
	var sb strings.Builder
	for _, day := range skeleton.Days {
		if day.Day >= rng.start && day.Day <= rng.end {
			continue
		}
		sb.WriteString(formatSkeletonDay(day))
	}
	return sb.String()
}

// formatSkeletonDay 單日概念轉 prompt 行
func formatSkeletonDay(day SkeletonDay) string {
	var sb strings.Builder
	writeConcept := func(slot string, c *MealConcept) {
		if c == nil || c.Idea == "" {
			return
		}
		sb.WriteString(fmt.Sprintf("- Day %d %s: %s", day.Day, slot, c.Idea))
		if c.Protein != "" {
			sb.WriteString(fmt.Sprintf(" (protein: %s)", c.Protein))
		}
		if c.Cuisine != "" {
			sb.WriteString(fmt.Sprintf(" [%s]", c.Cuisine))
		}
		sb.WriteString("\n")
	}
	writeConcept("breakfast", day.Breakfast)
	writeConcept("lunch", day.Lunch)
	writeConcept("dinner", day.Dinner)
	for i := range day.Snacks {
		snack := day.Snacks[i]
		writeConcept(fmt.Sprintf("snack %d", i+1), &snack)
	}
	return sb.String()
}
