package mealplan

import (
	"strings"

	"mealplan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// batchPayload 批次回應的外層結構
type batchPayload struct {
	Days []MealPlanDay `json:"days"`
}

// ParseBatchResponse 從模型輸出擷取並解析一個批次的天數。
// 解析失敗是整個請求的致命錯誤（半份餐單比明確失敗更糟），
// 回傳帶批次標籤的 MalformedResponseError。
func ParseBatchResponse(raw, batchLabel string) ([]MealPlanDay, error) {
	text := common.ExtractJSONObject(raw)
	if text == "" {
		return nil, common.NewMalformedResponseError(batchLabel, "no JSON object boundaries in model output", nil)
	}

	var payload batchPayload
	if err := common.ParseJSON(text, &payload); err != nil {
		return nil, common.NewMalformedResponseError(batchLabel, "extracted text is not valid JSON", err)
	}

	if len(payload.Days) == 0 {
		return nil, common.NewMalformedResponseError(batchLabel, "response contains no days", nil)
	}

	return payload.Days, nil
}

// expectedMealDistribution 一天應有的餐別分佈
func expectedMealDistribution(includeSnacks bool) map[MealType]int {
	dist := map[MealType]int{
		MealBreakfast: 1,
		MealLunch:     1,
		MealDinner:    1,
	}
	if includeSnacks {
		dist[MealSnack] = 2
	}
	return dist
}

// ValidatePlanDays 對整份餐單做非致命檢查：餐別分佈、食譜名稱唯一性、
// 步驟中引用的食材是否列於食材清單。全部只記 log，不會讓請求失敗——
// 這些是可觀測性訊號，不是拒絕條件。
func ValidatePlanDays(days []MealPlanDay, includeSnacks bool) {
	expected := expectedMealDistribution(includeSnacks)
	seenNames := make(map[string]int)

	for _, day := range days {
		actual := make(map[MealType]int)
		for _, meal := range day.Meals {
			actual[meal.MealType]++
			seenNames[strings.ToLower(strings.TrimSpace(meal.Recipe.Name))]++
			checkIngredientConsistency(day.Day, meal.Recipe)
		}

		for mealType, want := range expected {
			if actual[mealType] != want {
				common.LogWarn("餐別分佈與預期不符",
					zap.Int("day", day.Day),
					zap.String("meal_type", string(mealType)),
					zap.Int("expected", want),
					zap.Int("actual", actual[mealType]),
				)
			}
		}
		for mealType, got := range actual {
			if _, ok := expected[mealType]; !ok {
				common.LogWarn("出現未預期的餐別",
					zap.Int("day", day.Day),
					zap.String("meal_type", string(mealType)),
					zap.Int("count", got),
				)
			}
		}
	}

	for name, count := range seenNames {
		if count > 1 {
			common.LogWarn("餐單中出現重複食譜名稱",
				zap.String("recipe_name", name),
				zap.Int("count", count),
			)
		}
	}
}

// knownIngredientVocabulary 全部已知食材（雜食層級的完整目錄），用於步驟文字的交叉比對
var knownIngredientVocabulary = func() []string {
	catalog := baseCatalogForTier(tierOmnivore)
	var all []string
	all = append(all, catalog.Proteins...)
	all = append(all, catalog.Carbs...)
	all = append(all, catalog.Vegetables...)
	all = append(all, catalog.Fruits...)
	all = append(all, catalog.DairyFats...)
	all = append(all, catalog.SnackItems...)
	return all
}()

// checkIngredientConsistency 檢查步驟文字引用的已知食材都列在食材清單裡。
// prompt 契約要求模型保證這件事，這裡只能對已知詞彙做機械比對，違反記 warning。
func checkIngredientConsistency(day int, recipe GeneratedRecipe) {
	if len(recipe.Instructions) == 0 {
		common.LogWarn("食譜缺少步驟",
			zap.Int("day", day),
			zap.String("recipe_name", recipe.Name),
		)
		return
	}

	listed := make(map[string]bool, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		listed[strings.ToLower(strings.TrimSpace(ing.Name))] = true
	}

	instructionText := strings.ToLower(strings.Join(recipe.Instructions, " "))
	for _, known := range knownIngredientVocabulary {
		if !strings.Contains(instructionText, known) {
			continue
		}
		if !listed[known] {
			common.LogWarn("步驟引用了未列出的食材",
				zap.Int("day", day),
				zap.String("recipe_name", recipe.Name),
				zap.String("ingredient", known),
			)
		}
	}
}
