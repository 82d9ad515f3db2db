package mealplan

import (
	"fmt"
	"time"

	"mealplan-generator/internal/pkg/common"
)

// NewPlanID 時間戳加隨機後綴。以這個量級的流量不用擔心碰撞。
func NewPlanID() string {
	return fmt.Sprintf("plan_%d_%s", time.Now().UnixMilli(), common.ShortID())
}

// AssemblePlan 把已排序的批次天數合併成一份帶身份的餐單
func AssemblePlan(days []MealPlanDay) *MealPlan {
	return &MealPlan{
		ID:   NewPlanID(),
		Days: days,
	}
}

// CollectRecipes 取出餐單中所有食譜，保持日期與餐別順序
func CollectRecipes(days []MealPlanDay) []GeneratedRecipe {
	var recipes []GeneratedRecipe
	for _, day := range days {
		for _, meal := range day.Meals {
			recipes = append(recipes, meal.Recipe)
		}
	}
	return recipes
}
