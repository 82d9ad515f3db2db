package mealplan

import (
	"mealplan-generator/internal/core/ratelimit"
	"mealplan-generator/internal/pkg/common"
)

// maxExcludeRecipeNames 排除清單上限
const maxExcludeRecipeNames = 200

// GenerateRequest 生成端點的請求信封
type GenerateRequest struct {
	UserProfile         UserProfile `json:"userProfile" binding:"required"`
	WeeklyPreferences   string      `json:"weeklyPreferences,omitempty"`
	ExcludeRecipeNames  []string    `json:"excludeRecipeNames,omitempty"`
	DeviceID            string      `json:"deviceId" binding:"required"`
	Duration            int         `json:"duration,omitempty"`
	WeeklyFocus         []string    `json:"weeklyFocus,omitempty"`
	TemporaryExclusions []string    `json:"temporaryExclusions,omitempty"`
	WeeklyBusyness      string      `json:"weeklyBusyness,omitempty"`
}

// Validate 在任何付費調用與配額消耗之前做輸入把關。
// 任何違規都以驗證錯誤短路，不產生任何副作用。
func (r *GenerateRequest) Validate() error {
	if !ratelimit.ValidDeviceID(r.DeviceID) {
		return common.NewValidationError("Invalid device ID")
	}
	if len(r.ExcludeRecipeNames) > maxExcludeRecipeNames {
		return common.NewValidationError("Too many excluded recipe names")
	}

	p := &r.UserProfile
	switch {
	case p.DailyCalorieTarget < 800 || p.DailyCalorieTarget > 10000:
		return common.NewValidationError("Calorie target must be between 800 and 10000")
	case p.Age < 13 || p.Age > 120:
		return common.NewValidationError("Age must be between 13 and 120")
	case p.WeightKg < 20 || p.WeightKg > 500:
		return common.NewValidationError("Weight must be between 20 and 500 kg")
	case p.HeightCm < 50 || p.HeightCm > 300:
		return common.NewValidationError("Height must be between 50 and 300 cm")
	case p.ProteinGrams < 0 || p.ProteinGrams > 1000:
		return common.NewValidationError("Protein target must be between 0 and 1000 grams")
	case p.MealsPerDay < 1 || p.MealsPerDay > 10:
		return common.NewValidationError("Meals per day must be between 1 and 10")
	}

	return nil
}

// options 轉成內部選項結構
func (r *GenerateRequest) options() GenerateOptions {
	return GenerateOptions{
		WeeklyPreferences:   r.WeeklyPreferences,
		ExcludeRecipeNames:  r.ExcludeRecipeNames,
		WeeklyFocus:         r.WeeklyFocus,
		TemporaryExclusions: r.TemporaryExclusions,
		WeeklyBusyness:      r.WeeklyBusyness,
	}
}
