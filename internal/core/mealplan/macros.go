package mealplan

import (
	"fmt"
	"math"
	"strings"
)

// 每餐的固定配比（熱量 / 蛋白質），五餐各自加總為 100%
const (
	breakfastCalorieShare = 0.22
	lunchCalorieShare     = 0.32
	dinnerCalorieShare    = 0.28
	snackCalorieShare     = 0.09 // 兩份點心各 9%

	breakfastProteinShare = 0.20
	lunchProteinShare     = 0.28
	dinnerProteinShare    = 0.26
	snackProteinShare     = 0.13 // 兩份點心各 13%
)

// MealTarget 單一餐別的絕對熱量／蛋白質目標區間
type MealTarget struct {
	Slot        MealType
	Calories    int
	CaloriesMin int
	CaloriesMax int
	Protein     int
	ProteinMin  int
	ProteinMax  int
}

// roundTo5 四捨五入到 5 的倍數，prompt 裡的目標看起來比較自然
func roundTo5(v float64) int {
	return int(math.Round(v/5) * 5)
}

func newMealTarget(slot MealType, calories, protein float64) MealTarget {
	return MealTarget{
		Slot:        slot,
		Calories:    roundTo5(calories),
		CaloriesMin: roundTo5(calories * 0.9),
		CaloriesMax: roundTo5(calories * 1.1),
		Protein:     roundTo5(protein),
		ProteinMin:  roundTo5(protein * 0.9),
		ProteinMax:  roundTo5(protein * 1.1),
	}
}

// ComputeMealTargets 以固定百分比把每日目標拆成每餐目標。
// 不含點心時，主餐配比按比例放大，使三餐仍加總為每日目標。
func ComputeMealTargets(profile *UserProfile) []MealTarget {
	dailyCalories := float64(profile.DailyCalorieTarget)
	dailyProtein := float64(profile.ProteinGrams)

	if !profile.IncludeSnacks {
		mainCalShare := breakfastCalorieShare + lunchCalorieShare + dinnerCalorieShare
		mainProtShare := breakfastProteinShare + lunchProteinShare + dinnerProteinShare
		return []MealTarget{
			newMealTarget(MealBreakfast, dailyCalories*breakfastCalorieShare/mainCalShare, dailyProtein*breakfastProteinShare/mainProtShare),
			newMealTarget(MealLunch, dailyCalories*lunchCalorieShare/mainCalShare, dailyProtein*lunchProteinShare/mainProtShare),
			newMealTarget(MealDinner, dailyCalories*dinnerCalorieShare/mainCalShare, dailyProtein*dinnerProteinShare/mainProtShare),
		}
	}

	return []MealTarget{
		newMealTarget(MealBreakfast, dailyCalories*breakfastCalorieShare, dailyProtein*breakfastProteinShare),
		newMealTarget(MealSnack, dailyCalories*snackCalorieShare, dailyProtein*snackProteinShare),
		newMealTarget(MealLunch, dailyCalories*lunchCalorieShare, dailyProtein*lunchProteinShare),
		newMealTarget(MealSnack, dailyCalories*snackCalorieShare, dailyProtein*snackProteinShare),
		newMealTarget(MealDinner, dailyCalories*dinnerCalorieShare, dailyProtein*dinnerProteinShare),
	}
}

// formatMealTargets 將每餐目標轉成 prompt 段落
func formatMealTargets(targets []MealTarget) string {
	var sb strings.Builder
	slotNames := map[MealType]string{
		MealBreakfast: "Breakfast",
		MealSnack:     "Snack",
		MealLunch:     "Lunch",
		MealDinner:    "Dinner",
	}
	snackIdx := 0
	for _, t := range targets {
		name := slotNames[t.Slot]
		if t.Slot == MealSnack {
			snackIdx++
			name = fmt.Sprintf("Snack %d", snackIdx)
		}
		sb.WriteString(fmt.Sprintf("- %s: %d-%d kcal (target %d), %d-%d g protein (target %d)\n",
			name, t.CaloriesMin, t.CaloriesMax, t.Calories, t.ProteinMin, t.ProteinMax, t.Protein))
	}
	return sb.String()
}
