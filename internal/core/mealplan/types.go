package mealplan

// MealType 餐別
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealSnack     MealType = "snack"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
)

// UserProfile 用戶營養檔案，在單次生成請求期間視為不可變
type UserProfile struct {
	Age                 int      `json:"age"`
	Gender              string   `json:"gender"`
	WeightKg            float64  `json:"weightKg"`
	HeightCm            float64  `json:"heightCm"`
	ActivityLevel       string   `json:"activityLevel"`
	DailyCalorieTarget  int      `json:"dailyCalorieTarget"`
	ProteinGrams        int      `json:"proteinGrams"`
	CarbsGrams          int      `json:"carbsGrams"`
	FatGrams            int      `json:"fatGrams"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	Allergies           []string `json:"allergies"`
	FoodDislikes        []string `json:"foodDislikes"`
	PreferredCuisines   []string `json:"preferredCuisines"`
	DislikedCuisines    []string `json:"dislikedCuisines"`
	CookingSkill        string   `json:"cookingSkill"`
	MaxCookingTime      int      `json:"maxCookingTime"`
	MealsPerDay         int      `json:"mealsPerDay"`
	IncludeSnacks       bool     `json:"includeSnacks"`
	PantryLevel         string   `json:"pantryLevel"`
	BehavioralBarriers  []string `json:"behavioralBarriers"`
	PrimaryGoals        []string `json:"primaryGoals"`
	GoalPace            string   `json:"goalPace"`
	MeasurementSystem   string   `json:"measurementSystem"`
}

// IngredientCatalog 依飲食規則推導出的可用食材目錄。
// 每次請求重新計算，絕不跨檔案快取。
type IngredientCatalog struct {
	Proteins     []string `json:"proteins"`
	Carbs        []string `json:"carbs"`
	Vegetables   []string `json:"vegetables"`
	Fruits       []string `json:"fruits"`
	DairyFats    []string `json:"dairyFats"`
	SnackItems   []string `json:"snackItems"`
	RotationHint string   `json:"rotationHint"`
}

// MealConcept 單餐的概念（菜名構想），不是完整食譜
type MealConcept struct {
	Idea    string `json:"idea"`
	Protein string `json:"protein,omitempty"`
	Cuisine string `json:"cuisine,omitempty"`
}

// SkeletonDay 骨架中的一天
type SkeletonDay struct {
	Day       int           `json:"day"`
	Breakfast *MealConcept  `json:"breakfast,omitempty"`
	Lunch     *MealConcept  `json:"lunch,omitempty"`
	Dinner    *MealConcept  `json:"dinner,omitempty"`
	Snacks    []MealConcept `json:"snacks,omitempty"`
}

// WeekSkeleton 第一階段產出的週骨架：共用採買清單加上每日餐點概念。
// nil 是合法且預期的狀態，代表骨架生成降級、直接進入細節生成。
type WeekSkeleton struct {
	WeeklyGroceryList []string      `json:"weeklyGroceryList"`
	Days              []SkeletonDay `json:"days"`
}

// Ingredient 食譜中的一項食材
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
	Category string `json:"category"`
}

// Nutrition 每份營養
type Nutrition struct {
	Calories     int `json:"calories"`
	ProteinGrams int `json:"proteinGrams"`
	CarbsGrams   int `json:"carbsGrams"`
	FatGrams     int `json:"fatGrams"`
	FiberGrams   int `json:"fiberGrams"`
}

// GeneratedRecipe 模型生成的食譜；名稱在同一份餐單內作為自然鍵
type GeneratedRecipe struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Nutrition    Nutrition    `json:"nutrition"`
	PrepTime     int          `json:"prepTime"`
	CookTime     int          `json:"cookTime"`
	Servings     int          `json:"servings"`
	Complexity   string       `json:"complexity"`
	Cuisine      string       `json:"cuisine"`
	Instructions []string     `json:"instructions"`
	Ingredients  []Ingredient `json:"ingredients"`
}

// Meal 一餐
type Meal struct {
	MealType MealType        `json:"mealType"`
	Recipe   GeneratedRecipe `json:"recipe"`
}

// MealPlanDay 餐單中的一天；day 為 0..duration-1
type MealPlanDay struct {
	Day   int    `json:"day"`
	Meals []Meal `json:"meals"`
}

// MealPlan 完整餐單
type MealPlan struct {
	ID   string        `json:"id"`
	Days []MealPlanDay `json:"days"`
}

// GenerateOptions 一次生成請求的可選參數
type GenerateOptions struct {
	WeeklyPreferences   string
	ExcludeRecipeNames  []string
	WeeklyFocus         []string
	TemporaryExclusions []string
	WeeklyBusyness      string
}

// RateLimitInfo 回應信封中的配額資訊
type RateLimitInfo struct {
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"resetTime"`
	Limit     int   `json:"limit"`
}

// GenerateResult 回應信封：要嘛完整餐單、要嘛單一錯誤字串，絕不回傳半份餐單
type GenerateResult struct {
	Success          bool           `json:"success"`
	Status           int            `json:"-"`
	MealPlan         *MealPlan      `json:"mealPlan,omitempty"`
	RecipesAdded     int            `json:"recipesAdded,omitempty"`
	RecipesDuplicate int            `json:"recipesDuplicate,omitempty"`
	Error            string         `json:"error,omitempty"`
	RateLimitInfo    *RateLimitInfo `json:"rateLimitInfo,omitempty"`
}

// MealsPerDayCount 回傳一天應有的餐數：含點心為 5（早/點/午/點/晚），否則 3
func MealsPerDayCount(includeSnacks bool) int {
	if includeSnacks {
		return 5
	}
	return 3
}

// mealOrder 固定的一天餐別順序
func mealOrder(includeSnacks bool) []MealType {
	if includeSnacks {
		return []MealType{MealBreakfast, MealSnack, MealLunch, MealSnack, MealDinner}
	}
	return []MealType{MealBreakfast, MealLunch, MealDinner}
}
