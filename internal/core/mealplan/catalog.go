package mealplan

import (
	"fmt"
	"strings"
)

// 基礎食材目錄，按飲食層級由小到大組合：vegan ⊂ vegetarian ⊂ pescatarian ⊂ omnivore
var (
	veganProteins = []string{
		"tofu", "tempeh", "seitan", "lentils", "chickpeas", "black beans",
		"kidney beans", "edamame", "quinoa", "hemp seeds",
	}
	vegetarianProteins = []string{
		"eggs", "greek yogurt", "cottage cheese",
	}
	pescatarianProteins = []string{
		"salmon", "tuna", "cod", "tilapia", "shrimp", "sardines",
	}
	omnivoreProteins = []string{
		"chicken breast", "chicken thighs", "ground turkey", "lean beef",
		"pork tenderloin", "lamb",
	}

	baseCarbs = []string{
		"brown rice", "white rice", "quinoa", "oats", "whole wheat pasta",
		"sweet potato", "potato", "whole grain bread", "tortillas", "couscous",
	}
	baseVegetables = []string{
		"broccoli", "spinach", "kale", "bell pepper", "zucchini", "carrots",
		"cauliflower", "green beans", "asparagus", "mushrooms", "onion",
		"tomato", "cucumber", "cabbage",
	}
	baseFruits = []string{
		"banana", "apple", "blueberries", "strawberries", "orange", "mango",
		"grapes", "pineapple", "avocado",
	}
	veganDairyFats = []string{
		"olive oil", "coconut oil", "almond milk", "oat milk", "tahini",
		"almonds", "walnuts", "cashews", "peanut butter", "chia seeds",
	}
	dairyFats = []string{
		"milk", "cheese", "yogurt", "butter", "cream cheese",
	}
	baseSnackItems = []string{
		"hummus", "rice cakes", "trail mix", "dark chocolate", "popcorn",
		"granola bars", "dried fruit",
	}
	dairySnackItems = []string{
		"string cheese", "greek yogurt",
	}
)

// compoundTerms 複合詞展開表：討厭一個類別等於移除其所有成員
var compoundTerms = map[string][]string{
	"seafood":    {"salmon", "tuna", "cod", "tilapia", "shrimp", "sardines", "crab", "mussels"},
	"fish":       {"salmon", "tuna", "cod", "tilapia", "sardines"},
	"shellfish":  {"shrimp", "crab", "mussels", "lobster", "scallops"},
	"beans":      {"black beans", "kidney beans", "chickpeas", "lentils", "edamame", "hummus"},
	"legumes":    {"black beans", "kidney beans", "chickpeas", "lentils", "edamame", "peanut butter"},
	"nuts":       {"almonds", "walnuts", "cashews", "peanut butter", "trail mix", "almond milk", "tahini"},
	"dairy":      {"milk", "cheese", "yogurt", "greek yogurt", "cottage cheese", "butter", "cream cheese", "string cheese"},
	"eggs":       {"eggs"},
	"red meat":   {"lean beef", "pork tenderloin", "lamb"},
	"pork":       {"pork tenderloin"},
	"gluten":     {"whole wheat pasta", "whole grain bread", "tortillas", "couscous", "seitan", "oats", "granola bars"},
	"soy":        {"tofu", "tempeh", "edamame"},
	"spicy food": {"chili", "jalapeno", "sriracha", "hot sauce"},
}

// dietTier 飲食層級，數字越小限制越嚴格
type dietTier int

const (
	tierVegan dietTier = iota
	tierVegetarian
	tierPescatarian
	tierOmnivore
)

// resolveTier 由限制清單選出最高優先級的層級
func resolveTier(restrictions []string) dietTier {
	has := func(name string) bool {
		for _, r := range restrictions {
			if strings.EqualFold(strings.TrimSpace(r), name) {
				return true
			}
		}
		return false
	}
	switch {
	case has("vegan"):
		return tierVegan
	case has("vegetarian"):
		return tierVegetarian
	case has("pescatarian"):
		return tierPescatarian
	default:
		return tierOmnivore
	}
}

// baseCatalogForTier 組出層級的基礎目錄
func baseCatalogForTier(tier dietTier) IngredientCatalog {
	proteins := append([]string{}, veganProteins...)
	fats := append([]string{}, veganDairyFats...)
	snacks := append([]string{}, baseSnackItems...)

	if tier >= tierVegetarian {
		proteins = append(proteins, vegetarianProteins...)
		fats = append(fats, dairyFats...)
		snacks = append(snacks, dairySnackItems...)
	}
	if tier >= tierPescatarian {
		proteins = append(proteins, pescatarianProteins...)
	}
	if tier >= tierOmnivore {
		proteins = append(proteins, omnivoreProteins...)
	}

	return IngredientCatalog{
		Proteins:   proteins,
		Carbs:      append([]string{}, baseCarbs...),
		Vegetables: append([]string{}, baseVegetables...),
		Fruits:     append([]string{}, baseFruits...),
		DairyFats:  fats,
		SnackItems: snacks,
	}
}

// expandTerms 將複合詞展開為底層食材集合（小寫）
func expandTerms(terms []string) map[string]bool {
	excluded := make(map[string]bool)
	for _, term := range terms {
		name := strings.ToLower(strings.TrimSpace(term))
		if name == "" {
			continue
		}
		if members, ok := compoundTerms[name]; ok {
			for _, m := range members {
				excluded[m] = true
			}
		}
		excluded[name] = true
	}
	return excluded
}

// filterList 移除名稱命中排除集合的項目（不分大小寫的精確比對，不做子字串比對）
func filterList(items []string, excluded map[string]bool) []string {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if excluded[strings.ToLower(item)] {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// BuildIngredientCatalog 由飲食規則推導可用食材目錄。
// 純函數：相同輸入必得相同輸出。
// 套用順序：層級基礎目錄 → 過敏原與不喜歡 → 本週臨時排除。
// 臨時排除只影響這一次生成，以過敏等級的嚴格度處理，絕不寫回檔案。
func BuildIngredientCatalog(restrictions, allergies, dislikes, temporaryExclusions []string) IngredientCatalog {
	catalog := baseCatalogForTier(resolveTier(restrictions))

	excluded := expandTerms(allergies)
	for name := range expandTerms(dislikes) {
		excluded[name] = true
	}
	for name := range expandTerms(temporaryExclusions) {
		excluded[name] = true
	}

	catalog.Proteins = filterList(catalog.Proteins, excluded)
	catalog.Carbs = filterList(catalog.Carbs, excluded)
	catalog.Vegetables = filterList(catalog.Vegetables, excluded)
	catalog.Fruits = filterList(catalog.Fruits, excluded)
	catalog.DairyFats = filterList(catalog.DairyFats, excluded)
	catalog.SnackItems = filterList(catalog.SnackItems, excluded)

	catalog.RotationHint = buildRotationHint(catalog.Proteins)

	return catalog
}

// buildRotationHint 產生蛋白質輪替提示，只作為 prompt 輔助，不是結構保證
func buildRotationHint(proteins []string) string {
	if len(proteins) == 0 {
		return "No protein sources available; rely on mixed whole-food meals."
	}
	n := len(proteins)
	if n > 6 {
		n = 6
	}
	return fmt.Sprintf("Rotate protein sources across the week so no protein repeats two days in a row. Available rotation: %s.",
		strings.Join(proteins[:n], ", "))
}
