package recipestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"mealplan-generator/internal/core/mealplan"
	"mealplan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// KeyValueStore 食譜庫的後端契約（find-or-create）。
// FindOrCreate 在鍵不存在時寫入並回傳 true；已存在時原值不動、回傳 false。
type KeyValueStore interface {
	FindOrCreate(ctx context.Context, key string, value []byte) (created bool, err error)
}

// Store 以指紋去重的食譜持久化層。
// 跨餐單、跨裝置的食譜碰撞是預期且樂見的（累積共用食譜庫），
// 重複只計數、不報錯，已存在的記錄永不改寫。
type Store struct {
	kv KeyValueStore
}

// NewStore 創建食譜去重儲存
func NewStore(kv KeyValueStore) *Store {
	return &Store{kv: kv}
}

// Fingerprint 食譜的衍生身份：正規化名稱加營養簽名。
// 熱量取到 10 的倍數，讓模型估算的小幅抖動不會產生假性新食譜。
func Fingerprint(recipe *mealplan.GeneratedRecipe) string {
	name := strings.ToLower(strings.TrimSpace(recipe.Name))
	signature := fmt.Sprintf("%s|%d|%d|%d|%d",
		name,
		recipe.Nutrition.Calories/10*10,
		recipe.Nutrition.ProteinGrams,
		recipe.Nutrition.CarbsGrams,
		recipe.Nutrition.FatGrams,
	)
	hash := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(hash[:])
}

// SaveIfUnique 保存單一食譜。已存在相同指紋時是計作重複的 no-op。
func (s *Store) SaveIfUnique(ctx context.Context, recipe *mealplan.GeneratedRecipe) (bool, string, error) {
	fingerprint := Fingerprint(recipe)
	id := "recipe_" + fingerprint[:16]

	data, err := common.ToJSON(recipe)
	if err != nil {
		return false, "", fmt.Errorf("failed to serialize recipe: %w", err)
	}

	created, err := s.kv.FindOrCreate(ctx, "recipe:fp:"+fingerprint, []byte(data))
	if err != nil {
		return false, "", fmt.Errorf("recipe store error: %w", err)
	}

	if !created {
		common.LogDebug("食譜指紋已存在，計為重複",
			zap.String("recipe_id", id),
			zap.String("recipe_name", recipe.Name),
		)
	}
	return created, id, nil
}

// SaveAllIfUnique 批次保存並回報新增／重複數量
func (s *Store) SaveAllIfUnique(ctx context.Context, recipes []mealplan.GeneratedRecipe) (saved int, duplicates int, err error) {
	for i := range recipes {
		created, _, err := s.SaveIfUnique(ctx, &recipes[i])
		if err != nil {
			return saved, duplicates, err
		}
		if created {
			saved++
		} else {
			duplicates++
		}
	}

	common.LogInfo("食譜批次保存完成",
		zap.Int("saved", saved),
		zap.Int("duplicates", duplicates),
	)
	return saved, duplicates, nil
}
