package ratelimit

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"mealplan-generator/internal/infrastructure/config"
	"mealplan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// ActionGeneratePlan 餐單生成動作的配額鍵
const ActionGeneratePlan = "generate_meal_plan"

// deviceIDPattern 裝置識別碼的限制性格式：英數與連字號，長度 1~128
var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,128}$`)

// ValidDeviceID 檢查裝置識別碼格式
func ValidDeviceID(deviceID string) bool {
	return deviceIDPattern.MatchString(deviceID)
}

// Result 一次配額檢查的結果
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
	Limit     int       `json:"limit"`
}

// CounterStore 配額計數的後端契約。
// IncrementAndCheck 原子遞增並回傳目前計數與視窗剩餘時間（首次命中時建立視窗）。
// Decrement 回退一次計數：被拒絕的檢查不得消耗配額。
type CounterStore interface {
	IncrementAndCheck(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	Decrement(ctx context.Context, key string) error
}

// Limiter 每裝置每動作的固定視窗配額閘門
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
}

// NewLimiter 創建配額限制器
func NewLimiter(store CounterStore, cfg *config.RateLimitConfig) *Limiter {
	return &Limiter{
		store:  store,
		limit:  cfg.Requests,
		window: cfg.Window,
	}
}

// Check 檢查並消耗一次配額。
// 後端不可用時 fail closed（回傳錯誤、請求被拒）：
// 每一次放行都要花模型費用，寧可擋掉也不能無上限放行。
func (l *Limiter) Check(ctx context.Context, deviceID, action string) (*Result, error) {
	if !ValidDeviceID(deviceID) {
		return nil, common.NewValidationError("Invalid device ID")
	}

	key := fmt.Sprintf("ratelimit:%s:%s", deviceID, action)

	count, ttl, err := l.store.IncrementAndCheck(ctx, key, l.window)
	if err != nil {
		common.LogError("配額儲存不可用，fail closed",
			zap.Error(err),
			zap.String("action", action),
		)
		return nil, fmt.Errorf("%w: %v", common.ErrRateLimitStoreUnavailable, err)
	}
	if ttl <= 0 {
		ttl = l.window
	}
	resetTime := time.Now().Add(ttl)

	if count > int64(l.limit) {
		// 超額的這次遞增要回退，拒絕不消耗配額
		if derr := l.store.Decrement(ctx, key); derr != nil {
			common.LogWarn("配額回退失敗",
				zap.Error(derr),
				zap.String("action", action),
			)
		}
		common.LogInfo("配額已用盡",
			zap.String("device_id", deviceID),
			zap.String("action", action),
			zap.Int("limit", l.limit),
			zap.Time("reset_time", resetTime),
		)
		return &Result{
			Allowed:   false,
			Remaining: 0,
			ResetTime: resetTime,
			Limit:     l.limit,
		}, nil
	}

	return &Result{
		Allowed:   true,
		Remaining: l.limit - int(count),
		ResetTime: resetTime,
		Limit:     l.limit,
	}, nil
}
