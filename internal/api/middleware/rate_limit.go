package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"mealplan-generator/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 閒置桶的回收參數
const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTTL         = 30 * time.Minute
)

// ipLimiter IP 層的令牌桶，擋掉掃描與暴力重試。
// 真正的每裝置配額在 core/ratelimit，這裡只是第一道粗粒度防線。
type ipLimiter struct {
	mu       sync.Mutex
	tokens   int
	capacity int
	rate     float64
	lastTime time.Time
}

func newIPLimiter(requests int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		tokens:   requests,
		capacity: requests,
		rate:     float64(requests) / window.Seconds(),
		lastTime: time.Now(),
	}
}

// allow 檢查是否允許請求
func (rl *ipLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastTime).Seconds()
	rl.lastTime = now

	// 添加新令牌
	newTokens := int(elapsed * rl.rate)
	if newTokens > 0 {
		rl.tokens = min(rl.capacity, rl.tokens+newTokens)
	}

	// 檢查是否有可用令牌
	if rl.tokens > 0 {
		rl.tokens--
		return true
	}

	return false
}

// idleSince 上次活動時間，回收判斷用
func (rl *ipLimiter) idleSince() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lastTime
}

// limiterTable 依來源 IP 保存令牌桶
type limiterTable struct {
	mu       sync.Mutex
	byIP     map[string]*ipLimiter
	requests int
	window   time.Duration
}

func newLimiterTable(requests int, window time.Duration) *limiterTable {
	return &limiterTable{
		byIP:     make(map[string]*ipLimiter),
		requests: requests,
		window:   window,
	}
}

func (t *limiterTable) get(ip string) *ipLimiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	limiter, ok := t.byIP[ip]
	if !ok {
		limiter = newIPLimiter(t.requests, t.window)
		t.byIP[ip] = limiter
	}
	return limiter
}

// evictIdle 回收閒置超過 idle 的桶，桶表才不會隨見過的 IP 數無限成長
func (t *limiterTable) evictIdle(now time.Time, idle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	evicted := 0
	for ip, limiter := range t.byIP {
		if now.Sub(limiter.idleSince()) > idle {
			delete(t.byIP, ip)
			evicted++
		}
	}
	return evicted
}

// RateLimit IP 層限流中間件
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	table := newLimiterTable(requests, window)

	go func() {
		ticker := time.NewTicker(limiterCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			if evicted := table.evictIdle(time.Now(), limiterIdleTTL); evicted > 0 {
				common.LogDebug("回收閒置的 IP 限流桶",
					zap.Int("evicted", evicted),
				)
			}
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !table.get(ip).allow() {
			common.LogInfo("Rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", c.Request.URL.Path),
			)

			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// min 返回兩個整數中的較小值
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
