package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mealplan-generator/internal/api/handlers/health"
	planHandler "mealplan-generator/internal/api/handlers/mealplan"
	"mealplan-generator/internal/api/middleware"
	"mealplan-generator/internal/core/mealplan"
	"mealplan-generator/internal/core/ratelimit"
	"mealplan-generator/internal/core/recipestore"
	"mealplan-generator/internal/core/service"
	"mealplan-generator/internal/infrastructure/config"
	"mealplan-generator/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// 超時設置：整週生成含多輪模型調用，放寬到 180 秒
	timeoutDuration = 180 * time.Second
	// 請求體大小限制 (1MB)：純 JSON 請求，不收圖片
	maxBodySize = 1 << 20
)

// redisPinger 把 redis client 收斂成就緒檢查需要的最小介面
type redisPinger struct {
	client *redis.Client
}

func (p *redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, redisClient *redis.Client) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 創建路由引擎
	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New()) // 自動生成請求 ID

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(maxBodySize))

	// IP 層粗篩與重複請求攔截（每裝置配額在核心服務內另行把關）
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.IPRequests, cfg.RateLimit.IPWindow))
	}
	router.Use(middleware.Deduplication(cfg))

	common.LogInfo("Initializing services",
		zap.String("model", cfg.OpenRouter.Model),
		zap.String("skeleton_model", cfg.OpenRouter.SkeletonModel),
		zap.Int("quota_requests", cfg.RateLimit.Requests),
		zap.Duration("quota_window", cfg.RateLimit.Window),
		zap.Duration("timeout", timeoutDuration),
	)

	// 初始化 AI 服務
	aiService := service.NewOpenRouterService(cfg)
	if aiService == nil {
		common.LogError("Failed to initialize AI service")
		return nil, fmt.Errorf("failed to initialize AI service")
	}

	// 初始化生成管線
	skeletonPlanner := mealplan.NewSkeletonPlanner(aiService, cfg)
	batchGenerator := mealplan.NewBatchDetailGenerator(aiService, cfg)

	// 初始化配額與食譜庫（都落在同一個 Redis）
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisCounterStore(redisClient), &cfg.RateLimit)
	recipeStore := recipestore.NewStore(recipestore.NewRedisKV(redisClient))

	planService := mealplan.NewPlanService(skeletonPlanner, batchGenerator, limiter, recipeStore, cfg)
	if planService == nil {
		common.LogError("Failed to initialize meal plan service")
		return nil, fmt.Errorf("failed to initialize meal plan service")
	}

	common.LogInfo("Meal plan services initialized successfully",
		zap.Bool("ai_service_initialized", aiService != nil),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.String("environment", cfg.App.Env),
	)

	// 全局中間件：設置超時和配置
	router.Use(func(c *gin.Context) {
		// 設置請求超時
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		// 設置配置
		c.Set("config", cfg)

		// 處理請求
		c.Next()

		// 檢查是否超時
		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeoutDuration),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  "REQUEST_TIMEOUT",
				"details": gin.H{
					"timeout": timeoutDuration.String(),
				},
			})
			c.Abort()
			return
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck(&redisPinger{client: redisClient}))
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		planHandlerInstance := planHandler.NewHandler(planService)

		mealPlanGroup := api.Group("/mealplan")
		{
			// 生成整週餐單
			mealPlanGroup.POST("/generate", planHandlerInstance.HandleGenerate)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}
