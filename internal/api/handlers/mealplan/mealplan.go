package mealplan

import (
	"net/http"

	planService "mealplan-generator/internal/core/mealplan"
	"mealplan-generator/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler 餐單生成處理器
type Handler struct {
	planService *planService.PlanService
}

// NewHandler 創建餐單生成處理器
func NewHandler(service *planService.PlanService) *Handler {
	return &Handler{
		planService: service,
	}
}

// HandleGenerate 處理餐單生成請求
func (h *Handler) HandleGenerate(c *gin.Context) {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
		c.Header("X-Request-ID", requestID)
	}

	common.LogInfo("開始處理餐單生成請求",
		zap.String("request_id", requestID),
		zap.String("client_ip", c.ClientIP()),
	)

	var req planService.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogError("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request format",
		})
		return
	}

	result := h.planService.Generate(c.Request.Context(), &req)
	if !result.Success {
		common.LogWarn("餐單生成請求未完成",
			zap.Int("status", result.Status),
			zap.String("reason", result.Error),
			zap.String("request_id", requestID),
		)
		c.JSON(result.Status, result)
		return
	}

	common.LogInfo("餐單生成請求完成",
		zap.String("plan_id", result.MealPlan.ID),
		zap.Int("days", len(result.MealPlan.Days)),
		zap.Int("recipes_added", result.RecipesAdded),
		zap.String("request_id", requestID),
	)
	c.JSON(http.StatusOK, result)
}
