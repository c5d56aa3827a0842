package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/pathpricing/internal/pricing/application"
	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
	"github.com/wyfcoding/pathpricing/pkg/logger"
	"github.com/wyfcoding/pathpricing/pkg/response"
)

// HTTP 处理器
// 负责处理与路径依赖期权定价相关的 HTTP 请求
type PricingHandler struct {
	app *application.PricingService
}

// 创建 HTTP 处理器实例
func NewPricingHandler(app *application.PricingService) *PricingHandler {
	return &PricingHandler{app: app}
}

// 注册路由
// 将处理器方法绑定到 Gin 路由引擎；pricing 为定价接口额外的中间件（限流）
func (h *PricingHandler) RegisterRoutes(router gin.IRouter, pricing ...gin.HandlerFunc) {
	api := router.Group("/api/v1/pricing")
	{
		priced := api.Group("/path-options", pricing...)
		priced.POST("/price", h.PriceOption)
		priced.POST("/batch", h.BatchPriceOptions)

		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", h.GetRun)
		api.GET("/symbols/:symbol/latest", h.GetLatestRun)
		api.GET("/devices", h.ListDevices)
	}
}

// PriceOption 路径依赖期权定价
// 校验失败的运行仍返回 200，结果中 status 为 VALIDATION_FAILED
func (h *PricingHandler) PriceOption(c *gin.Context) {
	var req application.PriceOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	run, err := h.app.PriceOption(c.Request.Context(), req.ToCommand())
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to price path-dependent option", "symbol", req.Symbol, "error", err)
		var details any
		if run != nil {
			details = gin.H{"run_id": run.ID, "stage": run.FailureStage}
		}
		response.ErrorWithStatus(c, StatusFor(err), err.Error(), details)
		return
	}
	response.Success(c, run)
}

// BatchPriceOptions 批量定价
func (h *PricingHandler) BatchPriceOptions(c *gin.Context) {
	var req application.BatchPriceOptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := h.app.BatchPriceOptions(c.Request.Context(), req.ToCommand())
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to price batch", "batch_id", req.BatchID, "error", err)
		response.ErrorWithStatus(c, StatusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, result)
}

// GetRun 按 ID 查询运行记录
func (h *PricingHandler) GetRun(c *gin.Context) {
	run, err := h.app.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, StatusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, run)
}

// GetLatestRun 标的最近一次运行
func (h *PricingHandler) GetLatestRun(c *gin.Context) {
	run, err := h.app.GetLatestRun(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		response.ErrorWithStatus(c, StatusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, run)
}

// ListRuns 列出运行记录
func (h *PricingHandler) ListRuns(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			response.ErrorWithStatus(c, http.StatusBadRequest, "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	runs, err := h.app.ListRuns(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		response.ErrorWithStatus(c, StatusFor(err), err.Error(), nil)
		return
	}
	response.Success(c, gin.H{"runs": runs, "count": len(runs)})
}

// ListDevices 列出可用的计算设备
func (h *PricingHandler) ListDevices(c *gin.Context) {
	response.Success(c, gin.H{"devices": h.app.Devices()})
}

// StatusFor 将失败阶段映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSetup):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNumeric):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
