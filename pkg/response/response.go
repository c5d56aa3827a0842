// Package response 统一 gin 接口的 JSON 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/pathpricing/pkg/logger"
)

// Response 响应体
type Response struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Success 200 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: logger.RequestID(c.Request.Context()),
	})
}

// ErrorWithStatus 错误响应，code 与 HTTP 状态码一致
func ErrorWithStatus(c *gin.Context, status int, message string, details any) {
	c.AbortWithStatusJSON(status, Response{
		Code:      status,
		Message:   message,
		Details:   details,
		RequestID: logger.RequestID(c.Request.Context()),
	})
}
