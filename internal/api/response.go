package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/story-game/internal/errors"
)

// ErrorResponse API错误响应
type ErrorResponse struct {
	Code    string `json:"code"`
	ErrNo   int    `json:"errno,omitempty"` // 业务错误码
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse API成功响应
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// respondError 把业务错误映射为HTTP响应。
// AppError按其错误码映射状态码，其余错误统一按400处理。
func respondError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus(), ErrorResponse{
			Code:    "REQUEST_FAILED",
			ErrNo:   int(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    "REQUEST_FAILED",
		Message: err.Error(),
	})
}
