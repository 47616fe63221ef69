package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeNotFound      = 404
	CodeTooMany       = 429
	CodeServerError   = 500
	CodeBusinessError = 1000
)

const (
	CodeItemNotFound     = 1001
	CodeActionNotFound   = 1002
	CodeBalanceNotEnough = 1003
	CodeAccountNotFound  = 1005
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HTTPStatus 业务码对应的 HTTP 状态
//
// 参数错误和余额不足 400，资源不存在 404，其余业务码 500
func HTTPStatus(code int) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeParamError, CodeBalanceNotEnough:
		return http.StatusBadRequest
	case CodeNotFound, CodeItemNotFound, CodeActionNotFound, CodeAccountNotFound:
		return http.StatusNotFound
	case CodeTooMany:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 新建资源成功
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(HTTPStatus(code), Response{
		Code:    code,
		Message: message,
	})
}

// Abort 中间件中终止请求
func Abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(HTTPStatus(code), Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData 失败时带上补充信息（例如余额不足时的当前余额）
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(HTTPStatus(code), Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
