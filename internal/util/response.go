package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Success: true,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Success: true,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func errorWithKind(c *gin.Context, code int, kind ErrorKind, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Error:   string(kind),
	})
}

func Unauthorized(c *gin.Context) {
	errorWithKind(c, http.StatusUnauthorized, KindUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	errorWithKind(c, http.StatusForbidden, KindForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	errorWithKind(c, http.StatusBadRequest, KindValidation, message)
}

func NotFound(c *gin.Context) {
	errorWithKind(c, http.StatusNotFound, KindNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	errorWithKind(c, http.StatusInternalServerError, KindPersistence, "Internal server error")
}
