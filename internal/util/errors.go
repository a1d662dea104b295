package util

import (
	"algo_learn_backend/pkg/logger"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindValidation              ErrorKind = "validation"
	KindNotFound                ErrorKind = "not_found"
	KindPersistence             ErrorKind = "persistence"
	KindProgressionUpdateFailed ErrorKind = "progression_update_failed"
	KindJudgeUnavailable        ErrorKind = "judge_unavailable"
	KindForbidden               ErrorKind = "forbidden"
	KindUnauthorized            ErrorKind = "unauthorized"
)

// AppError 带分类的业务错误，Message 可直接返回给客户端
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is 同类错误视为相等，便于 errors.Is 判断哨兵错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func NewError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func Persistence(err error) *AppError {
	return &AppError{Kind: KindPersistence, Message: "storage failure", Err: err}
}

var (
	ErrUserNotFound       = &AppError{Kind: KindNotFound, Message: "user not found"}
	ErrModuleNotFound     = &AppError{Kind: KindNotFound, Message: "module not found"}
	ErrProblemNotFound    = &AppError{Kind: KindNotFound, Message: "problem not found"}
	ErrSubmissionNotFound = &AppError{Kind: KindNotFound, Message: "submission not found"}
	ErrHintNotFound       = &AppError{Kind: KindNotFound, Message: "hint not found"}
	ErrPermissionDenied   = &AppError{Kind: KindForbidden, Message: "permission denied"}

	ErrProgressionUpdateFailed = &AppError{Kind: KindProgressionUpdateFailed, Message: "progression update failed"}
	ErrJudgeUnavailable        = &AppError{Kind: KindJudgeUnavailable, Message: "code execution service unavailable"}

	ErrPrerequisiteCycle   = &AppError{Kind: KindValidation, Message: "module prerequisites form a cycle"}
	ErrUnknownPrerequisite = &AppError{Kind: KindValidation, Message: "prerequisite module does not exist"}
	ErrSlugTaken           = &AppError{Kind: KindValidation, Message: "slug already in use"}
	ErrSubmissionJudged    = &AppError{Kind: KindValidation, Message: "submission already judged"}
)

// Wrap 为哨兵错误附加底层原因
func Wrap(sentinel *AppError, err error) *AppError {
	return &AppError{Kind: sentinel.Kind, Message: sentinel.Message, Err: err}
}

// NotFoundOr gorm 未找到记录时返回 notFound，否则包装为存储错误
func NotFoundOr(err error, notFound *AppError) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return Persistence(err)
}

func StatusForKind(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindJudgeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleError 把错误映射为统一响应；服务端错误记录日志，未分类错误按存储错误处理
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Persistence(err)
	}

	status := StatusForKind(appErr.Kind)
	if status >= http.StatusInternalServerError {
		logger.Log.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(appErr.Kind)),
			zap.Error(err),
		)
	} else {
		logger.Log.Debug("Request rejected",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(appErr.Kind)),
			zap.String("message", appErr.Message),
		)
	}

	errorWithKind(c, status, appErr.Kind, appErr.Message)
}
