package util

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAppErrorIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrJudgeUnavailable, cause)

	assert.True(t, errors.Is(err, ErrJudgeUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrProblemNotFound))

	// 同类但消息不同的哨兵不相等
	assert.False(t, errors.Is(ErrModuleNotFound, ErrProblemNotFound))
	assert.True(t, errors.Is(ErrModuleNotFound, &AppError{Kind: KindNotFound}))
}

func TestNotFoundOr(t *testing.T) {
	assert.NoError(t, NotFoundOr(nil, ErrUserNotFound))
	assert.Equal(t, ErrUserNotFound, NotFoundOr(gorm.ErrRecordNotFound, ErrUserNotFound))

	err := NotFoundOr(errors.New("disk full"), ErrUserNotFound)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, KindPersistence, appErr.Kind)
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", Validation("code is empty"), http.StatusBadRequest, "validation"},
		{"not found", ErrProblemNotFound, http.StatusNotFound, "not_found"},
		{"forbidden", ErrPermissionDenied, http.StatusForbidden, "forbidden"},
		{"judge unavailable", Wrap(ErrJudgeUnavailable, errors.New("timeout")), http.StatusServiceUnavailable, "judge_unavailable"},
		{"progression", Wrap(ErrProgressionUpdateFailed, errors.New("deadlock")), http.StatusInternalServerError, "progression_update_failed"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "persistence"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tc.kind, resp.Error)
			assert.Equal(t, tc.status, resp.Code)
		})
	}
}
