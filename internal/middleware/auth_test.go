package middleware

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/util"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func testConfig() *config.Config {
	return &config.Config{JWT: config.JWTConfig{Secret: testSecret, Issuer: "algo-learn-identity"}}
}

func token(t *testing.T, userID uint, role model.UserRole, issuer, secret string) string {
	t.Helper()
	claims := util.Claims{
		UserID: userID,
		Role:   role,
		Email:  "learner@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: issuer,
		},
	}
	signed, err := util.GenerateJWT(claims, secret, time.Hour)
	require.NoError(t, err)
	return signed
}

func perform(router *gin.Engine, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()

	router := gin.New()
	router.GET("/me", AuthMiddleware(cfg), func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		c.JSON(http.StatusOK, gin.H{"userId": claims.UserID})
	})

	t.Run("missing token", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/me", token(t, 7, model.Student, cfg.JWT.Issuer, "other-secret"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/me", token(t, 7, model.Student, "someone-else", testSecret))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token query parameter", func(t *testing.T) {
		path := "/me?token=" + token(t, 8, model.Student, cfg.JWT.Issuer, testSecret)
		w := perform(router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"userId":8}`, w.Body.String())
	})

	t.Run("valid token", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/me", token(t, 7, model.Student, cfg.JWT.Issuer, testSecret))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"userId":7}`, w.Body.String())
	})
}

func TestRoleMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()

	router := gin.New()
	router.POST("/admin", AuthMiddleware(cfg), RoleMiddleware(model.Admin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := perform(router, http.MethodPost, "/admin", token(t, 1, model.Student, cfg.JWT.Issuer, testSecret))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(router, http.MethodPost, "/admin", token(t, 2, model.Admin, cfg.JWT.Issuer, testSecret))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

type fakeProvisioner struct {
	mu    sync.Mutex
	calls map[uint]int
	err   error
}

func (f *fakeProvisioner) EnsureUser(claims *util.Claims) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[uint]int)
	}
	f.calls[claims.UserID]++
	return f.err
}

func TestProvisionMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()

	t.Run("provisions each user once", func(t *testing.T) {
		p := &fakeProvisioner{}
		router := gin.New()
		router.GET("/x", AuthMiddleware(cfg), ProvisionMiddleware(p), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		for i := 0; i < 3; i++ {
			w := perform(router, http.MethodGet, "/x", token(t, 5, model.Student, cfg.JWT.Issuer, testSecret))
			require.Equal(t, http.StatusOK, w.Code)
		}
		perform(router, http.MethodGet, "/x", token(t, 6, model.Student, cfg.JWT.Issuer, testSecret))

		assert.Equal(t, 1, p.calls[5])
		assert.Equal(t, 1, p.calls[6])
	})

	t.Run("aborts when provisioning fails", func(t *testing.T) {
		p := &fakeProvisioner{err: util.Persistence(errors.New("db down"))}
		reached := false
		router := gin.New()
		router.GET("/x", AuthMiddleware(cfg), ProvisionMiddleware(p), func(c *gin.Context) {
			reached = true
		})

		w := perform(router, http.MethodGet, "/x", token(t, 9, model.Student, cfg.JWT.Issuer, testSecret))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.False(t, reached)
		// 失败后不缓存，下次请求重试
		perform(router, http.MethodGet, "/x", token(t, 9, model.Student, cfg.JWT.Issuer, testSecret))
		assert.Equal(t, 2, p.calls[9])
	})
}

type activityRecorder struct {
	seen chan uint
}

func (a *activityRecorder) UpdateLastSeen(userID uint) error {
	a.seen <- userID
	return nil
}

func TestActivityMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	rec := &activityRecorder{seen: make(chan uint, 1)}

	router := gin.New()
	router.GET("/x", AuthMiddleware(cfg), ActivityMiddleware(rec), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := perform(router, http.MethodGet, "/x", token(t, 11, model.Student, cfg.JWT.Issuer, testSecret))
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case id := <-rec.seen:
		assert.Equal(t, uint(11), id)
	case <-time.After(time.Second):
		t.Fatal("last seen was not updated")
	}
}
