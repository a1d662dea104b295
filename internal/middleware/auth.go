package middleware

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/util"
	"algo_learn_backend/pkg/logger"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware 校验身份服务签发的 HS256 令牌
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// 浏览器 WebSocket 无法设置请求头
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("jwt rejected", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if cfg.JWT.Issuer != "" && claims.Issuer != cfg.JWT.Issuer {
			logger.Log.Debug("jwt issuer mismatch", zap.String("issuer", claims.Issuer))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

type UserProvisioner interface {
	EnsureUser(claims *util.Claims) error
}

// provisionTTL 令牌资料刷新到本地用户表的最短间隔
const provisionTTL = 10 * time.Minute

// ProvisionMiddleware 首次访问时按令牌信息创建本地用户
func ProvisionMiddleware(p UserProvisioner) gin.HandlerFunc {
	var seen sync.Map
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims == nil {
			c.Next()
			return
		}

		if at, ok := seen.Load(claims.UserID); ok && time.Since(at.(time.Time)) < provisionTTL {
			c.Next()
			return
		}
		if err := p.EnsureUser(claims); err != nil {
			util.HandleError(c, err)
			c.Abort()
			return
		}
		seen.Store(claims.UserID, time.Now())
		c.Next()
	}
}

type UserActivityRepo interface {
	UpdateLastSeen(userID uint) error
}

func ActivityMiddleware(repo UserActivityRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims != nil {
			// 异步更新，不阻塞主流程
			go func(id uint) {
				if err := repo.UpdateLastSeen(id); err != nil {
					logger.Log.Warn("failed to update last seen", zap.Uint("userID", id), zap.Error(err))
				}
			}(claims.UserID)
		}
		c.Next()
	}
}
