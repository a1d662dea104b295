package app

import (
	"algo_learn_backend/docs"
	"algo_learn_backend/internal/middleware"
	"algo_learn_backend/internal/model"

	"algo_learn_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, s *services) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(
		middleware.AuthMiddleware(a.Config),
		middleware.ProvisionMiddleware(s.user),
		middleware.ActivityMiddleware(repos.user),
	)
	{
		a.registerLearnerRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, s)
}

func (a *App) registerLearnerRoutes(group *gin.RouterGroup, c *controllers) {
	modules := group.Group("/modules")
	{
		modules.GET("", c.module.ListModules)
		modules.GET("/recommendations", c.module.GetRecommendations)
		modules.GET("/learning-path", c.module.GetLearningPath)
		modules.GET("/:slug", c.module.GetModule)
		modules.GET("/:slug/next-problem", c.module.GetNextProblem)
	}

	problems := group.Group("/problems")
	{
		problems.GET("/:id", c.problem.GetProblem)
		problems.POST("/:id/hints/:index", c.problem.RevealHint)
	}

	submissions := group.Group("/submissions")
	{
		submissions.GET("", c.submission.ListSubmissions)
		submissions.POST("/run", c.submission.Run)
		submissions.POST("/submit", c.submission.Submit)
		submissions.GET("/:id", c.submission.GetSubmission)
		submissions.POST("/:id/rejudge", c.submission.Rejudge)
	}

	group.GET("/progress", c.progress.GetProgress)
	group.GET("/streak", c.progress.GetStreak)
	group.GET("/achievements", c.achievement.GetUserAchievements)
	group.GET("/achievements/leaderboard", c.achievement.GetLeaderboard)

	group.GET("/ws", c.notify.HandleWS)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, s *services) {
	admin := router.Group("/api/admin")
	admin.Use(
		middleware.AuthMiddleware(a.Config),
		middleware.ProvisionMiddleware(s.user),
		middleware.RoleMiddleware(model.Admin),
	)
	{
		admin.POST("/modules", c.admin.CreateModule)
		admin.PUT("/modules/:id", c.admin.UpdateModule)
		admin.POST("/modules/:id/cover", c.admin.UploadCover)

		admin.POST("/problems", c.admin.CreateProblem)
		admin.PUT("/problems/:id", c.admin.UpdateProblem)

		admin.POST("/catalog/import", c.admin.ImportCatalog)
		admin.POST("/streaks/repair", c.admin.RepairStreaks)
	}
}
