package controller

import (
	"algo_learn_backend/internal/service"
	"algo_learn_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AchievementController struct {
	AchievementService *service.AchievementService
}

func NewAchievementController(achievementService *service.AchievementService) *AchievementController {
	return &AchievementController{AchievementService: achievementService}
}

// @Summary 获取用户成就
// @Description 返回完整成就目录及当前用户的解锁状态
// @Tags 成就系统
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.UserAchievements}
// @Router /achievements [get]
func (c *AchievementController) GetUserAchievements(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	achievements, err := c.AchievementService.GetUserAchievements(user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, achievements)
}

// @Summary 获取排行榜
// @Description 按累计经验排序的用户排行榜
// @Tags 成就系统
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param limit query int false "返回数量" default(10)
// @Success 200 {object} util.Response{data=[]service.LeaderboardEntry}
// @Router /achievements/leaderboard [get]
func (c *AchievementController) GetLeaderboard(ctx *gin.Context) {
	limit := 10
	if limitStr := ctx.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	leaderboard, err := c.AchievementService.GetLeaderboard(limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, leaderboard)
}
