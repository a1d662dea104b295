package controller

import (
	"algo_learn_backend/internal/service"
	"algo_learn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	UserService   *service.UserService
	StreakService *service.StreakService
}

func NewProgressController(userService *service.UserService, streakService *service.StreakService) *ProgressController {
	return &ProgressController{UserService: userService, StreakService: streakService}
}

// @Summary 学习进度
// @Description 累计经验、等级、下一级所需经验及各模块进度
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.ProgressSnapshot}
// @Router /progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	snapshot, err := c.UserService.GetProgress(user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, snapshot)
}

// @Summary 连续学习天数
// @Description 当前与最长连续天数及最近 30 天的学习记录
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.StreakView}
// @Router /streak [get]
func (c *ProgressController) GetStreak(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.StreakService.GetStreak(user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
