package controller

import (
	"algo_learn_backend/internal/service"
	"algo_learn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	Hub *service.NotificationHub
}

func NewNotificationController(hub *service.NotificationHub) *NotificationController {
	return &NotificationController{Hub: hub}
}

// @Summary 进度推送
// @Description 建立 WebSocket 连接，实时接收判题结算、升级、成就解锁与断签消息
// @Tags 进度
// @Param token query string true "JWT Token"
// @Success 101 {string} string "Switching Protocols"
// @Router /ws [get]
func (c *NotificationController) HandleWS(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	c.Hub.ServeWS(ctx.Writer, ctx.Request, user.UserID)
}
