package controller

import (
	"algo_learn_backend/internal/service"
	"algo_learn_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ProblemController struct {
	ProblemService *service.ProblemService
}

func NewProblemController(problemService *service.ProblemService) *ProblemController {
	return &ProblemController{ProblemService: problemService}
}

// @Summary 题目详情
// @Description 返回题目描述、公开用例及已揭示的提示，隐藏用例不返回
// @Tags 题目
// @Produce json
// @Security BearerAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response{data=service.ProblemView}
// @Failure 404 {object} util.Response
// @Router /problems/{id} [get]
func (c *ProblemController) GetProblem(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, err := util.ParseIDParam(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	view, err := c.ProblemService.Get(user.UserID, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 揭示提示
// @Description 记录提示使用并返回提示内容，重复揭示同一提示不重复计数
// @Tags 题目
// @Produce json
// @Security BearerAuth
// @Param id path int true "题目ID"
// @Param index path int true "提示序号，从 0 开始"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /problems/{id}/hints/{index} [post]
func (c *ProblemController) RevealHint(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, err := util.ParseIDParam(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		util.BadRequest(ctx, "invalid hint index")
		return
	}

	hint, used, err := c.ProblemService.RevealHint(user.UserID, id, index)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"hint":      hint,
		"hintsUsed": used,
	})
}
