package controller

import (
	"algo_learn_backend/internal/service"
	"algo_learn_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	SubmissionService *service.SubmissionService
}

func NewSubmissionController(submissionService *service.SubmissionService) *SubmissionController {
	return &SubmissionController{SubmissionService: submissionService}
}

// @Summary 试运行代码
// @Description 只使用公开用例执行代码，不保存提交、不影响进度
// @Tags 提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.SubmissionRequest true "代码"
// @Success 200 {object} util.Response{data=service.RunResult}
// @Failure 503 {object} util.Response
// @Router /submissions/run [post]
func (c *SubmissionController) Run(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SubmissionService.Run(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 提交代码
// @Description 保存提交并判题，通过时结算经验、等级、连续天数和成就
// @Tags 提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.SubmissionRequest true "代码"
// @Success 200 {object} util.Response{data=service.SubmissionOutcome}
// @Failure 400 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /submissions/submit [post]
func (c *SubmissionController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	outcome, err := c.SubmissionService.Submit(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, outcome)
}

// @Summary 重新判题
// @Description 判题服务恢复后重新判定仍处于 pending 的提交
// @Tags 提交
// @Produce json
// @Security BearerAuth
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response{data=service.SubmissionOutcome}
// @Failure 400 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /submissions/{id}/rejudge [post]
func (c *SubmissionController) Rejudge(ctx *gin.Context) {
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

	outcome, err := c.SubmissionService.Rejudge(ctx.Request.Context(), user.UserID, user.Role, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, outcome)
}

// @Summary 提交详情
// @Tags 提交
// @Produce json
// @Security BearerAuth
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response{data=model.Submission}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /submissions/{id} [get]
func (c *SubmissionController) GetSubmission(ctx *gin.Context) {
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

	submission, err := c.SubmissionService.Get(user.UserID, user.Role, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}

// @Summary 我的提交记录
// @Tags 提交
// @Produce json
// @Security BearerAuth
// @Param problemId query int false "按题目过滤"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /submissions [get]
func (c *SubmissionController) ListSubmissions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := util.Pagination(ctx)
	var problemID uint
	if v := ctx.Query("problemId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			util.BadRequest(ctx, "invalid problemId")
			return
		}
		problemID = uint(id)
	}

	submissions, total, err := c.SubmissionService.List(user.UserID, problemID, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{
		List:  submissions,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
