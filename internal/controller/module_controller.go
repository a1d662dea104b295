package controller

import (
	"algo_learn_backend/internal/service"
	"algo_learn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ModuleController struct {
	ModuleService         *service.ModuleService
	RecommendationService *service.RecommendationService
}

func NewModuleController(moduleService *service.ModuleService, recommendationService *service.RecommendationService) *ModuleController {
	return &ModuleController{
		ModuleService:         moduleService,
		RecommendationService: recommendationService,
	}
}

// @Summary 模块列表
// @Description 按顺序返回所有启用的学习模块
// @Tags 学习模块
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]service.ModuleSummary}
// @Router /modules [get]
func (c *ModuleController) ListModules(ctx *gin.Context) {
	modules, err := c.ModuleService.List()
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, modules)
}

// @Summary 模块详情
// @Description 模块信息、题目列表及当前用户在该模块的进度
// @Tags 学习模块
// @Produce json
// @Security BearerAuth
// @Param slug path string true "模块 slug"
// @Success 200 {object} util.Response{data=service.ModuleDetail}
// @Failure 404 {object} util.Response
// @Router /modules/{slug} [get]
func (c *ModuleController) GetModule(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	detail, err := c.ModuleService.GetBySlug(user.UserID, ctx.Param("slug"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 推荐模块
// @Description 根据各模块进度与先修关系推荐最多 5 个模块
// @Tags 学习模块
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]progression.Recommendation}
// @Router /modules/recommendations [get]
func (c *ModuleController) GetRecommendations(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	recs, err := c.RecommendationService.Recommendations(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, recs)
}

// @Summary 学习路径
// @Description 按顺序列出所有模块及其完成状态
// @Tags 学习模块
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]progression.PathEntry}
// @Router /modules/learning-path [get]
func (c *ModuleController) GetLearningPath(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	path, err := c.RecommendationService.LearningPath(user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, path)
}

// @Summary 下一道题
// @Description 按模块技能等级选择下一道未解题目
// @Tags 学习模块
// @Produce json
// @Security BearerAuth
// @Param slug path string true "模块 slug"
// @Success 200 {object} util.Response{data=service.NextProblemView}
// @Failure 404 {object} util.Response
// @Router /modules/{slug}/next-problem [get]
func (c *ModuleController) GetNextProblem(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.RecommendationService.NextProblem(user.UserID, ctx.Param("slug"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
