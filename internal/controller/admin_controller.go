package controller

import (
	"algo_learn_backend/internal/service"
	"algo_learn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AdminController 模块与题目的编写及运维操作
type AdminController struct {
	ModuleService  *service.ModuleService
	ProblemService *service.ProblemService
	StreakService  *service.StreakService
	Importer       *service.CatalogImporter
}

func NewAdminController(moduleService *service.ModuleService, problemService *service.ProblemService, streakService *service.StreakService, importer *service.CatalogImporter) *AdminController {
	return &AdminController{
		ModuleService:  moduleService,
		ProblemService: problemService,
		StreakService:  streakService,
		Importer:       importer,
	}
}

// @Summary 创建模块
// @Description slug 为空时由标题生成；先修模块必须存在且不能成环
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ModuleRequest true "模块"
// @Success 201 {object} util.Response{data=model.Module}
// @Failure 400 {object} util.Response
// @Router /admin/modules [post]
func (c *AdminController) CreateModule(ctx *gin.Context) {
	var req service.ModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.ModuleService.Create(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, module)
}

// @Summary 更新模块
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "模块ID"
// @Param request body service.ModuleRequest true "模块"
// @Success 200 {object} util.Response{data=model.Module}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /admin/modules/{id} [put]
func (c *AdminController) UpdateModule(ctx *gin.Context) {
	id, err := util.ParseIDParam(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	var req service.ModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.ModuleService.Update(ctx.Request.Context(), id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, module)
}

// @Summary 上传模块封面
// @Tags 管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "模块ID"
// @Param file formData file true "封面图片，最大 5MB"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /admin/modules/{id}/cover [post]
func (c *AdminController) UploadCover(ctx *gin.Context) {
	id, err := util.ParseIDParam(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	url, err := c.ModuleService.UploadCover(ctx.Request.Context(), id, file)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"coverUrl": url})
}

// @Summary 创建题目
// @Description xpReward 为 0 时按难度取默认值，保存后重算模块总经验
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ProblemRequest true "题目"
// @Success 201 {object} util.Response{data=model.Problem}
// @Failure 400 {object} util.Response
// @Router /admin/problems [post]
func (c *AdminController) CreateProblem(ctx *gin.Context) {
	var req service.ProblemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	problem, err := c.ProblemService.Create(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, problem)
}

// @Summary 更新题目
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "题目ID"
// @Param request body service.ProblemRequest true "题目"
// @Success 200 {object} util.Response{data=model.Problem}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /admin/problems/{id} [put]
func (c *AdminController) UpdateProblem(ctx *gin.Context) {
	id, err := util.ParseIDParam(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	var req service.ProblemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	problem, err := c.ProblemService.Update(ctx.Request.Context(), id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, problem)
}

// @Summary 手动执行断签修复
// @Description 与每日定时任务相同，同一天内只会执行一次
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.RepairReport}
// @Router /admin/streaks/repair [post]
func (c *AdminController) RepairStreaks(ctx *gin.Context) {
	report, err := c.StreakService.RepairStreaks(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary 导入题库
// @Description 上传 YAML 题库文件，按 slug 新增或更新模块与题目
// @Tags 管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "题库 YAML"
// @Success 200 {object} util.Response{data=service.ImportReport}
// @Failure 400 {object} util.Response
// @Router /admin/catalog/import [post]
func (c *AdminController) ImportCatalog(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	src, err := file.Open()
	if err != nil {
		util.BadRequest(ctx, "cannot read file")
		return
	}
	defer src.Close()

	report, err := c.Importer.Import(ctx.Request.Context(), src)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, report)
}
