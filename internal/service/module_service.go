package service

import (
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/progression"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/util"
	"algo_learn_backend/pkg/logger"
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ModuleSummary struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	Description   string `json:"description"`
	CoverURL      string `json:"coverUrl,omitempty"`
	Order         int    `json:"order"`
	Prerequisites []uint `json:"prerequisites"`
	TotalXP       int    `json:"totalXp"`
	TotalProblems int    `json:"totalProblems"`
}

type ProblemSummary struct {
	ID         uint                   `json:"id"`
	ModuleID   uint                   `json:"moduleId"`
	Title      string                 `json:"title"`
	Slug       string                 `json:"slug"`
	Difficulty progression.Difficulty `json:"difficulty"`
	XPReward   int                    `json:"xpReward"`
	Order      int                    `json:"order"`
	Solved     bool                   `json:"solved"`
}

type ModuleDetail struct {
	ModuleSummary
	Progress float64          `json:"progress"`
	XPEarned int              `json:"xpEarned"`
	Problems []ProblemSummary `json:"problems"`
}

type ModuleRequest struct {
	Title         string `json:"title" binding:"required,max=150"`
	Slug          string `json:"slug"`
	Description   string `json:"description"`
	Order         int    `json:"order"`
	Prerequisites []uint `json:"prerequisites"`
	IsActive      *bool  `json:"isActive"`
}

// CatalogCache 依赖模块与题目数据的缓存
type CatalogCache interface {
	InvalidateAll(ctx context.Context) error
}

// invalidateCatalog 清理失败只记日志
func invalidateCatalog(ctx context.Context, cache CatalogCache) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateAll(ctx); err != nil {
		logger.Log.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

type ModuleService struct {
	DB             *gorm.DB
	ModuleRepo     *repository.ModuleRepository
	ProblemRepo    *repository.ProblemRepository
	ProgressRepo   *repository.ProgressRepository
	SubmissionRepo *repository.SubmissionRepository
	Storage        *StorageService
	Cache          CatalogCache
}

func NewModuleService(
	db *gorm.DB,
	moduleRepo *repository.ModuleRepository,
	problemRepo *repository.ProblemRepository,
	progressRepo *repository.ProgressRepository,
	submissionRepo *repository.SubmissionRepository,
	storage *StorageService,
) *ModuleService {
	return &ModuleService{
		DB:             db,
		ModuleRepo:     moduleRepo,
		ProblemRepo:    problemRepo,
		ProgressRepo:   progressRepo,
		SubmissionRepo: submissionRepo,
		Storage:        storage,
	}
}

func (s *ModuleService) List() ([]ModuleSummary, error) {
	modules, err := s.ModuleRepo.List(true)
	if err != nil {
		return nil, util.Persistence(err)
	}
	counts, err := s.ModuleRepo.CountProblems()
	if err != nil {
		return nil, util.Persistence(err)
	}

	out := make([]ModuleSummary, len(modules))
	for i := range modules {
		out[i] = toModuleSummary(&modules[i], counts[modules[i].ID])
	}
	return out, nil
}

// GetBySlug 模块详情，包含当前用户的进度与已解题目
func (s *ModuleService) GetBySlug(userID uint, slugValue string) (*ModuleDetail, error) {
	module, err := s.ModuleRepo.FindBySlug(slugValue)
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrModuleNotFound)
	}
	if !module.IsActive {
		return nil, util.ErrModuleNotFound
	}

	problems, err := s.ProblemRepo.FindByModule(module.ID, true)
	if err != nil {
		return nil, util.Persistence(err)
	}
	solved, err := s.SubmissionRepo.SolvedProblemIDs(userID, module.ID)
	if err != nil {
		return nil, util.Persistence(err)
	}
	progress, err := s.ProgressRepo.FindOrInit(userID, module.ID)
	if err != nil {
		return nil, util.Persistence(err)
	}

	detail := &ModuleDetail{
		ModuleSummary: toModuleSummary(module, len(problems)),
		Progress:      progression.ModuleProgress(progress.XP, module.TotalXP),
		XPEarned:      progress.XP,
		Problems:      make([]ProblemSummary, len(problems)),
	}
	for i := range problems {
		detail.Problems[i] = toProblemSummary(&problems[i], solved[problems[i].ID])
	}
	return detail, nil
}

func (s *ModuleService) Create(ctx context.Context, req ModuleRequest) (*model.Module, error) {
	module := &model.Module{IsActive: true}
	if err := s.applyRequest(module, req); err != nil {
		return nil, err
	}
	if err := s.ModuleRepo.Create(module); err != nil {
		return nil, util.Persistence(err)
	}
	invalidateCatalog(ctx, s.Cache)
	return module, nil
}

func (s *ModuleService) Update(ctx context.Context, id uint, req ModuleRequest) (*model.Module, error) {
	module, err := s.ModuleRepo.FindByID(id)
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrModuleNotFound)
	}
	if err := s.applyRequest(module, req); err != nil {
		return nil, err
	}
	if err := s.ModuleRepo.Update(module); err != nil {
		return nil, util.Persistence(err)
	}
	invalidateCatalog(ctx, s.Cache)
	return module, nil
}

func (s *ModuleService) applyRequest(module *model.Module, req ModuleRequest) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return util.Validation("title is required")
	}

	slugValue := slug.Make(req.Slug)
	if slugValue == "" {
		slugValue = slug.Make(title)
	}
	if slugValue == "" {
		return util.Validation("cannot derive slug from title")
	}
	taken, err := s.ModuleRepo.SlugExists(slugValue, module.ID)
	if err != nil {
		return util.Persistence(err)
	}
	if taken {
		return util.ErrSlugTaken
	}

	prereqs, err := s.validatePrerequisites(module.ID, req.Prerequisites)
	if err != nil {
		return err
	}

	module.Title = title
	module.Slug = slugValue
	module.Description = req.Description
	module.Order = req.Order
	module.Prerequisites = prereqs
	if req.IsActive != nil {
		module.IsActive = *req.IsActive
	}
	return nil
}

// validatePrerequisites 去重、校验存在性并拒绝成环
func (s *ModuleService) validatePrerequisites(moduleID uint, prereqs []uint) ([]uint, error) {
	seen := make(map[uint]bool, len(prereqs))
	cleaned := make([]uint, 0, len(prereqs))
	for _, id := range prereqs {
		if id == 0 || seen[id] {
			continue
		}
		if moduleID != 0 && id == moduleID {
			return nil, util.ErrPrerequisiteCycle
		}
		seen[id] = true
		cleaned = append(cleaned, id)
	}
	if len(cleaned) == 0 {
		return cleaned, nil
	}

	all, err := s.ModuleRepo.List(false)
	if err != nil {
		return nil, util.Persistence(err)
	}
	graph := make(map[uint][]uint, len(all)+1)
	for _, m := range all {
		graph[m.ID] = m.Prerequisites
	}
	for _, id := range cleaned {
		if _, ok := graph[id]; !ok {
			return nil, util.Wrap(util.ErrUnknownPrerequisite, fmt.Errorf("module %d", id))
		}
	}

	// 新模块尚无 ID，不可能被已有模块依赖，无需检测环
	if moduleID == 0 {
		return cleaned, nil
	}
	graph[moduleID] = cleaned
	if hasCycle(graph, moduleID) {
		return nil, util.ErrPrerequisiteCycle
	}
	return cleaned, nil
}

// hasCycle 从 start 出发沿先修关系 DFS 是否能回到 start
func hasCycle(graph map[uint][]uint, start uint) bool {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[uint]int, len(graph))

	var visit func(id uint) bool
	visit = func(id uint) bool {
		switch state[id] {
		case visiting:
			return true
		case done:
			return false
		}
		state[id] = visiting
		for _, next := range graph[id] {
			if visit(next) {
				return true
			}
		}
		state[id] = done
		return false
	}
	return visit(start)
}

// UploadCover 上传模块封面图片
func (s *ModuleService) UploadCover(ctx context.Context, id uint, file *multipart.FileHeader) (string, error) {
	module, err := s.ModuleRepo.FindByID(id)
	if err != nil {
		return "", util.NotFoundOr(err, util.ErrModuleNotFound)
	}
	if file.Size > util.MaxCoverSize {
		return "", util.Validation("cover image too large")
	}

	src, err := file.Open()
	if err != nil {
		return "", util.Validation("cannot read uploaded file")
	}
	defer src.Close()

	mimeType, err := util.ValidateMimeType(src, []string{util.MimeImage})
	if err != nil {
		return "", util.Validation(err.Error())
	}
	if _, err := src.Seek(0, 0); err != nil {
		return "", util.Persistence(err)
	}

	filename := fmt.Sprintf("modules/%s-%d%s", module.Slug, time.Now().Unix(), strings.ToLower(filepath.Ext(file.Filename)))
	url, err := s.Storage.Upload(ctx, filename, src, file.Size, mimeType)
	if err != nil {
		return "", util.Persistence(err)
	}
	if err := s.ModuleRepo.UpdateCover(module.ID, url); err != nil {
		return "", util.Persistence(err)
	}
	invalidateCatalog(ctx, s.Cache)
	return url, nil
}

// RecalculateTotalXP 重新汇总模块总经验
func (s *ModuleService) RecalculateTotalXP(moduleID uint) (int, error) {
	total, err := s.ModuleRepo.RecalculateTotalXP(moduleID)
	if err != nil {
		return 0, util.Persistence(err)
	}
	return total, nil
}

func toModuleSummary(m *model.Module, totalProblems int) ModuleSummary {
	prereqs := []uint(m.Prerequisites)
	if prereqs == nil {
		prereqs = []uint{}
	}
	return ModuleSummary{
		ID:            m.ID,
		Title:         m.Title,
		Slug:          m.Slug,
		Description:   m.Description,
		CoverURL:      m.CoverURL,
		Order:         m.Order,
		Prerequisites: prereqs,
		TotalXP:       m.TotalXP,
		TotalProblems: totalProblems,
	}
}

func toModuleInfo(m *model.Module, totalProblems int) progression.ModuleInfo {
	return progression.ModuleInfo{
		ID:            m.ID,
		Title:         m.Title,
		Slug:          m.Slug,
		Order:         m.Order,
		Prerequisites: []uint(m.Prerequisites),
		TotalXP:       m.TotalXP,
		TotalProblems: totalProblems,
		Active:        m.IsActive,
	}
}

func toProblemSummary(p *model.Problem, solved bool) ProblemSummary {
	return ProblemSummary{
		ID:         p.ID,
		ModuleID:   p.ModuleID,
		Title:      p.Title,
		Slug:       p.Slug,
		Difficulty: p.Difficulty,
		XPReward:   p.XPReward,
		Order:      p.Order,
		Solved:     solved,
	}
}
