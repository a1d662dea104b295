package service

import (
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/progression"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/util"
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type RevealedHint struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	XPCost int    `json:"xpCost"`
}

// ProblemView 面向学生的题目详情，隐藏用例不会返回
type ProblemView struct {
	ProblemSummary
	Description   string           `json:"description"`
	Examples      []model.TestCase `json:"examples"`
	HintCount     int              `json:"hintCount"`
	RevealedHints []RevealedHint   `json:"revealedHints"`
}

type ProblemRequest struct {
	ModuleID    uint             `json:"moduleId" binding:"required"`
	Title       string           `json:"title" binding:"required,max=150"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"`
	Difficulty  string           `json:"difficulty" binding:"required"`
	XPReward    int              `json:"xpReward"`
	Order       int              `json:"order"`
	Hints       []model.Hint     `json:"hints"`
	TestCases   []model.TestCase `json:"testCases"`
	IsActive    *bool            `json:"isActive"`
}

type ProblemService struct {
	DB             *gorm.DB
	ProblemRepo    *repository.ProblemRepository
	ModuleRepo     *repository.ModuleRepository
	HintRepo       *repository.HintUsageRepository
	SubmissionRepo *repository.SubmissionRepository
	Cache          CatalogCache
}

func NewProblemService(
	db *gorm.DB,
	problemRepo *repository.ProblemRepository,
	moduleRepo *repository.ModuleRepository,
	hintRepo *repository.HintUsageRepository,
	submissionRepo *repository.SubmissionRepository,
) *ProblemService {
	return &ProblemService{
		DB:             db,
		ProblemRepo:    problemRepo,
		ModuleRepo:     moduleRepo,
		HintRepo:       hintRepo,
		SubmissionRepo: submissionRepo,
	}
}

func (s *ProblemService) findActive(id uint) (*model.Problem, error) {
	problem, err := s.ProblemRepo.FindByID(id)
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrProblemNotFound)
	}
	if !problem.IsActive {
		return nil, util.ErrProblemNotFound
	}
	return problem, nil
}

func (s *ProblemService) Get(userID, id uint) (*ProblemView, error) {
	problem, err := s.findActive(id)
	if err != nil {
		return nil, err
	}

	solved, err := s.SubmissionRepo.HasAccepted(userID, problem.ID, 0)
	if err != nil {
		return nil, util.Persistence(err)
	}
	indices, err := s.HintRepo.Indices(userID, problem.ID)
	if err != nil {
		return nil, util.Persistence(err)
	}

	view := &ProblemView{
		ProblemSummary: toProblemSummary(problem, solved),
		Description:    problem.Description,
		Examples:       problem.VisibleTestCases(),
		HintCount:      len(problem.Hints),
		RevealedHints:  make([]RevealedHint, 0, len(indices)),
	}
	for _, idx := range indices {
		if idx < 0 || idx >= len(problem.Hints) {
			continue
		}
		h := problem.Hints[idx]
		view.RevealedHints = append(view.RevealedHints, RevealedHint{Index: idx, Text: h.Text, XPCost: h.XPCost})
	}
	return view, nil
}

// RevealHint 记录提示使用，同一提示重复揭示不重复计数
func (s *ProblemService) RevealHint(userID, problemID uint, index int) (*RevealedHint, int, error) {
	problem, err := s.findActive(problemID)
	if err != nil {
		return nil, 0, err
	}
	if index < 0 || index >= len(problem.Hints) {
		return nil, 0, util.ErrHintNotFound
	}

	if _, err := s.HintRepo.Record(userID, problem.ID, index); err != nil {
		return nil, 0, util.Persistence(err)
	}
	used, err := s.HintRepo.Count(userID, problem.ID)
	if err != nil {
		return nil, 0, util.Persistence(err)
	}

	h := problem.Hints[index]
	return &RevealedHint{Index: index, Text: h.Text, XPCost: h.XPCost}, used, nil
}

func (s *ProblemService) Create(ctx context.Context, req ProblemRequest) (*model.Problem, error) {
	problem := &model.Problem{IsActive: true}
	if err := s.applyRequest(problem, req); err != nil {
		return nil, err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ProblemRepo.WithTx(tx).Create(problem); err != nil {
			return err
		}
		_, err := s.ModuleRepo.WithTx(tx).RecalculateTotalXP(problem.ModuleID)
		return err
	})
	if err != nil {
		return nil, util.Persistence(err)
	}
	invalidateCatalog(ctx, s.Cache)
	return problem, nil
}

// Update 题目换模块时新旧两个模块的总经验都要重算
func (s *ProblemService) Update(ctx context.Context, id uint, req ProblemRequest) (*model.Problem, error) {
	problem, err := s.ProblemRepo.FindByID(id)
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrProblemNotFound)
	}
	previousModule := problem.ModuleID
	if err := s.applyRequest(problem, req); err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ProblemRepo.WithTx(tx).Update(problem); err != nil {
			return err
		}
		modules := s.ModuleRepo.WithTx(tx)
		if _, err := modules.RecalculateTotalXP(problem.ModuleID); err != nil {
			return err
		}
		if previousModule != problem.ModuleID {
			if _, err := modules.RecalculateTotalXP(previousModule); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, util.Persistence(err)
	}
	invalidateCatalog(ctx, s.Cache)
	return problem, nil
}

func (s *ProblemService) applyRequest(problem *model.Problem, req ProblemRequest) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return util.Validation("title is required")
	}
	difficulty, ok := progression.ParseDifficulty(req.Difficulty)
	if !ok {
		return util.Validation(fmt.Sprintf("unknown difficulty %q", req.Difficulty))
	}
	if req.XPReward < 0 {
		return util.Validation("xpReward must not be negative")
	}
	if len(req.TestCases) == 0 {
		return util.Validation("at least one test case is required")
	}
	for i, h := range req.Hints {
		if strings.TrimSpace(h.Text) == "" {
			return util.Validation(fmt.Sprintf("hint %d is empty", i))
		}
	}

	if _, err := s.ModuleRepo.FindByID(req.ModuleID); err != nil {
		return util.NotFoundOr(err, util.ErrModuleNotFound)
	}

	slugValue := slug.Make(req.Slug)
	if slugValue == "" {
		slugValue = slug.Make(title)
	}

	xp := req.XPReward
	if xp == 0 {
		xp = progression.DefaultXPReward(difficulty)
	}

	problem.ModuleID = req.ModuleID
	problem.Title = title
	problem.Slug = slugValue
	problem.Description = req.Description
	problem.Difficulty = difficulty
	problem.XPReward = xp
	problem.Order = req.Order
	problem.Hints = req.Hints
	problem.TestCases = req.TestCases
	if req.IsActive != nil {
		problem.IsActive = *req.IsActive
	}
	return nil
}
