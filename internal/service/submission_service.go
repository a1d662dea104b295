package service

import (
	"algo_learn_backend/internal/judge"
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/util"
	"algo_learn_backend/pkg/logger"
	"algo_learn_backend/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxCodeLength = 64 * 1024

type SubmissionRequest struct {
	ProblemID uint   `json:"problemId" binding:"required"`
	Language  string `json:"language" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

// RunResult 试运行结果，不落库
type RunResult struct {
	Status        model.SubmissionStatus `json:"status"`
	PassedCount   int                    `json:"passedCount"`
	TotalCount    int                    `json:"totalCount"`
	ExecutionTime float64                `json:"executionTime"`
	Memory        int64                  `json:"memory"`
	TestResults   []model.TestResult     `json:"testResults"`
}

type SubmissionService struct {
	SubmissionRepo *repository.SubmissionRepository
	ProblemRepo    *repository.ProblemRepository
	Judge          judge.Executor
	Progression    *ProgressionService
}

func NewSubmissionService(
	submissionRepo *repository.SubmissionRepository,
	problemRepo *repository.ProblemRepository,
	executor judge.Executor,
	progression *ProgressionService,
) *SubmissionService {
	return &SubmissionService{
		SubmissionRepo: submissionRepo,
		ProblemRepo:    problemRepo,
		Judge:          executor,
		Progression:    progression,
	}
}

func (s *SubmissionService) validate(req SubmissionRequest) (*model.Problem, model.Language, error) {
	lang := model.Language(strings.ToLower(strings.TrimSpace(req.Language)))
	if !lang.Valid() {
		return nil, "", util.Validation(fmt.Sprintf("unsupported language %q", req.Language))
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, "", util.Validation("code is required")
	}
	if len(req.Code) > maxCodeLength {
		return nil, "", util.Validation("code too long")
	}

	problem, err := s.ProblemRepo.FindByID(req.ProblemID)
	if err != nil {
		return nil, "", util.NotFoundOr(err, util.ErrProblemNotFound)
	}
	if !problem.IsActive {
		return nil, "", util.ErrProblemNotFound
	}
	return problem, lang, nil
}

// Run 只用公开用例试运行
func (s *SubmissionService) Run(ctx context.Context, userID uint, req SubmissionRequest) (*RunResult, error) {
	problem, lang, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	cases := problem.VisibleTestCases()
	if len(cases) == 0 {
		return nil, util.Validation("problem has no public test cases")
	}

	result, err := s.execute(ctx, judge.Request{Code: req.Code, Language: lang, TestCases: cases})
	if err != nil {
		return nil, err
	}
	logger.Log.Debug("code run finished",
		zap.Uint("userID", userID),
		zap.Uint("problemID", problem.ID),
		zap.String("status", string(result.Status)),
	)
	return &RunResult{
		Status:        result.Status,
		PassedCount:   result.PassedCount,
		TotalCount:    len(cases),
		ExecutionTime: result.ExecutionTime,
		Memory:        result.Memory,
		TestResults:   result.TestResults,
	}, nil
}

// Submit 创建 pending 提交，判题后交给进度服务结算
func (s *SubmissionService) Submit(ctx context.Context, userID uint, req SubmissionRequest) (*SubmissionOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "submission.Submit",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("problem.id", int64(req.ProblemID)),
	)
	defer span.End()

	problem, lang, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	if len(problem.TestCases) == 0 {
		return nil, util.Validation("problem has no test cases")
	}

	submission := &model.Submission{
		UserID:     userID,
		ProblemID:  problem.ID,
		ModuleID:   problem.ModuleID,
		Language:   lang,
		Code:       req.Code,
		Status:     model.StatusPending,
		TotalCount: len(problem.TestCases),
	}
	if err := s.SubmissionRepo.Create(submission); err != nil {
		return nil, util.Persistence(err)
	}

	outcome, err := s.judgeAndApply(ctx, submission, problem)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return outcome, nil
}

// Rejudge 重新判一次仍处于 pending 的提交，例如判题服务恢复后
func (s *SubmissionService) Rejudge(ctx context.Context, userID uint, role model.UserRole, submissionID uint) (*SubmissionOutcome, error) {
	submission, err := s.Get(userID, role, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.Status != model.StatusPending {
		return nil, util.ErrSubmissionJudged
	}
	problem, err := s.ProblemRepo.FindByID(submission.ProblemID)
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrProblemNotFound)
	}
	return s.judgeAndApply(ctx, submission, problem)
}

func (s *SubmissionService) judgeAndApply(ctx context.Context, submission *model.Submission, problem *model.Problem) (*SubmissionOutcome, error) {
	result, err := s.execute(ctx, judge.Request{
		Code:      submission.Code,
		Language:  submission.Language,
		TestCases: problem.TestCases,
	})
	if err != nil {
		logger.Log.Warn("submission left pending",
			zap.Uint("submissionID", submission.ID),
			zap.Error(err),
		)
		return nil, err
	}
	return s.Progression.ApplyJudgedSubmission(ctx, submission, result)
}

func (s *SubmissionService) execute(ctx context.Context, req judge.Request) (*judge.Result, error) {
	result, err := s.Judge.Execute(ctx, req)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, judge.ErrRejected):
		return nil, util.NewError(util.KindValidation, "code execution request rejected", err)
	default:
		return nil, util.Wrap(util.ErrJudgeUnavailable, err)
	}
}

// Get 只有提交者本人或管理员可以查看
func (s *SubmissionService) Get(userID uint, role model.UserRole, id uint) (*model.Submission, error) {
	submission, err := s.SubmissionRepo.FindByID(id)
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrSubmissionNotFound)
	}
	if submission.UserID != userID && role != model.Admin {
		return nil, util.ErrPermissionDenied
	}
	return submission, nil
}

func (s *SubmissionService) List(userID, problemID uint, page, limit int) ([]model.Submission, int64, error) {
	submissions, total, err := s.SubmissionRepo.ListByUser(userID, problemID, page, limit)
	if err != nil {
		return nil, 0, util.Persistence(err)
	}
	return submissions, total, nil
}
