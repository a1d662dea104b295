package service

import (
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/progression"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/util"
	"algo_learn_backend/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RecommendationCache Redis 中按用户缓存推荐结果，client 为空时不缓存
type RecommendationCache struct {
	Client *redis.Client
	TTL    func() time.Duration
}

func NewRecommendationCache(client *redis.Client, ttl func() time.Duration) *RecommendationCache {
	return &RecommendationCache{Client: client, TTL: ttl}
}

const recommendationKeyPattern = "recommendations:user:*"

func recommendationKey(userID uint) string {
	return fmt.Sprintf("recommendations:user:%d", userID)
}

func (c *RecommendationCache) Get(ctx context.Context, userID uint) ([]progression.Recommendation, bool) {
	if c == nil || c.Client == nil {
		return nil, false
	}
	raw, err := c.Client.Get(ctx, recommendationKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("recommendation cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var recs []progression.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, false
	}
	return recs, true
}

func (c *RecommendationCache) Set(ctx context.Context, userID uint, recs []progression.Recommendation) {
	if c == nil || c.Client == nil || c.TTL == nil || c.TTL() <= 0 {
		return
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		return
	}
	if err := c.Client.Set(ctx, recommendationKey(userID), raw, c.TTL()).Err(); err != nil {
		logger.Log.Warn("recommendation cache write failed", zap.Error(err))
	}
}

func (c *RecommendationCache) Invalidate(ctx context.Context, userID uint) error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Del(ctx, recommendationKey(userID)).Err()
}

// InvalidateAll 题库变更后清空所有用户的推荐缓存
func (c *RecommendationCache) InvalidateAll(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return nil
	}
	iter := c.Client.Scan(ctx, 0, recommendationKeyPattern, 200).Iterator()
	keys := make([]string, 0, 200)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == cap(keys) {
			if err := c.Client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.Client.Del(ctx, keys...).Err()
	}
	return nil
}

type NextProblemView struct {
	Module              ModuleSummary          `json:"module"`
	SkillLevel          int                    `json:"skillLevel"`
	PreferredDifficulty progression.Difficulty `json:"preferredDifficulty"`
	Problem             *ProblemSummary        `json:"problem"`
	Completed           bool                   `json:"completed"`
}

type RecommendationService struct {
	ModuleRepo     *repository.ModuleRepository
	ProblemRepo    *repository.ProblemRepository
	ProgressRepo   *repository.ProgressRepository
	SubmissionRepo *repository.SubmissionRepository
	Cache          *RecommendationCache
}

func NewRecommendationService(
	moduleRepo *repository.ModuleRepository,
	problemRepo *repository.ProblemRepository,
	progressRepo *repository.ProgressRepository,
	submissionRepo *repository.SubmissionRepository,
	cache *RecommendationCache,
) *RecommendationService {
	return &RecommendationService{
		ModuleRepo:     moduleRepo,
		ProblemRepo:    problemRepo,
		ProgressRepo:   progressRepo,
		SubmissionRepo: submissionRepo,
		Cache:          cache,
	}
}

func (s *RecommendationService) moduleInfos() ([]progression.ModuleInfo, error) {
	modules, err := s.ModuleRepo.List(false)
	if err != nil {
		return nil, err
	}
	counts, err := s.ModuleRepo.CountProblems()
	if err != nil {
		return nil, err
	}
	infos := make([]progression.ModuleInfo, len(modules))
	for i := range modules {
		infos[i] = toModuleInfo(&modules[i], counts[modules[i].ID])
	}
	return infos, nil
}

// Recommendations 最多 5 个推荐模块
func (s *RecommendationService) Recommendations(ctx context.Context, userID uint) ([]progression.Recommendation, error) {
	if recs, ok := s.Cache.Get(ctx, userID); ok {
		return recs, nil
	}

	infos, err := s.moduleInfos()
	if err != nil {
		return nil, util.Persistence(err)
	}
	xp, err := s.ProgressRepo.XPByModule(userID)
	if err != nil {
		return nil, util.Persistence(err)
	}

	recs := progression.Recommend(xp, infos)
	if recs == nil {
		recs = []progression.Recommendation{}
	}
	s.Cache.Set(ctx, userID, recs)
	return recs, nil
}

func (s *RecommendationService) LearningPath(userID uint) ([]progression.PathEntry, error) {
	infos, err := s.moduleInfos()
	if err != nil {
		return nil, util.Persistence(err)
	}
	rows, err := s.ProgressRepo.FindByUser(userID)
	if err != nil {
		return nil, util.Persistence(err)
	}

	xp := make(map[uint]int, len(rows))
	solved := make(map[uint]int, len(rows))
	for _, row := range rows {
		xp[row.ModuleID] = row.XP
		solved[row.ModuleID] = row.ProblemsSolved
	}
	return progression.BuildLearningPath(xp, solved, infos), nil
}

// NextProblem 按模块技能等级挑选下一道未解题目
func (s *RecommendationService) NextProblem(userID uint, slug string) (*NextProblemView, error) {
	module, err := s.ModuleRepo.FindBySlug(slug)
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
	progress, err := s.ProgressRepo.FindOrInit(userID, module.ID)
	if err != nil {
		return nil, util.Persistence(err)
	}
	solved, err := s.SubmissionRepo.SolvedProblemIDs(userID, module.ID)
	if err != nil {
		return nil, util.Persistence(err)
	}

	skill := progress.SkillLevel
	if skill < 1 {
		skill = 1
	}

	candidates := make([]progression.ProblemInfo, len(problems))
	byID := make(map[uint]*model.Problem, len(problems))
	for i := range problems {
		p := &problems[i]
		candidates[i] = progression.ProblemInfo{ID: p.ID, Order: p.Order, Difficulty: p.Difficulty}
		byID[p.ID] = p
	}

	view := &NextProblemView{
		Module:              toModuleSummary(module, len(problems)),
		SkillLevel:          skill,
		PreferredDifficulty: progression.PreferredDifficulty(skill),
	}
	next, ok := progression.NextProblem(skill, candidates, solved)
	if !ok {
		view.Completed = true
		return view, nil
	}
	summary := toProblemSummary(byID[next.ID], false)
	view.Problem = &summary
	return view, nil
}
