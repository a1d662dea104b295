package service

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/judge"
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/progression"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/util"
	"algo_learn_backend/pkg/events"
	"algo_learn_backend/pkg/lock"
	"algo_learn_backend/pkg/logger"
	"algo_learn_backend/pkg/monitoring"
	"algo_learn_backend/pkg/tracing"
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProgressionCache 进度变化后需要失效的用户级缓存
type ProgressionCache interface {
	Invalidate(ctx context.Context, userID uint) error
}

// Notifier 向在线用户推送进度变化
type Notifier interface {
	Notify(userID uint, msgType string, data interface{})
}

// SubmissionOutcome 一次判题对用户进度造成的全部变化
type SubmissionOutcome struct {
	Submission      *model.Submission         `json:"submission"`
	XPEarned        int                       `json:"xpEarned"`
	FirstSolve      bool                      `json:"firstSolve"`
	TotalXP         int                       `json:"totalXp"`
	Level           int                       `json:"level"`
	LeveledUp       bool                      `json:"leveledUp"`
	NewAchievements []progression.Achievement `json:"newAchievements"`
	Streak          *StreakSummary            `json:"streak,omitempty"`
}

type StreakSummary struct {
	Current         int                       `json:"current"`
	Longest         int                       `json:"longest"`
	TotalActiveDays int                       `json:"totalActiveDays"`
	LastActiveDate  string                    `json:"lastActiveDate,omitempty"`
	Outcome         progression.StreakOutcome `json:"outcome,omitempty"`
}

// ProgressionService 把一次判题结果原子地应用到用户进度上，同一用户串行执行
type ProgressionService struct {
	DB              *gorm.DB
	UserRepo        *repository.UserRepository
	ProgressRepo    *repository.ProgressRepository
	ProblemRepo     *repository.ProblemRepository
	SubmissionRepo  *repository.SubmissionRepository
	HintRepo        *repository.HintUsageRepository
	StreakRepo      *repository.StreakRepository
	AchievementRepo *repository.AchievementRepository
	Cache           ProgressionCache
	Publisher       events.Publisher
	Notifier        Notifier

	userLocks *lock.KeyedMutex
	mu        sync.RWMutex
	settings  config.ProgressionConfig
	now       func() time.Time
}

func NewProgressionService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	progressRepo *repository.ProgressRepository,
	problemRepo *repository.ProblemRepository,
	submissionRepo *repository.SubmissionRepository,
	hintRepo *repository.HintUsageRepository,
	streakRepo *repository.StreakRepository,
	achievementRepo *repository.AchievementRepository,
	cache ProgressionCache,
	publisher events.Publisher,
	settings config.ProgressionConfig,
) *ProgressionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ProgressionService{
		DB:              db,
		UserRepo:        userRepo,
		ProgressRepo:    progressRepo,
		ProblemRepo:     problemRepo,
		SubmissionRepo:  submissionRepo,
		HintRepo:        hintRepo,
		StreakRepo:      streakRepo,
		AchievementRepo: achievementRepo,
		Cache:           cache,
		Publisher:       publisher,
		userLocks:       lock.NewKeyedMutex(),
		settings:        settings,
		now:             time.Now,
	}
}

// UpdateSettings 配置热更新
func (s *ProgressionService) UpdateSettings(settings config.ProgressionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func (s *ProgressionService) Settings() config.ProgressionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// LockUser 与其他修改用户进度的流程共用同一把用户锁
func (s *ProgressionService) LockUser(userID uint) func() {
	return s.userLocks.Lock(userID)
}

// ApplyJudgedSubmission 在一个事务中写入判题结果并更新经验、等级、连续天数、成就和题目统计。
// 任一步骤失败则整体回滚并返回 ErrProgressionUpdateFailed。
func (s *ProgressionService) ApplyJudgedSubmission(ctx context.Context, submission *model.Submission, result *judge.Result) (*SubmissionOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "progression.ApplyJudgedSubmission",
		attribute.Int64("user.id", int64(submission.UserID)),
		attribute.Int64("submission.id", int64(submission.ID)),
		attribute.String("status", string(result.Status)),
	)
	defer span.End()

	unlock := s.userLocks.Lock(submission.UserID)
	defer unlock()

	settings := s.Settings()
	loc := settings.Location()
	now := s.now()

	var (
		outcome    *SubmissionOutcome
		difficulty progression.Difficulty
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, difficulty, err = s.apply(tx, submission, result, settings, loc, now)
		return err
	})
	if err != nil {
		tracing.RecordError(span, err)
		monitoring.ProgressionFailures.Inc()
		logger.Log.Error("progression update rolled back",
			zap.Uint("userID", submission.UserID),
			zap.Uint("submissionID", submission.ID),
			zap.Error(err),
		)
		var appErr *util.AppError
		if errors.As(err, &appErr) && appErr.Kind == util.KindValidation {
			return nil, err
		}
		return nil, util.Wrap(util.ErrProgressionUpdateFailed, err)
	}

	s.afterCommit(ctx, outcome, difficulty)
	return outcome, nil
}

func (s *ProgressionService) apply(
	tx *gorm.DB,
	submission *model.Submission,
	result *judge.Result,
	settings config.ProgressionConfig,
	loc *time.Location,
	now time.Time,
) (*SubmissionOutcome, progression.Difficulty, error) {
	users := s.UserRepo.WithTx(tx)
	progressRepo := s.ProgressRepo.WithTx(tx)
	problems := s.ProblemRepo.WithTx(tx)
	submissions := s.SubmissionRepo.WithTx(tx)

	user, err := users.FindByIDForUpdate(submission.UserID)
	if err != nil {
		return nil, "", util.NotFoundOr(err, util.ErrUserNotFound)
	}
	problem, err := problems.FindByID(submission.ProblemID)
	if err != nil {
		return nil, "", util.NotFoundOr(err, util.ErrProblemNotFound)
	}

	prior, err := submissions.CountPrior(user.ID, problem.ID, submission.ID)
	if err != nil {
		return nil, "", err
	}
	hints, err := s.HintRepo.WithTx(tx).Count(user.ID, problem.ID)
	if err != nil {
		return nil, "", err
	}

	submission.Status = result.Status
	submission.PassedCount = result.PassedCount
	submission.ExecutionTime = result.ExecutionTime
	submission.Memory = result.Memory
	submission.TestResults = result.TestResults
	submission.Attempts = prior + 1
	submission.HintsUsed = hints
	submission.XPEarned = 0

	moduleProgress, err := progressRepo.FindOrInit(user.ID, problem.ModuleID)
	if err != nil {
		return nil, "", err
	}

	outcome := &SubmissionOutcome{Submission: submission}
	accepted := result.Status == model.StatusAccepted
	oldLevel := user.Level

	user.TotalSubmissions++
	moduleProgress.TotalSubmissions++

	if accepted {
		solvedBefore, err := submissions.HasAccepted(user.ID, problem.ID, submission.ID)
		if err != nil {
			return nil, "", err
		}
		moduleProgress.AcceptedSubmissions++

		// 经验只在首次通过时发放
		if !solvedBefore {
			xp := progression.CalculateXP(progression.XPInput{
				BaseXP:     problem.XPReward,
				Difficulty: problem.Difficulty,
				HintsUsed:  hints,
				Attempts:   submission.Attempts,
				TimeBonus:  settings.TimeBonusMS > 0 && result.ExecutionTime <= float64(settings.TimeBonusMS),
			})
			submission.XPEarned = xp
			outcome.XPEarned = xp
			outcome.FirstSolve = true

			user.XP += xp
			user.TotalProblemsSolved++
			moduleProgress.XP += xp
			moduleProgress.ProblemsSolved++
			moduleProgress.SkillLevel = progression.SkillLevel(moduleProgress.ProblemsSolved)
		}

		user.Level = progression.ResolveLevel(user.XP)
		outcome.LeveledUp = user.Level > oldLevel

		streak, err := s.recordActivity(tx, user.ID, now, loc, outcome.XPEarned, outcome.FirstSolve)
		if err != nil {
			return nil, "", err
		}
		outcome.Streak = streak

		unlocked, err := s.unlockAchievements(tx, user, streak.Current)
		if err != nil {
			return nil, "", err
		}
		outcome.NewAchievements = unlocked
	}

	moduleProgress.Accuracy = progression.Accuracy(moduleProgress.AcceptedSubmissions, moduleProgress.TotalSubmissions)
	if moduleProgress.SkillLevel < 1 {
		moduleProgress.SkillLevel = progression.SkillLevel(moduleProgress.ProblemsSolved)
	}

	if err := problems.IncrementCounters(problem.ID, accepted); err != nil {
		return nil, "", err
	}
	if err := progressRepo.Save(moduleProgress); err != nil {
		return nil, "", err
	}
	if err := users.UpdateProgressFields(user); err != nil {
		return nil, "", err
	}

	saved, err := submissions.SaveResult(submission)
	if err != nil {
		return nil, "", err
	}
	if !saved {
		return nil, "", util.ErrSubmissionJudged
	}

	outcome.TotalXP = user.XP
	outcome.Level = user.Level
	return outcome, problem.Difficulty, nil
}

func (s *ProgressionService) recordActivity(tx *gorm.DB, userID uint, now time.Time, loc *time.Location, xp int, firstSolve bool) (*StreakSummary, error) {
	streaks := s.StreakRepo.WithTx(tx)

	record, err := streaks.FindOrInit(userID)
	if err != nil {
		return nil, err
	}

	next, outcome := streakState(record, loc).Record(now, loc)
	switch outcome {
	case progression.StreakOutOfOrder:
		logger.Log.Debug("activity older than last active date ignored",
			zap.Uint("userID", userID),
			zap.Time("at", now),
		)
		summary := summarizeStreak(record)
		summary.Outcome = outcome
		return summary, nil
	case progression.StreakUnchanged:
	default:
		applyStreakState(record, next)
		if err := streaks.Save(record); err != nil {
			return nil, err
		}
	}

	solved := 0
	if firstSolve {
		solved = 1
	}
	if err := streaks.AddDay(userID, storedDate(progression.DateOnly(now, loc)), solved, xp); err != nil {
		return nil, err
	}

	summary := summarizeStreak(record)
	summary.Outcome = outcome
	return summary, nil
}

func (s *ProgressionService) unlockAchievements(tx *gorm.DB, user *model.User, currentStreak int) ([]progression.Achievement, error) {
	achievements := s.AchievementRepo.WithTx(tx)

	owned, err := achievements.Names(user.ID)
	if err != nil {
		return nil, err
	}

	unlocked := progression.EvaluateAchievements(progression.Stats{
		TotalProblemsSolved: user.TotalProblemsSolved,
		CurrentStreak:       currentStreak,
		Level:               user.Level,
	}, owned)
	if len(unlocked) == 0 {
		return []progression.Achievement{}, nil
	}

	rows := make([]model.Achievement, len(unlocked))
	for i, a := range unlocked {
		rows[i] = model.Achievement{UserID: user.ID, Name: a.Name, Icon: a.Icon}
	}
	if err := achievements.CreateMany(rows); err != nil {
		return nil, err
	}
	return unlocked, nil
}

// afterCommit 缓存失效、事件与指标，失败只记录日志
func (s *ProgressionService) afterCommit(ctx context.Context, outcome *SubmissionOutcome, difficulty progression.Difficulty) {
	sub := outcome.Submission
	monitoring.SubmissionsJudged.WithLabelValues(string(sub.Status)).Inc()

	if outcome.XPEarned > 0 {
		monitoring.XPAwarded.WithLabelValues(string(difficulty)).Add(float64(outcome.XPEarned))
	}
	if outcome.LeveledUp {
		monitoring.LevelUps.Inc()
	}
	for _, a := range outcome.NewAchievements {
		monitoring.AchievementsUnlocked.WithLabelValues(a.Name).Inc()
	}

	if s.Cache != nil && sub.Status == model.StatusAccepted {
		if err := s.Cache.Invalidate(ctx, sub.UserID); err != nil {
			logger.Log.Warn("failed to invalidate recommendation cache", zap.Uint("userID", sub.UserID), zap.Error(err))
		}
	}

	s.notify(outcome)

	s.publish(ctx, events.RoutingSubmissionJudged, map[string]interface{}{
		"submissionId": sub.ID,
		"userId":       sub.UserID,
		"problemId":    sub.ProblemID,
		"moduleId":     sub.ModuleID,
		"status":       sub.Status,
		"xpEarned":     outcome.XPEarned,
	})
	if outcome.LeveledUp {
		s.publish(ctx, events.RoutingLevelUp, map[string]interface{}{
			"userId":  sub.UserID,
			"level":   outcome.Level,
			"totalXp": outcome.TotalXP,
		})
	}
	for _, a := range outcome.NewAchievements {
		s.publish(ctx, events.RoutingAchievementUnlock, map[string]interface{}{
			"userId": sub.UserID,
			"name":   a.Name,
		})
	}
}

func (s *ProgressionService) notify(outcome *SubmissionOutcome) {
	if s.Notifier == nil {
		return
	}
	userID := outcome.Submission.UserID
	s.Notifier.Notify(userID, MsgSubmissionJudged, outcome)
	if outcome.LeveledUp {
		s.Notifier.Notify(userID, MsgLevelUp, map[string]interface{}{
			"level":   outcome.Level,
			"totalXp": outcome.TotalXP,
		})
	}
	for _, a := range outcome.NewAchievements {
		s.Notifier.Notify(userID, MsgAchievementUnlocked, a)
	}
}

func (s *ProgressionService) publish(ctx context.Context, routingKey string, payload interface{}) {
	if err := s.Publisher.Publish(ctx, routingKey, payload); err != nil {
		logger.Log.Warn("failed to publish event", zap.String("routingKey", routingKey), zap.Error(err))
	}
}
