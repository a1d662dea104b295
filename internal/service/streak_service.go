package service

import (
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/progression"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/util"
	"algo_learn_backend/pkg/events"
	"algo_learn_backend/pkg/lock"
	"algo_learn_backend/pkg/logger"
	"algo_learn_backend/pkg/monitoring"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const streakHistoryDays = 30

type StreakDayView struct {
	Date           string `json:"date"`
	ProblemsSolved int    `json:"problemsSolved"`
	XPEarned       int    `json:"xpEarned"`
}

type StreakView struct {
	StreakSummary
	History []StreakDayView `json:"history"`
}

// RepairReport 一次断签修复任务的统计
type RepairReport struct {
	Date     string `json:"date"`
	Scanned  int    `json:"scanned"`
	Repaired int    `json:"repaired"`
	Failed   int    `json:"failed"`
	Skipped  bool   `json:"skipped"`
}

type StreakService struct {
	StreakRepo  *repository.StreakRepository
	Progression *ProgressionService
	Locker      lock.Locker
	Publisher   events.Publisher
}

func NewStreakService(streakRepo *repository.StreakRepository, progression *ProgressionService, locker lock.Locker, publisher events.Publisher) *StreakService {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &StreakService{
		StreakRepo:  streakRepo,
		Progression: progression,
		Locker:      locker,
		Publisher:   publisher,
	}
}

func (s *StreakService) GetStreak(userID uint) (*StreakView, error) {
	record, err := s.StreakRepo.FindOrInit(userID)
	if err != nil {
		return nil, util.Persistence(err)
	}
	days, err := s.StreakRepo.History(userID, streakHistoryDays)
	if err != nil {
		return nil, util.Persistence(err)
	}

	view := &StreakView{StreakSummary: *summarizeStreak(record), History: make([]StreakDayView, len(days))}
	for i, d := range days {
		view.History[i] = StreakDayView{
			Date:           d.Date.Format(util.DateFormat),
			ProblemsSolved: d.ProblemsSolved,
			XPEarned:       d.XPEarned,
		}
	}
	return view, nil
}

// RepairStreaks 把最后活跃日距今超过 1 天的用户当前连续天数清零。
// 每个用户独立更新，可重复执行；同一天只有一个实例会真正运行。
func (s *StreakService) RepairStreaks(ctx context.Context) (*RepairReport, error) {
	settings := s.Progression.Settings()
	loc := settings.Location()
	today := progression.DateOnly(s.Progression.now(), loc)
	report := &RepairReport{Date: today.Format(util.DateFormat)}

	release, err := s.Locker.Acquire(ctx, "streak_repair:"+report.Date, 24*time.Hour)
	if errors.Is(err, lock.ErrNotAcquired) {
		report.Skipped = true
		logger.Log.Info("streak repair already ran today", zap.String("date", report.Date))
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire streak repair lock: %w", err)
	}

	err = s.StreakRepo.FindActiveInBatches(settings.SweepBatchSize, func(batch []model.Streak) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range batch {
			report.Scanned++
			repaired, err := s.repairOne(ctx, &batch[i], today, loc)
			if err != nil {
				report.Failed++
				logger.Log.Error("failed to repair streak", zap.Uint("userID", batch[i].UserID), zap.Error(err))
				continue
			}
			if repaired {
				report.Repaired++
			}
		}
		return nil
	})
	if err != nil {
		// 中途失败时释放锁，允许当天重跑
		if relErr := release(ctx); relErr != nil {
			logger.Log.Warn("failed to release streak repair lock", zap.Error(relErr))
		}
		return report, fmt.Errorf("streak repair sweep: %w", err)
	}

	monitoring.StreakRepairs.Add(float64(report.Repaired))
	logger.Log.Info("streak repair finished",
		zap.String("date", report.Date),
		zap.Int("scanned", report.Scanned),
		zap.Int("repaired", report.Repaired),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *StreakService) repairOne(ctx context.Context, record *model.Streak, today time.Time, loc *time.Location) (bool, error) {
	state := streakState(record, loc)
	if _, needed := state.Repair(today, loc); !needed {
		return false, nil
	}

	unlock := s.Progression.LockUser(record.UserID)
	defer unlock()

	// 条件更新：期间若有新的活动写入则跳过
	ok, err := s.StreakRepo.ResetCurrent(record.ID, record.CurrentStreak, record.LastActiveDate)
	if err != nil || !ok {
		return false, err
	}

	if err := s.Publisher.Publish(ctx, events.RoutingStreakRepaired, map[string]interface{}{
		"userId":         record.UserID,
		"previousStreak": record.CurrentStreak,
		"lastActiveDate": record.LastActiveDate.Format(util.DateFormat),
	}); err != nil {
		logger.Log.Warn("failed to publish event", zap.String("routingKey", events.RoutingStreakRepaired), zap.Error(err))
	}
	if err := s.Progression.Cache.Invalidate(ctx, record.UserID); err != nil {
		logger.Log.Warn("failed to invalidate recommendation cache", zap.Uint("userID", record.UserID), zap.Error(err))
	}
	if s.Progression.Notifier != nil {
		s.Progression.Notifier.Notify(record.UserID, MsgStreakReset, map[string]interface{}{
			"previousStreak": record.CurrentStreak,
		})
	}
	return true, nil
}

// 数据库中的日期统一存为 UTC 零点，按年月日与业务时区互转
func storedDate(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func localDate(stored time.Time, loc *time.Location) time.Time {
	y, m, d := stored.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func streakState(record *model.Streak, loc *time.Location) progression.StreakState {
	state := progression.StreakState{
		Current:         record.CurrentStreak,
		Longest:         record.LongestStreak,
		TotalActiveDays: record.TotalActiveDays,
	}
	if record.LastActiveDate != nil {
		d := localDate(*record.LastActiveDate, loc)
		state.LastActiveDate = &d
	}
	return state
}

func applyStreakState(record *model.Streak, state progression.StreakState) {
	record.CurrentStreak = state.Current
	record.LongestStreak = state.Longest
	record.TotalActiveDays = state.TotalActiveDays
	if state.LastActiveDate != nil {
		d := storedDate(*state.LastActiveDate)
		record.LastActiveDate = &d
	} else {
		record.LastActiveDate = nil
	}
}

func summarizeStreak(record *model.Streak) *StreakSummary {
	summary := &StreakSummary{
		Current:         record.CurrentStreak,
		Longest:         record.LongestStreak,
		TotalActiveDays: record.TotalActiveDays,
	}
	if record.LastActiveDate != nil {
		summary.LastActiveDate = record.LastActiveDate.Format(util.DateFormat)
	}
	return summary
}
