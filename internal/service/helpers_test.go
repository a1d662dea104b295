package service

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/judge"
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/util"
	"algo_learn_backend/pkg/database"
	"algo_learn_backend/pkg/lock"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeJudge 按预设返回判题结果
type fakeJudge struct {
	mu     sync.Mutex
	status model.SubmissionStatus
	err    error
	calls  int
	last   judge.Request
}

func (f *fakeJudge) set(status model.SubmissionStatus, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.err = err
}

func (f *fakeJudge) Execute(_ context.Context, req judge.Request) (*judge.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}

	results := make([]model.TestResult, len(req.TestCases))
	passed := 0
	for i, tc := range req.TestCases {
		ok := f.status == model.StatusAccepted
		if ok {
			passed++
		}
		results[i] = model.TestResult{Passed: ok, Input: tc.Input, ExpectedOutput: tc.ExpectedOutput, ExecutionTime: 12}
	}
	return &judge.Result{
		Status:        f.status,
		TestResults:   results,
		PassedCount:   passed,
		ExecutionTime: 12,
		Memory:        1024,
	}, nil
}

type testEnv struct {
	db           *gorm.DB
	clock        time.Time
	judge        *fakeJudge
	progression  *ProgressionService
	streaks      *StreakService
	submissions  *SubmissionService
	modules      *ModuleService
	problems     *ProblemService
	recommend    *RecommendationService
	users        *UserService
	achievements *AchievementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 事务内只使用事务连接，单连接可以避免 sqlite 写锁冲突
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	userRepo := repository.NewUserRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	hintRepo := repository.NewHintUsageRepository(db)
	streakRepo := repository.NewStreakRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)

	env := &testEnv{
		db:    db,
		clock: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		judge: &fakeJudge{status: model.StatusAccepted},
	}

	settings := config.ProgressionConfig{Timezone: "UTC", SweepBatchSize: 2}
	env.progression = NewProgressionService(db, userRepo, progressRepo, problemRepo, submissionRepo,
		hintRepo, streakRepo, achievementRepo, nil, nil, settings)
	env.progression.now = func() time.Time { return env.clock }

	env.streaks = NewStreakService(streakRepo, env.progression, lock.NewMemoryLocker(), nil)
	env.submissions = NewSubmissionService(submissionRepo, problemRepo, env.judge, env.progression)
	env.modules = NewModuleService(db, moduleRepo, problemRepo, progressRepo, submissionRepo,
		&StorageService{Provider: &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: t.TempDir()}}})
	env.problems = NewProblemService(db, problemRepo, moduleRepo, hintRepo, submissionRepo)
	env.recommend = NewRecommendationService(moduleRepo, problemRepo, progressRepo, submissionRepo, nil)
	env.users = NewUserService(userRepo, progressRepo, moduleRepo)
	env.achievements = NewAchievementService(achievementRepo, userRepo)
	return env
}

func (e *testEnv) addUser(t *testing.T, id uint) {
	t.Helper()
	require.NoError(t, e.users.EnsureUser(&util.Claims{
		UserID: id,
		Email:  fmt.Sprintf("learner%d@example.com", id),
		Name:   "Learner",
		Role:   model.Student,
	}))
}

func (e *testEnv) addModule(t *testing.T, title string, order int, prereqs ...uint) *model.Module {
	t.Helper()
	m, err := e.modules.Create(context.Background(), ModuleRequest{Title: title, Order: order, Prerequisites: prereqs})
	require.NoError(t, err)
	return m
}

func (e *testEnv) addProblem(t *testing.T, moduleID uint, title, difficulty string, xp, order int) *model.Problem {
	t.Helper()
	p, err := e.problems.Create(context.Background(), ProblemRequest{
		ModuleID:   moduleID,
		Title:      title,
		Difficulty: difficulty,
		XPReward:   xp,
		Order:      order,
		Hints:      []model.Hint{{Text: "think about a hash map"}, {Text: "store complements"}},
		TestCases: []model.TestCase{
			{Input: "1 2", ExpectedOutput: "3"},
			{Input: "5 5", ExpectedOutput: "10", IsHidden: true},
		},
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) submit(t *testing.T, userID, problemID uint) *SubmissionOutcome {
	t.Helper()
	out, err := e.submissions.Submit(context.Background(), userID, SubmissionRequest{
		ProblemID: problemID,
		Language:  "python",
		Code:      "print(sum(map(int, input().split())))",
	})
	require.NoError(t, err)
	return out
}

func (e *testEnv) user(t *testing.T, id uint) *model.User {
	t.Helper()
	u, err := e.users.UserRepo.FindByID(id)
	require.NoError(t, err)
	return u
}
