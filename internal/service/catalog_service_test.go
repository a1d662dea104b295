package service

import (
	"algo_learn_backend/internal/progression"
	"algo_learn_backend/internal/util"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleSlugAndPrerequisites(t *testing.T) {
	env := newTestEnv(t)
	a := env.addModule(t, "Arrays and Hashing", 1)
	assert.Equal(t, "arrays-and-hashing", a.Slug)
	assert.True(t, a.IsActive)

	b := env.addModule(t, "Two Pointers", 2, a.ID, a.ID)
	assert.Equal(t, []uint{a.ID}, []uint(b.Prerequisites))

	_, err := env.modules.Create(context.Background(), ModuleRequest{Title: "Arrays and Hashing"})
	assert.True(t, errors.Is(err, util.ErrSlugTaken))

	_, err = env.modules.Create(context.Background(), ModuleRequest{Title: "Graphs", Prerequisites: []uint{42}})
	assert.True(t, errors.Is(err, util.ErrUnknownPrerequisite))

	_, err = env.modules.Update(context.Background(), a.ID, ModuleRequest{Title: a.Title, Prerequisites: []uint{b.ID}})
	assert.True(t, errors.Is(err, util.ErrPrerequisiteCycle))

	_, err = env.modules.Update(context.Background(), a.ID, ModuleRequest{Title: a.Title, Prerequisites: []uint{a.ID}})
	assert.True(t, errors.Is(err, util.ErrPrerequisiteCycle))

	inactive := false
	updated, err := env.modules.Update(context.Background(), b.ID, ModuleRequest{Title: "Two Pointers", Order: 5, IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	list, err := env.modules.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
}

func TestProblemAuthoringRecalculatesModuleXP(t *testing.T) {
	env := newTestEnv(t)
	m := env.addModule(t, "Arrays", 1)
	other := env.addModule(t, "Strings", 2)

	p := env.addProblem(t, m.ID, "Two Sum", "hard", 0, 1)
	assert.Equal(t, progression.DefaultXPReward(progression.DifficultyHard), p.XPReward)
	env.addProblem(t, m.ID, "Valid Anagram", "easy", 15, 2)

	got, err := env.modules.ModuleRepo.FindByID(m.ID)
	require.NoError(t, err)
	assert.Equal(t, 65, got.TotalXP)

	_, err = env.problems.Update(context.Background(), p.ID, ProblemRequest{
		ModuleID:   other.ID,
		Title:      "Two Sum",
		Difficulty: "hard",
		XPReward:   60,
		TestCases:  p.TestCases,
	})
	require.NoError(t, err)

	got, err = env.modules.ModuleRepo.FindByID(m.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.TotalXP)
	got, err = env.modules.ModuleRepo.FindByID(other.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.TotalXP)

	_, err = env.problems.Create(context.Background(), ProblemRequest{ModuleID: m.ID, Title: "Bad", Difficulty: "extreme", TestCases: p.TestCases})
	var appErr *util.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, util.KindValidation, appErr.Kind)
}

func TestProblemViewAndHints(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, 1)
	m := env.addModule(t, "Arrays", 1)
	p := env.addProblem(t, m.ID, "Two Sum", "easy", 10, 1)

	view, err := env.problems.Get(1, p.ID)
	require.NoError(t, err)
	assert.Len(t, view.Examples, 1)
	assert.Equal(t, 2, view.HintCount)
	assert.Empty(t, view.RevealedHints)
	assert.False(t, view.Solved)

	for i := 0; i < 2; i++ {
		hint, used, err := env.problems.RevealHint(1, p.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, "store complements", hint.Text)
		assert.Equal(t, 1, used)
	}

	_, _, err = env.problems.RevealHint(1, p.ID, 5)
	assert.True(t, errors.Is(err, util.ErrHintNotFound))

	env.submit(t, 1, p.ID)
	view, err = env.problems.Get(1, p.ID)
	require.NoError(t, err)
	assert.True(t, view.Solved)
	require.Len(t, view.RevealedHints, 1)
	assert.Equal(t, 1, view.RevealedHints[0].Index)

	_, err = env.problems.Get(1, 404)
	assert.True(t, errors.Is(err, util.ErrProblemNotFound))
}

func TestRecommendationsFollowPrerequisites(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, 1)
	a := env.addModule(t, "Arrays", 1)
	b := env.addModule(t, "Two Pointers", 2, a.ID)
	c := env.addModule(t, "Stacks", 3)
	pa := env.addProblem(t, a.ID, "Two Sum", "easy", 10, 1)
	env.addProblem(t, b.ID, "Valid Palindrome", "easy", 10, 1)
	env.addProblem(t, c.ID, "Valid Parentheses", "easy", 10, 1)

	recs, err := env.recommend.Recommendations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, a.ID, recs[0].Module.ID)
	assert.Equal(t, c.ID, recs[1].Module.ID)
	assert.Equal(t, progression.ReasonNewModule, recs[0].Reason)

	env.submit(t, 1, pa.ID)

	recs, err = env.recommend.Recommendations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, b.ID, recs[0].Module.ID)
	assert.Equal(t, c.ID, recs[1].Module.ID)

	path, err := env.recommend.LearningPath(1)
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, progression.PathCompleted, path[0].Status)
	assert.Equal(t, 1, path[0].ProblemsSolved)
	assert.Equal(t, progression.PathLocked, path[1].Status)
}

func TestNextProblemPrefersSkillDifficulty(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, 1)
	m := env.addModule(t, "Arrays", 1)
	hard := env.addProblem(t, m.ID, "Trapping Rain Water", "hard", 50, 1)
	easy := env.addProblem(t, m.ID, "Contains Duplicate", "easy", 10, 2)

	view, err := env.recommend.NextProblem(1, m.Slug)
	require.NoError(t, err)
	require.NotNil(t, view.Problem)
	assert.Equal(t, progression.DifficultyEasy, view.PreferredDifficulty)
	assert.Equal(t, easy.ID, view.Problem.ID)

	env.submit(t, 1, easy.ID)
	view, err = env.recommend.NextProblem(1, m.Slug)
	require.NoError(t, err)
	require.NotNil(t, view.Problem)
	assert.Equal(t, hard.ID, view.Problem.ID)

	env.submit(t, 1, hard.ID)
	view, err = env.recommend.NextProblem(1, m.Slug)
	require.NoError(t, err)
	assert.True(t, view.Completed)
	assert.Nil(t, view.Problem)

	_, err = env.recommend.NextProblem(1, "missing")
	assert.True(t, errors.Is(err, util.ErrModuleNotFound))
}

func TestProgressSnapshotAndLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, 1)
	env.addUser(t, 2)
	m := env.addModule(t, "Arrays", 1)
	p := env.addProblem(t, m.ID, "Two Sum", "easy", 20, 1)
	env.submit(t, 2, p.ID)

	snap, err := env.users.GetProgress(2)
	require.NoError(t, err)
	assert.Equal(t, 20, snap.XP)
	assert.Equal(t, 100, snap.NextLevelXP)
	require.Len(t, snap.Modules, 1)
	assert.Equal(t, 100.0, snap.Modules[0].Progress)
	assert.Equal(t, "arrays", snap.Modules[0].Slug)

	board, err := env.achievements.GetLeaderboard(10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, uint(2), board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, uint(1), board[1].UserID)
}

type countingCatalogCache struct {
	calls int
	err   error
}

func (c *countingCatalogCache) InvalidateAll(context.Context) error {
	c.calls++
	return c.err
}

func TestAuthoringInvalidatesCatalogCache(t *testing.T) {
	env := newTestEnv(t)
	cache := &countingCatalogCache{}
	env.modules.Cache = cache
	env.problems.Cache = cache
	ctx := context.Background()

	m := env.addModule(t, "Arrays", 1)
	assert.Equal(t, 1, cache.calls)

	inactive := false
	_, err := env.modules.Update(ctx, m.ID, ModuleRequest{Title: "Arrays", IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.calls)

	p := env.addProblem(t, m.ID, "Two Sum", "easy", 0, 1)
	assert.Equal(t, 3, cache.calls)

	_, err = env.problems.Update(ctx, p.ID, ProblemRequest{
		ModuleID:   m.ID,
		Title:      p.Title,
		Difficulty: "hard",
		TestCases:  p.TestCases,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, cache.calls)

	// 校验失败不触发清理
	_, err = env.modules.Create(ctx, ModuleRequest{Title: "Graphs", Prerequisites: []uint{42}})
	require.Error(t, err)
	assert.Equal(t, 4, cache.calls)

	// 清理失败不影响写入结果
	cache.err = errors.New("redis down")
	_, err = env.modules.Create(ctx, ModuleRequest{Title: "Graphs"})
	require.NoError(t, err)
	assert.Equal(t, 5, cache.calls)
}
