package controller

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/judge"
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/service"
	"algo_learn_backend/internal/util"
	"algo_learn_backend/pkg/database"
	"algo_learn_backend/pkg/lock"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acceptAll 所有用例均通过的判题实现
type acceptAll struct{}

func (acceptAll) Execute(_ context.Context, req judge.Request) (*judge.Result, error) {
	results := make([]model.TestResult, len(req.TestCases))
	for i, tc := range req.TestCases {
		results[i] = model.TestResult{Passed: true, Input: tc.Input, ExpectedOutput: tc.ExpectedOutput, ActualOutput: tc.ExpectedOutput}
	}
	return &judge.Result{
		Status:      model.StatusAccepted,
		TestResults: results,
		PassedCount: len(results),
	}, nil
}

// fakeAuth 直接以 X-User 头部指定的身份访问
func fakeAuth(c *gin.Context) {
	var id uint
	fmt.Sscanf(c.GetHeader("X-User"), "%d", &id)
	role := model.UserRole(c.GetHeader("X-Role"))
	if role == "" {
		role = model.Student
	}
	c.Set("user", &util.Claims{UserID: id, Role: role, Email: fmt.Sprintf("u%d@example.com", id)})
	c.Next()
}

type apiResponse struct {
	Code    int             `json:"code"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	router *gin.Engine
	users  *service.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
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

	progression := service.NewProgressionService(db, userRepo, progressRepo, problemRepo, submissionRepo,
		hintRepo, streakRepo, achievementRepo, nil, nil, config.ProgressionConfig{Timezone: "UTC"})
	streaks := service.NewStreakService(streakRepo, progression, lock.NewMemoryLocker(), nil)
	storage := &service.StorageService{Provider: &service.LocalStorageProvider{Config: &config.StorageConfig{LocalPath: t.TempDir()}}}
	modules := service.NewModuleService(db, moduleRepo, problemRepo, progressRepo, submissionRepo, storage)
	problems := service.NewProblemService(db, problemRepo, moduleRepo, hintRepo, submissionRepo)
	recommend := service.NewRecommendationService(moduleRepo, problemRepo, progressRepo, submissionRepo, nil)
	users := service.NewUserService(userRepo, progressRepo, moduleRepo)
	submissions := service.NewSubmissionService(submissionRepo, problemRepo, acceptAll{}, progression)

	moduleCtl := NewModuleController(modules, recommend)
	problemCtl := NewProblemController(problems)
	submissionCtl := NewSubmissionController(submissions)
	progressCtl := NewProgressController(users, streaks)
	adminCtl := NewAdminController(modules, problems, streaks, service.NewCatalogImporter(modules, problems))

	router := gin.New()
	api := router.Group("/api", fakeAuth)
	api.GET("/modules", moduleCtl.ListModules)
	api.GET("/modules/recommendations", moduleCtl.GetRecommendations)
	api.GET("/modules/:slug", moduleCtl.GetModule)
	api.GET("/problems/:id", problemCtl.GetProblem)
	api.POST("/problems/:id/hints/:index", problemCtl.RevealHint)
	api.POST("/submissions/submit", submissionCtl.Submit)
	api.GET("/submissions/:id", submissionCtl.GetSubmission)
	api.GET("/progress", progressCtl.GetProgress)
	api.POST("/admin/modules", adminCtl.CreateModule)
	api.POST("/admin/problems", adminCtl.CreateProblem)

	return &testServer{router: router, users: users}
}

func (s *testServer) do(t *testing.T, method, path string, userID uint, role model.UserRole, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", fmt.Sprint(userID))
	req.Header.Set("X-Role", string(role))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func (s *testServer) learner(t *testing.T, id uint) {
	t.Helper()
	require.NoError(t, s.users.EnsureUser(&util.Claims{UserID: id, Email: fmt.Sprintf("u%d@example.com", id), Role: model.Student}))
}

func TestLearnerFlow(t *testing.T) {
	srv := newTestServer(t)
	srv.learner(t, 1)
	srv.learner(t, 2)

	w, resp := srv.do(t, http.MethodPost, "/api/admin/modules", 99, model.Admin, service.ModuleRequest{Title: "Two Pointers"})
	require.Equal(t, http.StatusCreated, w.Code, resp.Message)
	var module model.Module
	require.NoError(t, json.Unmarshal(resp.Data, &module))
	assert.Equal(t, "two-pointers", module.Slug)

	w, resp = srv.do(t, http.MethodPost, "/api/admin/problems", 99, model.Admin, service.ProblemRequest{
		ModuleID:   module.ID,
		Title:      "Pair Sum",
		Difficulty: "medium",
		XPReward:   25,
		Hints:      []model.Hint{{Text: "sort first"}},
		TestCases: []model.TestCase{
			{Input: "1 2", ExpectedOutput: "3"},
			{Input: "4 4", ExpectedOutput: "8", IsHidden: true},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Message)
	var problem model.Problem
	require.NoError(t, json.Unmarshal(resp.Data, &problem))

	w, resp = srv.do(t, http.MethodGet, "/api/modules", 1, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []service.ModuleSummary
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, 25, list[0].TotalXP)

	w, resp = srv.do(t, http.MethodPost, "/api/submissions/submit", 1, "", service.SubmissionRequest{
		ProblemID: problem.ID,
		Language:  "python",
		Code:      "print(sum(map(int, input().split())))",
	})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	var outcome service.SubmissionOutcome
	require.NoError(t, json.Unmarshal(resp.Data, &outcome))
	assert.Equal(t, 38, outcome.XPEarned)
	assert.True(t, outcome.FirstSolve)

	w, resp = srv.do(t, http.MethodGet, "/api/progress", 1, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot service.ProgressSnapshot
	require.NoError(t, json.Unmarshal(resp.Data, &snapshot))
	assert.Equal(t, 38, snapshot.XP)
	assert.Equal(t, 1, snapshot.TotalProblemsSolved)

	w, resp = srv.do(t, http.MethodGet, "/api/modules/two-pointers", 1, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail service.ModuleDetail
	require.NoError(t, json.Unmarshal(resp.Data, &detail))
	require.Len(t, detail.Problems, 1)
	assert.True(t, detail.Problems[0].Solved)

	// 他人的提交不可见，管理员可见
	path := fmt.Sprintf("/api/submissions/%d", outcome.Submission.ID)
	w, resp = srv.do(t, http.MethodGet, path, 2, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", resp.Error)
	w, _ = srv.do(t, http.MethodGet, path, 99, model.Admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorResponses(t *testing.T) {
	srv := newTestServer(t)
	srv.learner(t, 1)

	w, resp := srv.do(t, http.MethodGet, "/api/modules/missing", 1, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", resp.Error)

	w, resp = srv.do(t, http.MethodGet, "/api/problems/abc", 1, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", resp.Error)

	w, resp = srv.do(t, http.MethodPost, "/api/submissions/submit", 1, "", map[string]any{"problemId": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)

	w, resp = srv.do(t, http.MethodPost, "/api/admin/modules", 99, model.Admin, service.ModuleRequest{Title: "Graphs", Prerequisites: []uint{42}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, util.ErrUnknownPrerequisite.Message, resp.Message)
}
