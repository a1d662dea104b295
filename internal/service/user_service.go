package service

import (
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/progression"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/util"
	"strings"
)

// ModuleProgressView 单个模块上的经验与技能
type ModuleProgressView struct {
	ModuleID            uint    `json:"moduleId"`
	Title               string  `json:"title"`
	Slug                string  `json:"slug"`
	XP                  int     `json:"xp"`
	TotalXP             int     `json:"totalXp"`
	Progress            float64 `json:"progress"`
	SkillLevel          int     `json:"skillLevel"`
	ProblemsSolved      int     `json:"problemsSolved"`
	AcceptedSubmissions int     `json:"acceptedSubmissions"`
	TotalSubmissions    int     `json:"totalSubmissions"`
	Accuracy            float64 `json:"accuracy"`
}

// ProgressSnapshot 用户整体进度
type ProgressSnapshot struct {
	UserID              uint                 `json:"userId"`
	Name                string               `json:"name"`
	XP                  int                  `json:"xp"`
	Level               int                  `json:"level"`
	NextLevelXP         int                  `json:"nextLevelXp"`
	LevelProgress       float64              `json:"levelProgress"`
	TotalProblemsSolved int                  `json:"totalProblemsSolved"`
	TotalSubmissions    int                  `json:"totalSubmissions"`
	Modules             []ModuleProgressView `json:"modules"`
}

// UserService 处理用户相关的业务逻辑
type UserService struct {
	UserRepo     *repository.UserRepository
	ProgressRepo *repository.ProgressRepository
	ModuleRepo   *repository.ModuleRepository
}

// NewUserService 创建一个新的用户服务实例
func NewUserService(userRepo *repository.UserRepository, progressRepo *repository.ProgressRepository, moduleRepo *repository.ModuleRepository) *UserService {
	return &UserService{
		UserRepo:     userRepo,
		ProgressRepo: progressRepo,
		ModuleRepo:   moduleRepo,
	}
}

// EnsureUser 根据令牌信息创建或刷新本地用户
func (s *UserService) EnsureUser(claims *util.Claims) error {
	role := claims.Role
	if role == "" {
		role = model.Student
	}
	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = claims.Email
	}
	user := &model.User{
		Name:  name,
		Email: claims.Email,
		Role:  role,
	}
	user.ID = claims.UserID
	if err := s.UserRepo.EnsureExists(user); err != nil {
		return util.Persistence(err)
	}
	return nil
}

func (s *UserService) TouchLastSeen(userID uint) error {
	return s.UserRepo.UpdateLastSeen(userID)
}

// GetProgress 用户经验、等级及各模块进度
func (s *UserService) GetProgress(userID uint) (*ProgressSnapshot, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrUserNotFound)
	}
	rows, err := s.ProgressRepo.FindByUser(userID)
	if err != nil {
		return nil, util.Persistence(err)
	}

	ids := make([]uint, len(rows))
	for i, row := range rows {
		ids[i] = row.ModuleID
	}
	modules, err := s.ModuleRepo.FindByIDs(ids)
	if err != nil {
		return nil, util.Persistence(err)
	}
	byID := make(map[uint]*model.Module, len(modules))
	for i := range modules {
		byID[modules[i].ID] = &modules[i]
	}

	snapshot := &ProgressSnapshot{
		UserID:              user.ID,
		Name:                user.Name,
		XP:                  user.XP,
		Level:               user.Level,
		NextLevelXP:         progression.XPForNextLevel(user.Level),
		LevelProgress:       progression.LevelProgress(user.XP),
		TotalProblemsSolved: user.TotalProblemsSolved,
		TotalSubmissions:    user.TotalSubmissions,
		Modules:             make([]ModuleProgressView, 0, len(rows)),
	}
	for _, row := range rows {
		view := ModuleProgressView{
			ModuleID:            row.ModuleID,
			XP:                  row.XP,
			SkillLevel:          row.SkillLevel,
			ProblemsSolved:      row.ProblemsSolved,
			AcceptedSubmissions: row.AcceptedSubmissions,
			TotalSubmissions:    row.TotalSubmissions,
			Accuracy:            row.Accuracy,
		}
		if m, ok := byID[row.ModuleID]; ok {
			view.Title = m.Title
			view.Slug = m.Slug
			view.TotalXP = m.TotalXP
			view.Progress = progression.ModuleProgress(row.XP, m.TotalXP)
		}
		snapshot.Modules = append(snapshot.Modules, view)
	}
	return snapshot, nil
}
