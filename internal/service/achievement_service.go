package service

import (
	"algo_learn_backend/internal/progression"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/util"
	"time"
)

const defaultLeaderboardSize = 10

type AchievementService struct {
	AchievementRepo *repository.AchievementRepository
	UserRepo        *repository.UserRepository
}

func NewAchievementService(
	achievementRepo *repository.AchievementRepository,
	userRepo *repository.UserRepository,
) *AchievementService {
	return &AchievementService{
		AchievementRepo: achievementRepo,
		UserRepo:        userRepo,
	}
}

// AchievementBadge 目录中的一项成就及当前用户的解锁状态
type AchievementBadge struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
}

type UserAchievements struct {
	TotalXP      int                `json:"totalXp"`
	CurrentLevel int                `json:"currentLevel"`
	NextLevelXP  int                `json:"nextLevelXp"`
	Unlocked     int                `json:"unlocked"`
	Badges       []AchievementBadge `json:"badges"`
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID uint   `json:"userId"`
	User   string `json:"user"`
	XP     int    `json:"xp"`
	Level  int    `json:"level"`
}

func (s *AchievementService) GetUserAchievements(userID uint) (*UserAchievements, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrUserNotFound)
	}

	earned, err := s.AchievementRepo.FindByUserID(userID)
	if err != nil {
		return nil, util.Persistence(err)
	}
	earnedAt := make(map[string]time.Time, len(earned))
	for _, a := range earned {
		earnedAt[a.Name] = a.CreatedAt
	}

	catalog := progression.Catalog()
	out := &UserAchievements{
		TotalXP:      user.XP,
		CurrentLevel: user.Level,
		NextLevelXP:  progression.XPForNextLevel(user.Level),
		Badges:       make([]AchievementBadge, len(catalog)),
	}
	for i, a := range catalog {
		badge := AchievementBadge{Name: a.Name, Description: a.Description, Icon: a.Icon}
		if at, ok := earnedAt[a.Name]; ok {
			at := at
			badge.Unlocked = true
			badge.UnlockedAt = &at
			out.Unlocked++
		}
		out.Badges[i] = badge
	}
	return out, nil
}

func (s *AchievementService) GetLeaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > util.MaxPageSize {
		limit = defaultLeaderboardSize
	}
	users, err := s.UserRepo.FindTopByXP(limit)
	if err != nil {
		return nil, util.Persistence(err)
	}

	leaderboard := make([]LeaderboardEntry, len(users))
	for i, user := range users {
		leaderboard[i] = LeaderboardEntry{
			Rank:   i + 1,
			UserID: user.ID,
			User:   user.Name,
			XP:     user.XP,
			Level:  user.Level,
		}
	}
	return leaderboard, nil
}
