package repository

import (
	"algo_learn_backend/internal/model"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StreakRepository struct {
	DB *gorm.DB
}

func NewStreakRepository(db *gorm.DB) *StreakRepository {
	return &StreakRepository{DB: db}
}

func (r *StreakRepository) WithTx(tx *gorm.DB) *StreakRepository {
	return &StreakRepository{DB: tx}
}

// FindOrInit 用户尚无记录时返回未持久化的空记录
func (r *StreakRepository) FindOrInit(userID uint) (*model.Streak, error) {
	var streak model.Streak
	err := r.DB.Where("user_id = ?", userID).First(&streak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.Streak{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &streak, nil
}

func (r *StreakRepository) Save(streak *model.Streak) error {
	return r.DB.Save(streak).Error
}

// ResetCurrent 仅在仍为 expected 时清零，避免覆盖并发写入的新状态
func (r *StreakRepository) ResetCurrent(id uint, expected int, lastActive *time.Time) (bool, error) {
	q := r.DB.Model(&model.Streak{}).Where("id = ? AND current_streak = ?", id, expected)
	if lastActive != nil {
		q = q.Where("last_active_date = ?", *lastActive)
	}
	res := q.Update("current_streak", 0)
	return res.RowsAffected == 1, res.Error
}

// AddDay 累加某天的解题数与经验，当天没有记录时创建
func (r *StreakRepository) AddDay(userID uint, date time.Time, solved, xp int) error {
	day := model.StreakDay{UserID: userID, Date: date, ProblemsSolved: solved, XPEarned: xp}
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"problems_solved": gorm.Expr("problems_solved + ?", solved),
			"xp_earned":       gorm.Expr("xp_earned + ?", xp),
			"updated_at":      time.Now(),
		}),
	}).Create(&day).Error
}

func (r *StreakRepository) History(userID uint, limit int) ([]model.StreakDay, error) {
	var days []model.StreakDay
	err := r.DB.Where("user_id = ?", userID).
		Order("date DESC").
		Limit(limit).
		Find(&days).Error
	return days, err
}

// FindActiveInBatches 分批遍历 current_streak > 0 的记录
func (r *StreakRepository) FindActiveInBatches(batchSize int, fn func([]model.Streak) error) error {
	var batch []model.Streak
	return r.DB.Where("current_streak > ?", 0).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}
