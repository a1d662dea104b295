package repository

import (
	"algo_learn_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) WithTx(tx *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: tx}
}

func (r *AchievementRepository) FindByUserID(userID uint) ([]model.Achievement, error) {
	var achievements []model.Achievement
	err := r.DB.Where("user_id = ?", userID).Order("created_at ASC").Order("id ASC").Find(&achievements).Error
	if err != nil {
		return nil, err
	}
	return achievements, nil
}

func (r *AchievementRepository) Names(userID uint) ([]string, error) {
	var names []string
	err := r.DB.Model(&model.Achievement{}).Where("user_id = ?", userID).Pluck("name", &names).Error
	return names, err
}

// CreateMany 唯一索引 (user_id, name) 保证同名成就只存一份
func (r *AchievementRepository) CreateMany(achievements []model.Achievement) error {
	if len(achievements) == 0 {
		return nil
	}
	return r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&achievements).Error
}
