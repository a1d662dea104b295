package repository

import (
	"algo_learn_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HintUsageRepository struct {
	DB *gorm.DB
}

func NewHintUsageRepository(db *gorm.DB) *HintUsageRepository {
	return &HintUsageRepository{DB: db}
}

func (r *HintUsageRepository) WithTx(tx *gorm.DB) *HintUsageRepository {
	return &HintUsageRepository{DB: tx}
}

// Record 重复揭示同一提示不会产生新记录，返回是否为首次揭示
func (r *HintUsageRepository) Record(userID, problemID uint, index int) (bool, error) {
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.HintUsage{
		UserID:    userID,
		ProblemID: problemID,
		HintIndex: index,
	})
	return res.RowsAffected == 1, res.Error
}

func (r *HintUsageRepository) Count(userID, problemID uint) (int, error) {
	var count int64
	err := r.DB.Model(&model.HintUsage{}).
		Where("user_id = ? AND problem_id = ?", userID, problemID).
		Count(&count).Error
	return int(count), err
}

func (r *HintUsageRepository) Indices(userID, problemID uint) ([]int, error) {
	var indices []int
	err := r.DB.Model(&model.HintUsage{}).
		Where("user_id = ? AND problem_id = ?", userID, problemID).
		Order("hint_index ASC").
		Pluck("hint_index", &indices).Error
	return indices, err
}
