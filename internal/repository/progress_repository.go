package repository

import (
	"algo_learn_backend/internal/model"
	"errors"

	"gorm.io/gorm"
)

// ProgressRepository 用户在各模块上的经验与技能
type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx}
}

func (r *ProgressRepository) FindByUser(userID uint) ([]model.UserModuleProgress, error) {
	var rows []model.UserModuleProgress
	err := r.DB.Where("user_id = ?", userID).Order("module_id ASC").Find(&rows).Error
	return rows, err
}

// FindOrInit 不存在时返回未持久化的初始记录
func (r *ProgressRepository) FindOrInit(userID, moduleID uint) (*model.UserModuleProgress, error) {
	var p model.UserModuleProgress
	err := r.DB.Where("user_id = ? AND module_id = ?", userID, moduleID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.UserModuleProgress{UserID: userID, ModuleID: moduleID, SkillLevel: 1}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProgressRepository) Save(p *model.UserModuleProgress) error {
	return r.DB.Save(p).Error
}

// XPByModule 缺失的模块不出现在结果中，读取时按 0 处理
func (r *ProgressRepository) XPByModule(userID uint) (map[uint]int, error) {
	rows, err := r.FindByUser(userID)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int, len(rows))
	for _, row := range rows {
		out[row.ModuleID] = row.XP
	}
	return out, nil
}

// SumXP 用于校验 users.xp 与各模块经验之和一致
func (r *ProgressRepository) SumXP(userID uint) (int, error) {
	var total int64
	err := r.DB.Model(&model.UserModuleProgress{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(xp), 0)").
		Scan(&total).Error
	return int(total), err
}
