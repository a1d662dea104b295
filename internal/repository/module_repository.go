package repository

import (
	"algo_learn_backend/internal/model"

	"gorm.io/gorm"
)

type ModuleRepository struct {
	DB *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: db}
}

func (r *ModuleRepository) WithTx(tx *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: tx}
}

func (r *ModuleRepository) List(activeOnly bool) ([]model.Module, error) {
	var modules []model.Module
	q := r.DB.Model(&model.Module{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("sort_order ASC").Order("id ASC").Find(&modules).Error
	return modules, err
}

func (r *ModuleRepository) FindByID(id uint) (*model.Module, error) {
	var module model.Module
	if err := r.DB.First(&module, id).Error; err != nil {
		return nil, err
	}
	return &module, nil
}

func (r *ModuleRepository) FindBySlug(slug string) (*model.Module, error) {
	var module model.Module
	if err := r.DB.Where("slug = ?", slug).First(&module).Error; err != nil {
		return nil, err
	}
	return &module, nil
}

func (r *ModuleRepository) FindByIDs(ids []uint) ([]model.Module, error) {
	var modules []model.Module
	if len(ids) == 0 {
		return modules, nil
	}
	err := r.DB.Where("id IN ?", ids).Find(&modules).Error
	return modules, err
}

func (r *ModuleRepository) SlugExists(slug string, excludeID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Module{}).
		Where("slug = ? AND id <> ?", slug, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *ModuleRepository) Create(module *model.Module) error {
	return r.DB.Create(module).Error
}

func (r *ModuleRepository) Update(module *model.Module) error {
	return r.DB.Omit("Problems").Save(module).Error
}

func (r *ModuleRepository) UpdateCover(id uint, url string) error {
	return r.DB.Model(&model.Module{}).Where("id = ?", id).Update("cover_url", url).Error
}

// RecalculateTotalXP 模块总经验等于其全部题目 xp_reward 之和
func (r *ModuleRepository) RecalculateTotalXP(moduleID uint) (int, error) {
	var total int64
	err := r.DB.Model(&model.Problem{}).
		Where("module_id = ?", moduleID).
		Select("COALESCE(SUM(xp_reward), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	err = r.DB.Model(&model.Module{}).Where("id = ?", moduleID).Update("total_xp", total).Error
	return int(total), err
}

// CountProblems 每个模块的启用题目数
func (r *ModuleRepository) CountProblems() (map[uint]int, error) {
	var rows []struct {
		ModuleID uint
		Total    int
	}
	err := r.DB.Model(&model.Problem{}).
		Select("module_id, COUNT(*) AS total").
		Where("is_active = ?", true).
		Group("module_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int, len(rows))
	for _, row := range rows {
		out[row.ModuleID] = row.Total
	}
	return out, nil
}
