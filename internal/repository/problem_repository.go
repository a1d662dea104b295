package repository

import (
	"algo_learn_backend/internal/model"

	"gorm.io/gorm"
)

type ProblemRepository struct {
	DB *gorm.DB
}

func NewProblemRepository(db *gorm.DB) *ProblemRepository {
	return &ProblemRepository{DB: db}
}

func (r *ProblemRepository) WithTx(tx *gorm.DB) *ProblemRepository {
	return &ProblemRepository{DB: tx}
}

func (r *ProblemRepository) FindByID(id uint) (*model.Problem, error) {
	var problem model.Problem
	if err := r.DB.First(&problem, id).Error; err != nil {
		return nil, err
	}
	return &problem, nil
}

func (r *ProblemRepository) FindByModule(moduleID uint, activeOnly bool) ([]model.Problem, error) {
	var problems []model.Problem
	q := r.DB.Where("module_id = ?", moduleID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("sort_order ASC").Order("id ASC").Find(&problems).Error
	return problems, err
}

func (r *ProblemRepository) Create(problem *model.Problem) error {
	return r.DB.Create(problem).Error
}

func (r *ProblemRepository) Update(problem *model.Problem) error {
	return r.DB.Save(problem).Error
}

// IncrementCounters 所有提交计入 total，通过的提交额外计入 accepted
func (r *ProblemRepository) IncrementCounters(problemID uint, accepted bool) error {
	updates := map[string]interface{}{
		"total_submissions": gorm.Expr("total_submissions + ?", 1),
	}
	if accepted {
		updates["accepted_submissions"] = gorm.Expr("accepted_submissions + ?", 1)
	}
	return r.DB.Model(&model.Problem{}).Where("id = ?", problemID).UpdateColumns(updates).Error
}
