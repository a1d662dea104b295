package repository

import (
	"algo_learn_backend/internal/model"

	"gorm.io/gorm"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) WithTx(tx *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: tx}
}

func (r *SubmissionRepository) Create(submission *model.Submission) error {
	return r.DB.Create(submission).Error
}

func (r *SubmissionRepository) FindByID(id uint) (*model.Submission, error) {
	var submission model.Submission
	if err := r.DB.First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// SaveResult 写入判题结果，只允许从 pending 迁移一次
func (r *SubmissionRepository) SaveResult(submission *model.Submission) (bool, error) {
	res := r.DB.Model(&model.Submission{}).
		Where("id = ? AND status = ?", submission.ID, model.StatusPending).
		Updates(map[string]interface{}{
			"status":         submission.Status,
			"hints_used":     submission.HintsUsed,
			"attempts":       submission.Attempts,
			"xp_earned":      submission.XPEarned,
			"passed_count":   submission.PassedCount,
			"total_count":    submission.TotalCount,
			"execution_time": submission.ExecutionTime,
			"memory":         submission.Memory,
			"test_results":   submission.TestResults,
		})
	return res.RowsAffected == 1, res.Error
}

// CountPrior 同一用户同一题目在 beforeID 之前的提交数
func (r *SubmissionRepository) CountPrior(userID, problemID, beforeID uint) (int, error) {
	var count int64
	err := r.DB.Model(&model.Submission{}).
		Where("user_id = ? AND problem_id = ? AND id < ?", userID, problemID, beforeID).
		Count(&count).Error
	return int(count), err
}

// HasAccepted 排除 excludeID 后是否已有通过的提交
func (r *SubmissionRepository) HasAccepted(userID, problemID, excludeID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Submission{}).
		Where("user_id = ? AND problem_id = ? AND status = ? AND id <> ?", userID, problemID, model.StatusAccepted, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *SubmissionRepository) ListByUser(userID uint, problemID uint, page, limit int) ([]model.Submission, int64, error) {
	var (
		submissions []model.Submission
		total       int64
	)
	q := r.DB.Model(&model.Submission{}).Where("user_id = ?", userID)
	if problemID > 0 {
		q = q.Where("problem_id = ?", problemID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Omit("code", "test_results").
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&submissions).Error
	return submissions, total, err
}

// SolvedProblemIDs 用户已通过的题目，moduleID 为 0 时不按模块过滤
func (r *SubmissionRepository) SolvedProblemIDs(userID, moduleID uint) (map[uint]bool, error) {
	var ids []uint
	q := r.DB.Model(&model.Submission{}).
		Where("user_id = ? AND status = ?", userID, model.StatusAccepted)
	if moduleID > 0 {
		q = q.Where("module_id = ?", moduleID)
	}
	if err := q.Distinct("problem_id").Pluck("problem_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
