package repository

import (
	"algo_learn_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{DB: tx}
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDForUpdate 行锁读取，必须在事务内调用；sqlite 会忽略 FOR UPDATE
func (r *UserRepository) FindByIDForUpdate(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureExists 首次访问时按令牌信息创建用户，已存在则只刷新资料
func (r *UserRepository) EnsureExists(user *model.User) error {
	if user.Level < 1 {
		user.Level = 1
	}
	if user.LastSeen.IsZero() {
		user.LastSeen = time.Now()
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "role"}),
	}).Create(user).Error
}

func (r *UserRepository) Update(user *model.User) error {
	return r.DB.Save(user).Error
}

// UpdateProgressFields 只写进度相关字段，避免覆盖资料
func (r *UserRepository) UpdateProgressFields(user *model.User) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"xp":                    user.XP,
			"level":                 user.Level,
			"total_problems_solved": user.TotalProblemsSolved,
			"total_submissions":     user.TotalSubmissions,
		}).Error
}

func (r *UserRepository) UpdateLastSeen(userID uint) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_seen", time.Now()).Error
}

func (r *UserRepository) FindTopByXP(limit int) ([]model.User, error) {
	var users []model.User
	err := r.DB.Order("xp DESC").Order("id ASC").Limit(limit).Find(&users).Error
	return users, err
}
