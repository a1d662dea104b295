package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// swagger:model User
// 用户由身份服务签发的令牌首次访问时自动创建，ID 与令牌中的 user_id 一致
type User struct {
	BaseModel
	Name                string    `gorm:"size:100;not null" json:"name"`
	Email               string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Role                UserRole  `gorm:"size:20;not null" json:"role"`
	XP                  int       `gorm:"not null;default:0" json:"xp"`
	Level               int       `gorm:"not null" json:"level"`
	TotalProblemsSolved int       `gorm:"not null;default:0" json:"totalProblemsSolved"`
	TotalSubmissions    int       `gorm:"not null;default:0" json:"totalSubmissions"`
	LastSeen            time.Time `json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}

// UserModuleProgress 用户在单个模块上的经验与技能，缺失的行视为 0
type UserModuleProgress struct {
	BaseModel
	UserID              uint    `gorm:"uniqueIndex:idx_user_module;not null" json:"userId"`
	ModuleID            uint    `gorm:"uniqueIndex:idx_user_module;not null" json:"moduleId"`
	XP                  int     `gorm:"not null;default:0" json:"xp"`
	SkillLevel          int     `gorm:"not null" json:"skillLevel"`
	ProblemsSolved      int     `gorm:"not null;default:0" json:"problemsSolved"`
	AcceptedSubmissions int     `gorm:"not null;default:0" json:"acceptedSubmissions"`
	TotalSubmissions    int     `gorm:"not null;default:0" json:"totalSubmissions"`
	Accuracy            float64 `gorm:"not null;default:0" json:"accuracy"`
}

func (UserModuleProgress) TableName() string {
	return "user_module_progress"
}
