package model

import "gorm.io/datatypes"

// swagger:model Module
type Module struct {
	BaseModel
	Title       string `gorm:"size:150;not null" json:"title"`
	Slug        string `gorm:"size:180;uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	CoverURL    string `gorm:"size:255" json:"coverUrl"`
	Order       int    `gorm:"column:sort_order;not null;default:0;index" json:"order"`
	// 先修模块 ID，有序且不允许成环
	Prerequisites datatypes.JSONSlice[uint] `json:"prerequisites"`
	// 模块内全部题目 xp_reward 之和，题目变更时重算
	TotalXP  int       `gorm:"not null;default:0" json:"totalXp"`
	IsActive bool      `gorm:"not null" json:"isActive"`
	Problems []Problem `gorm:"foreignKey:ModuleID" json:"problems,omitempty"`
}

func (Module) TableName() string {
	return "modules"
}
