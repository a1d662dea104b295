package model

type Achievement struct {
	BaseModel
	UserID   uint   `gorm:"uniqueIndex:idx_user_achievement;not null" json:"userId"`
	Name     string `gorm:"uniqueIndex:idx_user_achievement;size:100;not null" json:"name"`
	Icon     string `gorm:"size:255" json:"icon"`
	EarnedXP int    `gorm:"default:0" json:"earnedXp"`
}

func (Achievement) TableName() string {
	return "achievements"
}
