package model

import "time"

// Streak 每个用户一行的连续学习天数记录
type Streak struct {
	BaseModel
	UserID          uint       `gorm:"uniqueIndex;not null" json:"userId"`
	CurrentStreak   int        `gorm:"not null;default:0" json:"currentStreak"`
	LongestStreak   int        `gorm:"not null;default:0" json:"longestStreak"`
	LastActiveDate  *time.Time `gorm:"type:date" json:"lastActiveDate"`
	TotalActiveDays int        `gorm:"not null;default:0" json:"totalActiveDays"`
}

func (Streak) TableName() string {
	return "streaks"
}

// StreakDay 某天的学习记录
type StreakDay struct {
	BaseModel
	UserID         uint      `gorm:"uniqueIndex:idx_streak_day;not null" json:"userId"`
	Date           time.Time `gorm:"uniqueIndex:idx_streak_day;type:date;not null" json:"date"`
	ProblemsSolved int       `gorm:"not null;default:0" json:"problemsSolved"`
	XPEarned       int       `gorm:"not null;default:0" json:"xpEarned"`
}

func (StreakDay) TableName() string {
	return "streak_history"
}
