package model

import (
	"algo_learn_backend/internal/progression"

	"gorm.io/datatypes"
)

type Hint struct {
	Text   string `json:"text"`
	XPCost int    `json:"xpCost"`
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	IsHidden       bool   `json:"isHidden"`
}

// swagger:model Problem
type Problem struct {
	BaseModel
	ModuleID            uint                          `gorm:"index;not null" json:"moduleId"`
	Title               string                        `gorm:"size:150;not null" json:"title"`
	Slug                string                        `gorm:"size:180;index" json:"slug"`
	Description         string                        `gorm:"type:text" json:"description"`
	Difficulty          progression.Difficulty        `gorm:"size:10;not null" json:"difficulty"`
	XPReward            int                           `gorm:"not null" json:"xpReward"`
	Order               int                           `gorm:"column:sort_order;not null;default:0" json:"order"`
	Hints               datatypes.JSONSlice[Hint]     `json:"hints"`
	TestCases           datatypes.JSONSlice[TestCase] `json:"testCases,omitempty"`
	TotalSubmissions    int                           `gorm:"not null;default:0" json:"totalSubmissions"`
	AcceptedSubmissions int                           `gorm:"not null;default:0" json:"acceptedSubmissions"`
	IsActive            bool                          `gorm:"not null" json:"isActive"`
}

func (Problem) TableName() string {
	return "problems"
}

// VisibleTestCases 返回非隐藏用例，用于试运行与题目详情
func (p *Problem) VisibleTestCases() []TestCase {
	out := make([]TestCase, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		if !tc.IsHidden {
			out = append(out, tc)
		}
	}
	return out
}

// HintUsage 用户揭示过的提示，(user, problem, index) 唯一
type HintUsage struct {
	BaseModel
	UserID    uint `gorm:"uniqueIndex:idx_hint_usage;not null" json:"userId"`
	ProblemID uint `gorm:"uniqueIndex:idx_hint_usage;not null" json:"problemId"`
	HintIndex int  `gorm:"uniqueIndex:idx_hint_usage;not null" json:"hintIndex"`
}

func (HintUsage) TableName() string {
	return "hint_usages"
}
