package model

import (
	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	StatusPending             SubmissionStatus = "pending"
	StatusAccepted            SubmissionStatus = "accepted"
	StatusWrongAnswer         SubmissionStatus = "wrong_answer"
	StatusTimeLimitExceeded   SubmissionStatus = "time_limit_exceeded"
	StatusMemoryLimitExceeded SubmissionStatus = "memory_limit_exceeded"
	StatusRuntimeError        SubmissionStatus = "runtime_error"
	StatusCompilationError    SubmissionStatus = "compilation_error"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusWrongAnswer, StatusTimeLimitExceeded,
		StatusMemoryLimitExceeded, StatusRuntimeError, StatusCompilationError:
		return true
	}
	return false
}

// Judged 是否已有判题结果
func (s SubmissionStatus) Judged() bool {
	return s != StatusPending && s.Valid()
}

type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangCpp        Language = "cpp"
	LangJava       Language = "java"
)

func (l Language) Valid() bool {
	switch l {
	case LangPython, LangJavaScript, LangCpp, LangJava:
		return true
	}
	return false
}

type TestResult struct {
	Passed         bool    `json:"passed"`
	Input          string  `json:"input,omitempty"`
	ExpectedOutput string  `json:"expectedOutput,omitempty"`
	ActualOutput   string  `json:"actualOutput,omitempty"`
	ExecutionTime  float64 `json:"executionTime"`
	Memory         int64   `json:"memory"`
}

// swagger:model Submission
// 提交创建时为 pending，判题后只更新一次，不会删除
type Submission struct {
	BaseModel
	UserID        uint                            `gorm:"index:idx_submission_user_problem;not null" json:"userId"`
	ProblemID     uint                            `gorm:"index:idx_submission_user_problem;not null" json:"problemId"`
	ModuleID      uint                            `gorm:"index;not null" json:"moduleId"`
	Language      Language                        `gorm:"size:20;not null" json:"language"`
	Code          string                          `gorm:"type:text;not null" json:"code"`
	Status        SubmissionStatus                `gorm:"size:30;not null;index" json:"status"`
	HintsUsed     int                             `gorm:"not null;default:0" json:"hintsUsed"`
	Attempts      int                             `gorm:"not null" json:"attempts"`
	XPEarned      int                             `gorm:"not null;default:0" json:"xpEarned"`
	PassedCount   int                             `gorm:"not null;default:0" json:"passedCount"`
	TotalCount    int                             `gorm:"not null;default:0" json:"totalCount"`
	ExecutionTime float64                         `gorm:"not null;default:0" json:"executionTime"`
	Memory        int64                           `gorm:"not null;default:0" json:"memory"`
	TestResults   datatypes.JSONSlice[TestResult] `json:"testResults"`
}

func (Submission) TableName() string {
	return "submissions"
}
