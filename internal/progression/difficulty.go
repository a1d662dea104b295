package progression

import "strings"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty 大小写不敏感，未知值返回 false
func ParseDifficulty(s string) (Difficulty, bool) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyEasy:
		return DifficultyEasy, true
	case DifficultyMedium:
		return DifficultyMedium, true
	case DifficultyHard:
		return DifficultyHard, true
	}
	return "", false
}

func (d Difficulty) Valid() bool {
	_, ok := ParseDifficulty(string(d))
	return ok
}

// DefaultXPReward 题目未指定奖励时按难度给出默认值
func DefaultXPReward(d Difficulty) int {
	switch d {
	case DifficultyMedium:
		return 25
	case DifficultyHard:
		return 50
	default:
		return 10
	}
}
