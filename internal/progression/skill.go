package progression

import (
	"math"
	"sort"
)

const maxSkillLevel = 10

// SkillLevel 模块技能等级，每解出 3 题升一级，上限 10
func SkillLevel(problemsSolved int) int {
	if problemsSolved < 0 {
		problemsSolved = 0
	}
	level := 1 + problemsSolved/3
	if level > maxSkillLevel {
		return maxSkillLevel
	}
	return level
}

// Accuracy 通过率百分比，保留两位小数
func Accuracy(accepted, total int) float64 {
	if total <= 0 || accepted <= 0 {
		return 0
	}
	if accepted > total {
		accepted = total
	}
	return math.Round(float64(accepted)/float64(total)*10000) / 100
}

// PreferredDifficulty 根据模块技能等级选择题目难度
func PreferredDifficulty(skillLevel int) Difficulty {
	switch {
	case skillLevel <= 3:
		return DifficultyEasy
	case skillLevel <= 6:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

// ProblemInfo 选题所需的题目摘要
type ProblemInfo struct {
	ID         uint
	Order      int
	Difficulty Difficulty
}

// NextProblem 优先返回偏好难度下 order 最小的未解题目，没有则退回任意难度。
// 难度只是软性偏好；全部解完时返回 false。
func NextProblem(skillLevel int, problems []ProblemInfo, solved map[uint]bool) (ProblemInfo, bool) {
	candidates := make([]ProblemInfo, 0, len(problems))
	for _, p := range problems {
		if !solved[p.ID] {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return ProblemInfo{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Order < candidates[j].Order })

	preferred := PreferredDifficulty(skillLevel)
	for _, p := range candidates {
		if p.Difficulty == preferred {
			return p, true
		}
	}
	return candidates[0], true
}
