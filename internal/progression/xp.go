package progression

import "math"

const (
	MinXP              = 5
	HintPenalty        = 5
	attemptPenaltyStep = 0.1
	attemptFloor       = 0.5
	timeBonusFactor    = 1.2
)

var difficultyMultiplier = map[Difficulty]float64{
	DifficultyEasy:   1,
	DifficultyMedium: 1.5,
	DifficultyHard:   2,
}

// XPInput 单次提交的经验计算参数
type XPInput struct {
	BaseXP     int
	Difficulty Difficulty
	HintsUsed  int
	Attempts   int
	TimeBonus  bool
}

// CalculateXP 计算一次通过提交获得的经验值。
// 计算顺序固定：难度倍率 -> 提示扣减 -> 尝试次数衰减 -> 时间奖励 -> 四舍五入 -> 下限 5。
// 调整顺序会改变结果。
func CalculateXP(in XPInput) int {
	multiplier, ok := difficultyMultiplier[in.Difficulty]
	if !ok {
		multiplier = 1
	}

	hints := in.HintsUsed
	if hints < 0 {
		hints = 0
	}
	attempts := in.Attempts
	if attempts < 1 {
		attempts = 1
	}

	xp := float64(in.BaseXP) * multiplier
	xp -= float64(HintPenalty * hints)

	if attempts > 1 {
		xp *= math.Max(attemptFloor, 1-float64(attempts-1)*attemptPenaltyStep)
	}

	if in.TimeBonus {
		xp *= timeBonusFactor
	}

	result := int(math.Round(xp))
	if result < MinXP {
		return MinXP
	}
	return result
}
