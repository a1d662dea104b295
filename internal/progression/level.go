package progression

// LevelThresholds 第 i 项为达到 i+1 级所需的累计经验
var LevelThresholds = []int{0, 100, 300, 600, 1000, 1500, 2500, 4000, 6000, 9000, 13000}

// 超出阈值表后每级固定增加的经验
const levelStepBeyondTable = 5000

// ResolveLevel 根据累计经验返回等级，最低 1 级
func ResolveLevel(xpTotal int) int {
	level := 1
	for i, threshold := range LevelThresholds {
		if xpTotal >= threshold {
			level = i + 1
		}
	}
	return level
}

// XPForNextLevel 返回从 currentLevel 升到下一级所需的累计经验
func XPForNextLevel(currentLevel int) int {
	if currentLevel < 0 {
		currentLevel = 0
	}
	if currentLevel < len(LevelThresholds) {
		return LevelThresholds[currentLevel]
	}
	last := LevelThresholds[len(LevelThresholds)-1]
	return last + (currentLevel-len(LevelThresholds)+1)*levelStepBeyondTable
}

// LevelProgress 当前等级内的进度百分比，用于展示
func LevelProgress(xpTotal int) float64 {
	level := ResolveLevel(xpTotal)
	floor := LevelThresholds[level-1]
	next := XPForNextLevel(level)
	if next <= floor {
		return 100
	}
	p := float64(xpTotal-floor) / float64(next-floor) * 100
	if p > 100 {
		return 100
	}
	return p
}
