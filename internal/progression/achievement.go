package progression

// Stats 成就判定所需的用户聚合数据
type Stats struct {
	TotalProblemsSolved int
	CurrentStreak       int
	Level               int
}

// Achievement 成就定义。触发条件为精确相等，只在达到阈值的那一刻授予，不做补发。
type Achievement struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	trigger     func(Stats) bool
}

const (
	AchievementFirstSteps      = "First Steps"
	AchievementProblemSolver   = "Problem Solver"
	AchievementWeekWarrior     = "Week Warrior"
	AchievementConsistencyKing = "Consistency King"
	AchievementRisingStar      = "Rising Star"
	AchievementExpertCoder     = "Expert Coder"
)

var catalog = []Achievement{
	{
		Name:        AchievementFirstSteps,
		Description: "Solve your first problem",
		Icon:        "footprints",
		trigger:     func(s Stats) bool { return s.TotalProblemsSolved == 1 },
	},
	{
		Name:        AchievementProblemSolver,
		Description: "Solve 10 problems",
		Icon:        "puzzle",
		trigger:     func(s Stats) bool { return s.TotalProblemsSolved == 10 },
	},
	{
		Name:        AchievementWeekWarrior,
		Description: "Keep a 7-day streak",
		Icon:        "calendar-week",
		trigger:     func(s Stats) bool { return s.CurrentStreak == 7 },
	},
	{
		Name:        AchievementConsistencyKing,
		Description: "Keep a 30-day streak",
		Icon:        "crown",
		trigger:     func(s Stats) bool { return s.CurrentStreak == 30 },
	},
	{
		Name:        AchievementRisingStar,
		Description: "Reach level 5",
		Icon:        "star",
		trigger:     func(s Stats) bool { return s.Level == 5 },
	},
	{
		Name:        AchievementExpertCoder,
		Description: "Reach level 10",
		Icon:        "trophy",
		trigger:     func(s Stats) bool { return s.Level == 10 },
	},
}

// Catalog 返回全部成就定义的副本
func Catalog() []Achievement {
	out := make([]Achievement, len(catalog))
	copy(out, catalog)
	return out
}

// LookupAchievement 按名称查找成就定义
func LookupAchievement(name string) (Achievement, bool) {
	for _, a := range catalog {
		if a.Name == name {
			return a, true
		}
	}
	return Achievement{}, false
}

// EvaluateAchievements 返回本次新解锁的成就，已拥有的名称不会再次检查
func EvaluateAchievements(stats Stats, owned []string) []Achievement {
	have := make(map[string]struct{}, len(owned))
	for _, name := range owned {
		have[name] = struct{}{}
	}

	var unlocked []Achievement
	for _, a := range catalog {
		if _, ok := have[a.Name]; ok {
			continue
		}
		if a.trigger(stats) {
			unlocked = append(unlocked, a)
			have[a.Name] = struct{}{}
		}
	}
	return unlocked
}
