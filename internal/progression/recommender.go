package progression

import (
	"math"
	"sort"
)

const (
	PrerequisiteThreshold = 70.0
	MaxRecommendations    = 5
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

const (
	ReasonNewModule      = "New module to explore"
	ReasonContinue       = "Continue your progress"
	ReasonAlmostComplete = "Almost complete!"
)

// ModuleInfo 推荐计算所需的模块摘要
type ModuleInfo struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	Order         int    `json:"order"`
	Prerequisites []uint `json:"prerequisites"`
	TotalXP       int    `json:"totalXp"`
	TotalProblems int    `json:"totalProblems"`
	Active        bool   `json:"-"`
}

type Recommendation struct {
	Module   ModuleInfo `json:"module"`
	Reason   string     `json:"reason"`
	Priority Priority   `json:"priority"`
	Progress float64    `json:"progress"`
}

// ModuleProgress 模块完成百分比，带倍率的经验可能超过模块总经验，结果截断到 100
func ModuleProgress(xpEarned, totalXP int) float64 {
	if totalXP <= 0 || xpEarned <= 0 {
		return 0
	}
	p := float64(xpEarned) / float64(totalXP) * 100
	return math.Min(p, 100)
}

// Recommend 根据各模块经验与先修关系给出最多 5 个推荐模块。
// 任一先修模块进度低于 70% 的模块直接排除；已完成模块不推荐。
func Recommend(xpByModule map[uint]int, modules []ModuleInfo) []Recommendation {
	progress := make(map[uint]float64, len(modules))
	for _, m := range modules {
		progress[m.ID] = ModuleProgress(xpByModule[m.ID], m.TotalXP)
	}

	var recs []Recommendation
	for _, m := range modules {
		if !m.Active {
			continue
		}
		if !prerequisitesMet(m, progress) {
			continue
		}

		p := progress[m.ID]
		rec := Recommendation{Module: m, Progress: round2(p)}
		switch {
		case p == 0:
			rec.Reason, rec.Priority = ReasonNewModule, PriorityHigh
		case p < 50:
			rec.Reason, rec.Priority = ReasonContinue, PriorityHigh
		case p < 100:
			rec.Reason, rec.Priority = ReasonAlmostComplete, PriorityMedium
		default:
			continue
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := recs[i].Priority.rank(), recs[j].Priority.rank()
		if ri != rj {
			return ri < rj
		}
		if recs[i].Progress != recs[j].Progress {
			return recs[i].Progress > recs[j].Progress
		}
		return recs[i].Module.Order < recs[j].Module.Order
	})

	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}

// 先修模块不存在时视为进度 0
func prerequisitesMet(m ModuleInfo, progress map[uint]float64) bool {
	for _, pre := range m.Prerequisites {
		if progress[pre] < PrerequisiteThreshold {
			return false
		}
	}
	return true
}

type PathStatus string

const (
	PathLocked     PathStatus = "locked"
	PathInProgress PathStatus = "in-progress"
	PathCompleted  PathStatus = "completed"
)

type PathEntry struct {
	Module         ModuleInfo `json:"module"`
	Progress       float64    `json:"progress"`
	ProblemsSolved int        `json:"problemsSolved"`
	TotalProblems  int        `json:"totalProblems"`
	XPEarned       int        `json:"xpEarned"`
	Status         PathStatus `json:"status"`
}

// BuildLearningPath 按 order 列出所有启用模块，仅用于展示，不受先修关系限制
func BuildLearningPath(xpByModule, solvedByModule map[uint]int, modules []ModuleInfo) []PathEntry {
	active := make([]ModuleInfo, 0, len(modules))
	for _, m := range modules {
		if m.Active {
			active = append(active, m)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Order < active[j].Order })

	path := make([]PathEntry, len(active))
	for i, m := range active {
		xp := xpByModule[m.ID]
		p := ModuleProgress(xp, m.TotalXP)

		status := PathInProgress
		switch {
		case p == 0:
			status = PathLocked
		case p >= 100:
			status = PathCompleted
		}

		path[i] = PathEntry{
			Module:         m,
			Progress:       round2(p),
			ProblemsSolved: solvedByModule[m.ID],
			TotalProblems:  m.TotalProblems,
			XPEarned:       xp,
			Status:         status,
		}
	}
	return path
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
