package progression

import "time"

// StreakOutcome 一次活动对连续天数状态机造成的迁移
type StreakOutcome string

const (
	StreakStarted    StreakOutcome = "started"
	StreakUnchanged  StreakOutcome = "unchanged"
	StreakExtended   StreakOutcome = "extended"
	StreakReset      StreakOutcome = "reset"
	StreakOutOfOrder StreakOutcome = "out_of_order"
)

// StreakState 连续学习天数状态，LastActiveDate 只保留日期部分
type StreakState struct {
	Current         int
	Longest         int
	TotalActiveDays int
	LastActiveDate  *time.Time
}

// DateOnly 将时间截断为 loc 时区下的零点
func DateOnly(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween 返回 from 到 to 相隔的自然日数，可能为负
func DaysBetween(from, to time.Time, loc *time.Location) int {
	a := DateOnly(from, loc)
	b := DateOnly(to, loc)
	// 按日历日计算，避免夏令时切换造成 23/25 小时误差
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// Record 记录一次活动，返回新状态。早于最后活跃日期的活动不做任何修改。
func (s StreakState) Record(at time.Time, loc *time.Location) (StreakState, StreakOutcome) {
	day := DateOnly(at, loc)

	if s.LastActiveDate == nil {
		return StreakState{
			Current:         1,
			Longest:         maxInt(1, s.Longest),
			TotalActiveDays: s.TotalActiveDays + 1,
			LastActiveDate:  &day,
		}, StreakStarted
	}

	diff := DaysBetween(*s.LastActiveDate, day, loc)
	switch {
	case diff < 0:
		return s, StreakOutOfOrder
	case diff == 0:
		return s, StreakUnchanged
	case diff == 1:
		next := s
		next.Current++
		next.Longest = maxInt(next.Longest, next.Current)
		next.TotalActiveDays++
		next.LastActiveDate = &day
		return next, StreakExtended
	default:
		next := s
		next.Current = 1
		next.TotalActiveDays++
		next.LastActiveDate = &day
		return next, StreakReset
	}
}

// NeedsRepair 用户最后活跃日距 today 超过 1 天且连续天数未清零时返回 true
func (s StreakState) NeedsRepair(today time.Time, loc *time.Location) bool {
	if s.LastActiveDate == nil || s.Current == 0 {
		return false
	}
	return DaysBetween(*s.LastActiveDate, today, loc) > 1
}

// Repair 定时任务使用：断签用户的当前连续天数清零，其余字段保持不变
func (s StreakState) Repair(today time.Time, loc *time.Location) (StreakState, bool) {
	if !s.NeedsRepair(today, loc) {
		return s, false
	}
	s.Current = 0
	return s, true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
