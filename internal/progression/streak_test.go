package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestStreakFirstActivity(t *testing.T) {
	next, outcome := StreakState{}.Record(day(2024, 3, 1, 15), time.UTC)

	assert.Equal(t, StreakStarted, outcome)
	assert.Equal(t, 1, next.Current)
	assert.Equal(t, 1, next.Longest)
	assert.Equal(t, 1, next.TotalActiveDays)
	require.NotNil(t, next.LastActiveDate)
	assert.Equal(t, day(2024, 3, 1, 0), *next.LastActiveDate)
}

func TestStreakTransitions(t *testing.T) {
	loc := time.UTC
	s, _ := StreakState{}.Record(day(2024, 3, 1, 9), loc)

	same, outcome := s.Record(day(2024, 3, 1, 23), loc)
	assert.Equal(t, StreakUnchanged, outcome)
	assert.Equal(t, s, same)

	ext, outcome := s.Record(day(2024, 3, 2, 0), loc)
	assert.Equal(t, StreakExtended, outcome)
	assert.Equal(t, 2, ext.Current)
	assert.Equal(t, 2, ext.Longest)
	assert.Equal(t, 2, ext.TotalActiveDays)

	ext, _ = ext.Record(day(2024, 3, 3, 12), loc)
	reset, outcome := ext.Record(day(2024, 3, 6, 12), loc)
	assert.Equal(t, StreakReset, outcome)
	assert.Equal(t, 1, reset.Current)
	assert.Equal(t, 3, reset.Longest)
	assert.Equal(t, 4, reset.TotalActiveDays)
}

func TestStreakOutOfOrderIsNoop(t *testing.T) {
	s, _ := StreakState{}.Record(day(2024, 3, 10, 9), time.UTC)
	next, outcome := s.Record(day(2024, 3, 8, 9), time.UTC)

	assert.Equal(t, StreakOutOfOrder, outcome)
	assert.Equal(t, s, next)
}

func TestStreakUsesLocationForDayBoundary(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	// UTC 3月1日 20:00 在东八区已是 3月2日
	s, _ := StreakState{}.Record(day(2024, 3, 1, 10), shanghai)
	next, outcome := s.Record(day(2024, 3, 1, 20), shanghai)

	assert.Equal(t, StreakExtended, outcome)
	assert.Equal(t, 2, next.Current)
}

func TestStreakLongestNeverDecreases(t *testing.T) {
	s := StreakState{}
	d := day(2024, 1, 1, 8)
	longest := 0
	gaps := []int{1, 1, 1, 5, 1, 2, 1, 1, 1, 1, 9, 0, 1}
	for _, g := range gaps {
		d = d.AddDate(0, 0, g)
		s, _ = s.Record(d, time.UTC)
		assert.GreaterOrEqual(t, s.Longest, longest)
		assert.GreaterOrEqual(t, s.Longest, s.Current)
		longest = s.Longest
	}
	assert.Equal(t, 5, s.Longest)
}

func TestStreakRepair(t *testing.T) {
	last := day(2024, 5, 1, 0)
	s := StreakState{Current: 4, Longest: 6, TotalActiveDays: 10, LastActiveDate: &last}

	_, changed := s.Repair(day(2024, 5, 2, 12), time.UTC)
	assert.False(t, changed, "yesterday's activity keeps the streak alive")

	repaired, changed := s.Repair(day(2024, 5, 3, 12), time.UTC)
	assert.True(t, changed)
	assert.Equal(t, 0, repaired.Current)
	assert.Equal(t, 6, repaired.Longest)
	assert.Equal(t, 10, repaired.TotalActiveDays)

	_, changed = repaired.Repair(day(2024, 5, 3, 12), time.UTC)
	assert.False(t, changed, "repair is idempotent")
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	from := time.Date(2024, 3, 9, 12, 0, 0, 0, ny)
	to := time.Date(2024, 3, 10, 12, 0, 0, 0, ny)
	assert.Equal(t, 1, DaysBetween(from, to, ny))
}
