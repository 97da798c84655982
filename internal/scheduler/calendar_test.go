package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

func TestNewSemesterStartsOnFirstMonday(t *testing.T) {
	sem, err := NewSemester("2025-10-01", "2026-01-31")
	require.NoError(t, err)

	assert.Equal(t, "2025-10-06", sem.Monday.Format("2006-01-02"))
	assert.Equal(t, 18, sem.Weeks)
	assert.Equal(t, "2025-10-06", sem.DateString(1, models.Monday))
	assert.Equal(t, "2025-10-15", sem.DateString(2, models.Wednesday))
	assert.Equal(t, "2026-01-19", sem.DateString(16, models.Monday))
}

func TestSemesterWeekOf(t *testing.T) {
	sem, err := NewSemester("2025-10-01", "2026-01-31")
	require.NoError(t, err)

	week, day, ok := sem.WeekOf(time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 2, week)
	assert.Equal(t, models.Wednesday, day)

	_, _, ok = sem.WeekOf(time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok, "saturday")
	_, _, ok = sem.WeekOf(time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok, "before the first monday")
}

func TestNewSemesterRejectsBadInput(t *testing.T) {
	_, err := NewSemester("2025/10/01", "2026-01-31")
	assert.Error(t, err)

	_, err = NewSemester("2026-01-31", "2025-10-01")
	assert.Error(t, err)
}

func TestSemesterValidKey(t *testing.T) {
	sem := aprilSemester(t)
	assert.Equal(t, 3, sem.Weeks)
	assert.True(t, sem.ValidKey(models.SlotKey{Week: 3, Weekday: models.Friday, Period: 4}))
	assert.False(t, sem.ValidKey(models.SlotKey{Week: 4, Weekday: models.Monday, Period: 1}))
	assert.False(t, sem.ValidKey(models.SlotKey{Week: 1, Weekday: models.Monday, Period: 5}))
	assert.False(t, sem.ValidKey(models.SlotKey{Week: 1, Weekday: "土", Period: 1}))
}
