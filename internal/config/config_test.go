package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekday(t *testing.T) {
	cases := map[string]time.Weekday{
		"monday":    time.Monday,
		"FRIDAY":    time.Friday,
		" Sunday ":  time.Sunday,
		"wednesday": time.Wednesday,
	}
	for value, expected := range cases {
		day, err := ParseWeekday(value)
		require.NoError(t, err, value)
		assert.Equal(t, expected, day)
	}

	_, err := ParseWeekday("someday")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("MIN_TASKS_PER_WEEK", "")
	t.Setenv("MAX_TASKS_PER_WEEK", "")
	t.Setenv("WEEKLY_RESET_DAY", "")
	t.Setenv("TIMEZONE", "")

	cfg := Load()

	assert.Equal(t, 3, cfg.Tasks.MinPerWeek)
	assert.Equal(t, 5, cfg.Tasks.MaxPerWeek)
	assert.Equal(t, time.Monday, cfg.Schedule.ResetDay)
	assert.Equal(t, 0, cfg.Schedule.ResetHour)
	assert.Equal(t, time.Friday, cfg.Schedule.StatsDay)
	assert.Equal(t, 17, cfg.Schedule.StatsHour)
	assert.Equal(t, "Europe/Moscow", cfg.Schedule.Timezone)
	assert.Contains(t, cfg.Database.DSN, "postgres://")
	assert.Equal(t, "25566", cfg.HTTP.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MIN_TASKS_PER_WEEK", "2")
	t.Setenv("MAX_TASKS_PER_WEEK", "7")
	t.Setenv("WEEKLY_RESET_DAY", "sunday")
	t.Setenv("WEEKLY_RESET_HOUR", "23")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@db:5432/tasks?sslmode=disable")

	cfg := Load()

	assert.Equal(t, 2, cfg.Tasks.MinPerWeek)
	assert.Equal(t, 7, cfg.Tasks.MaxPerWeek)
	assert.Equal(t, time.Sunday, cfg.Schedule.ResetDay)
	assert.Equal(t, 23, cfg.Schedule.ResetHour)
	assert.Equal(t, "postgres://u:p@db:5432/tasks?sslmode=disable", cfg.Database.DSN)
}

func TestScheduleLocation(t *testing.T) {
	valid := ScheduleConfig{Timezone: "Europe/Moscow"}
	loc, err := valid.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())

	invalid := ScheduleConfig{Timezone: "Mars/Olympus"}
	_, err = invalid.Location()
	assert.Error(t, err)
}
