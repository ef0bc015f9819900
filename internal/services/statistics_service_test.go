package services

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TaskTrackerBot/internal/contracts"
)

func newStatsServiceForTest(t *testing.T) (*StatisticsService, *memoryStore, *clockwork.FakeClock) {
	t.Helper()
	store := newMemoryStore()
	clock := clockwork.NewFakeClockAt(testNow)
	return NewStatisticsService(store, store, store, clock), store, clock
}

// seedTasks создаёт total задач пользователя на неделе 2/2026 и помечает
// done из них выполненными
func seedTasks(t *testing.T, store *memoryStore, userID, chatID int64, total, done int) {
	t.Helper()
	for i := 0; i < total; i++ {
		id, err := store.CreateTask(userID, chatID, "задача", 2, 2026, 100)
		require.NoError(t, err)
		if i < done {
			require.NoError(t, store.UpdateTaskStatus(id, contracts.StatusCompleted))
		}
	}
}

func TestStatisticsService_GenerateWeeklyStatsForChat(t *testing.T) {
	svc, store, _ := newStatsServiceForTest(t)

	store.register(1, "alice", testChatID)
	store.register(2, "bob", testChatID)
	seedTasks(t, store, 1, testChatID, 5, 2)
	seedTasks(t, store, 2, testChatID, 2, 1)

	stats, err := svc.GenerateWeeklyStatsForChat(testChatID, 0, 0)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	alice, err := svc.GetWeeklyStat(1, testChatID, 2, 2026)
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.Equal(t, 5, alice.TasksCreated)
	assert.Equal(t, 2, alice.TasksCompleted)
	assert.InDelta(t, 0.4, alice.CompletionRate, 1e-9)

	bob, err := svc.GetWeeklyStat(2, testChatID, 2, 2026)
	require.NoError(t, err)
	require.NotNil(t, bob)
	assert.InDelta(t, 0.5, bob.CompletionRate, 1e-9)
}

func TestStatisticsService_RegenerationOverwritesSnapshot(t *testing.T) {
	svc, store, _ := newStatsServiceForTest(t)

	store.register(1, "alice", testChatID)
	id, err := store.CreateTask(1, testChatID, "задача", 2, 2026, 100)
	require.NoError(t, err)

	_, err = svc.GenerateWeeklyStatsForChat(testChatID, 2, 2026)
	require.NoError(t, err)

	first, err := svc.GetWeeklyStat(1, testChatID, 2, 2026)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 0, first.TasksCompleted)

	// задача выполняется после первого снимка, повторный пересчёт
	// перезаписывает запись, а не создаёт вторую
	require.NoError(t, store.UpdateTaskStatus(id, contracts.StatusCompleted))

	_, err = svc.GenerateWeeklyStatsForChat(testChatID, 2, 2026)
	require.NoError(t, err)

	second, err := svc.GetWeeklyStat(1, testChatID, 2, 2026)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, 1, second.TasksCompleted)
	assert.Equal(t, first.StatID, second.StatID)
}

func TestStatisticsService_GenerateWeeklyStatsForAllChats(t *testing.T) {
	svc, store, _ := newStatsServiceForTest(t)

	store.register(1, "alice", -10)
	store.register(2, "bob", -20)
	seedTasks(t, store, 1, -10, 3, 3)
	seedTasks(t, store, 2, -20, 4, 1)

	// сбой одного чата не прерывает остальные
	store.brokenChats[-10] = errors.New("база недоступна")

	results, err := svc.GenerateWeeklyStatsForAllChats(2, 2026)
	assert.Error(t, err)
	require.Contains(t, results, int64(-20))
	assert.Len(t, results[-20], 1)
	assert.NotContains(t, results, int64(-10))
}

func TestStatisticsService_GetChatUsersCompletionRates(t *testing.T) {
	t.Run("без снимка считает на лету и не сохраняет", func(t *testing.T) {
		svc, store, _ := newStatsServiceForTest(t)

		store.register(1, "alice", testChatID)
		seedTasks(t, store, 1, testChatID, 4, 3)

		rates, err := svc.GetChatUsersCompletionRates(testChatID, 0, 0)
		require.NoError(t, err)
		require.Len(t, rates, 1)
		assert.Equal(t, "alice", rates[0].DisplayName)
		assert.InDelta(t, 0.75, rates[0].CompletionRate, 1e-9)

		stat, err := svc.GetWeeklyStat(1, testChatID, 2, 2026)
		require.NoError(t, err)
		assert.Nil(t, stat, "живой запрос не должен сохранять снимок")
	})

	t.Run("сохранённый снимок имеет приоритет", func(t *testing.T) {
		svc, store, _ := newStatsServiceForTest(t)

		store.register(1, "alice", testChatID)
		seedTasks(t, store, 1, testChatID, 4, 3)
		require.NoError(t, store.UpsertWeeklyStat(&contracts.WeeklyStat{
			UserID: 1, ChatID: testChatID, WeekNumber: 2, Year: 2026,
			TasksCreated: 10, TasksCompleted: 1, CompletionRate: 0.1,
		}))

		rates, err := svc.GetChatUsersCompletionRates(testChatID, 0, 0)
		require.NoError(t, err)
		require.Len(t, rates, 1)
		assert.InDelta(t, 0.1, rates[0].CompletionRate, 1e-9)
	})
}

func TestStatisticsService_GetStatsHistory(t *testing.T) {
	svc, store, _ := newStatsServiceForTest(t)

	store.register(1, "alice", testChatID)
	for _, wy := range []struct{ week, year int }{{52, 2025}, {2, 2026}, {1, 2026}} {
		require.NoError(t, store.UpsertWeeklyStat(&contracts.WeeklyStat{
			UserID: 1, ChatID: testChatID, WeekNumber: wy.week, Year: wy.year,
		}))
	}

	history, err := svc.GetStatsHistory(1, testChatID, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 2, history[0].WeekNumber)
	assert.Equal(t, 2026, history[0].Year)
	assert.Equal(t, 1, history[1].WeekNumber)
	assert.Equal(t, 52, history[2].WeekNumber)
	assert.Equal(t, 2025, history[2].Year)

	limited, err := svc.GetStatsHistory(1, testChatID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStatisticsService_ResetWeeklyTasks(t *testing.T) {
	store := newMemoryStore()
	// понедельник 12 января 2026, 00:00 — граница недель 2 и 3
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC))
	svc := NewStatisticsService(store, store, store, clock)

	store.register(1, "alice", testChatID)
	seedTasks(t, store, 1, testChatID, 3, 2)

	require.NoError(t, svc.ResetWeeklyTasks())

	// снимок сделан за только что закончившуюся неделю 2, не за новую
	stat, err := svc.GetWeeklyStat(1, testChatID, 2, 2026)
	require.NoError(t, err)
	require.NotNil(t, stat)
	assert.Equal(t, 3, stat.TasksCreated)
	assert.Equal(t, 2, stat.TasksCompleted)

	current, err := svc.GetWeeklyStat(1, testChatID, 3, 2026)
	require.NoError(t, err)
	assert.Nil(t, current)
}
