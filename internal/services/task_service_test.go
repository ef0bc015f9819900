package services

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TaskTrackerBot/internal/contracts"
)

const (
	testUserID = int64(100)
	testChatID = int64(-200)
)

// среда, неделя 2/2026
var testNow = time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

func newTaskServiceForTest(t *testing.T) (*TaskService, *memoryStore, *clockwork.FakeClock) {
	t.Helper()
	store := newMemoryStore()
	store.register(testUserID, "alice", testChatID)
	clock := clockwork.NewFakeClockAt(testNow)
	return NewTaskService(store, store, 3, 5, clock), store, clock
}

func TestTaskService_CanCreateTask(t *testing.T) {
	t.Run("незарегистрированный пользователь получает отказ", func(t *testing.T) {
		svc, _, _ := newTaskServiceForTest(t)

		check, err := svc.CanCreateTask(999, testChatID)
		require.NoError(t, err)
		assert.False(t, check.Allowed)
		assert.Contains(t, check.Reason, "/start")
	})

	t.Run("MinRemaining уменьшается до нуля по мере создания", func(t *testing.T) {
		svc, _, _ := newTaskServiceForTest(t)

		// до первой задачи: после неё до минимума останется 2
		check, err := svc.CanCreateTask(testUserID, testChatID)
		require.NoError(t, err)
		assert.True(t, check.Allowed)
		assert.Equal(t, 2, check.MinRemaining)

		for i := 0; i < 2; i++ {
			_, err := svc.CreateTask(testUserID, testChatID, "задача")
			require.NoError(t, err)
		}

		// создано 2, третья добирает минимум
		check, err = svc.CanCreateTask(testUserID, testChatID)
		require.NoError(t, err)
		assert.True(t, check.Allowed)
		assert.Equal(t, 0, check.MinRemaining)
	})

	t.Run("на максимуме создание запрещено", func(t *testing.T) {
		svc, _, _ := newTaskServiceForTest(t)

		for i := 0; i < 5; i++ {
			_, err := svc.CreateTask(testUserID, testChatID, "задача")
			require.NoError(t, err)
		}

		check, err := svc.CanCreateTask(testUserID, testChatID)
		require.NoError(t, err)
		assert.False(t, check.Allowed)
		assert.Contains(t, check.Reason, "5")
	})
}

func TestTaskService_CreateTask(t *testing.T) {
	t.Run("шестая задача отклоняется", func(t *testing.T) {
		svc, _, _ := newTaskServiceForTest(t)

		for i := 0; i < 5; i++ {
			_, err := svc.CreateTask(testUserID, testChatID, "задача")
			require.NoError(t, err)
		}

		_, err := svc.CreateTask(testUserID, testChatID, "лишняя")
		assert.ErrorIs(t, err, contracts.ErrWeeklyLimitReached)
	})

	t.Run("без регистрации задача не создаётся", func(t *testing.T) {
		svc, _, _ := newTaskServiceForTest(t)

		_, err := svc.CreateTask(999, testChatID, "задача")
		assert.ErrorIs(t, err, contracts.ErrNotRegistered)
	})

	t.Run("параллельные создания не превышают максимум", func(t *testing.T) {
		svc, store, _ := newTaskServiceForTest(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.CreateTask(testUserID, testChatID, "гонка")
			}()
		}
		wg.Wait()

		count, err := store.CountUserTasks(testUserID, testChatID, 2, 2026)
		require.NoError(t, err)
		assert.Equal(t, 5, count)
	})

	t.Run("новая неделя открывает новую квоту", func(t *testing.T) {
		svc, _, clock := newTaskServiceForTest(t)

		for i := 0; i < 5; i++ {
			_, err := svc.CreateTask(testUserID, testChatID, "задача")
			require.NoError(t, err)
		}

		clock.Advance(7 * 24 * time.Hour)

		tasks, err := svc.GetUserTasks(testUserID, testChatID, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, tasks, "задачи прошлой недели не видны в текущей")

		_, err = svc.CreateTask(testUserID, testChatID, "задача новой недели")
		assert.NoError(t, err)
	})
}

func TestTaskService_UpdateTaskStatus(t *testing.T) {
	t.Run("недопустимый статус отклоняется", func(t *testing.T) {
		svc, _, _ := newTaskServiceForTest(t)

		err := svc.UpdateTaskStatus(1, contracts.TaskStatus("done"))
		assert.ErrorIs(t, err, contracts.ErrInvalidStatus)
	})

	t.Run("несуществующая задача", func(t *testing.T) {
		svc, _, _ := newTaskServiceForTest(t)

		err := svc.UpdateTaskStatus(12345, contracts.StatusCompleted)
		assert.ErrorIs(t, err, contracts.ErrTaskNotFound)
	})

	t.Run("статусы меняются свободно, неделя сохраняется", func(t *testing.T) {
		svc, _, _ := newTaskServiceForTest(t)

		taskID, err := svc.CreateTask(testUserID, testChatID, "задача")
		require.NoError(t, err)

		for _, status := range []contracts.TaskStatus{
			contracts.StatusCompleted,
			contracts.StatusCanceled,
			contracts.StatusCreated,
			contracts.StatusCompleted,
		} {
			require.NoError(t, svc.UpdateTaskStatus(taskID, status))

			task, err := svc.GetTask(taskID)
			require.NoError(t, err)
			require.NotNil(t, task)
			assert.Equal(t, status, task.Status)
			assert.Equal(t, 2, task.WeekNumber)
			assert.Equal(t, 2026, task.Year)
		}
	})
}

func TestTaskService_DeleteTask(t *testing.T) {
	svc, _, _ := newTaskServiceForTest(t)

	taskID, err := svc.CreateTask(testUserID, testChatID, "задача")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTask(taskID))
	assert.ErrorIs(t, svc.DeleteTask(taskID), contracts.ErrTaskNotFound)

	// удалённая задача освобождает место в квоте
	check, err := svc.CanCreateTask(testUserID, testChatID)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.Equal(t, 2, check.MinRemaining)
}

func TestTaskService_GetTaskSummary(t *testing.T) {
	svc, _, _ := newTaskServiceForTest(t)

	var ids []int64
	for i := 0; i < 4; i++ {
		id, err := svc.CreateTask(testUserID, testChatID, "задача")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, svc.UpdateTaskStatus(ids[0], contracts.StatusCompleted))
	require.NoError(t, svc.UpdateTaskStatus(ids[1], contracts.StatusCompleted))
	require.NoError(t, svc.UpdateTaskStatus(ids[2], contracts.StatusCanceled))

	summary, err := svc.GetTaskSummary(testUserID, testChatID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.WeekNumber)
	assert.Equal(t, 2026, summary.Year)
	assert.Equal(t, 4, summary.TotalTasks)
	assert.Equal(t, 2, summary.CompletedTasks)
	assert.Equal(t, 1, summary.CanceledTasks)
	assert.Equal(t, 1, summary.OpenTasks)
	assert.InDelta(t, 0.5, summary.CompletionRate, 1e-9)
	assert.Equal(t, 3, summary.MinTasks)
	assert.Equal(t, 5, summary.MaxTasks)
}
