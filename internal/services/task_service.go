package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/jonboulle/clockwork"

	"TaskTrackerBot/internal/contracts"
)

// TaskService реализует правила жизненного цикла задач: недельные квоты,
// смену статусов и удаление
type TaskService struct {
	store contracts.TaskStore
	users contracts.UserStore
	min   int
	max   int
	clock clockwork.Clock
}

// NewTaskService создает новый сервис задач
func NewTaskService(store contracts.TaskStore, users contracts.UserStore, minPerWeek, maxPerWeek int, clock clockwork.Clock) *TaskService {
	return &TaskService{
		store: store,
		users: users,
		min:   minPerWeek,
		max:   maxPerWeek,
		clock: clock,
	}
}

// MinPerWeek возвращает недельный минимум задач
func (s *TaskService) MinPerWeek() int { return s.min }

// MaxPerWeek возвращает недельный максимум задач
func (s *TaskService) MaxPerWeek() int { return s.max }

// CanCreateTask проверяет, может ли пользователь создать задачу в чате.
// При отказе заполняется Reason; при успехе MinRemaining показывает,
// сколько задач останется добрать до недельного минимума после этой.
func (s *TaskService) CanCreateTask(userID, chatID int64) (contracts.CreateCheck, error) {
	uc, err := s.users.GetMembership(userID, chatID)
	if err != nil {
		log.Printf("[TaskService] Ошибка проверки членства (user %d, chat %d): %v", userID, chatID, err)
		return contracts.CreateCheck{}, fmt.Errorf("ошибка проверки членства: %w", err)
	}
	if uc == nil || !uc.IsActive {
		return contracts.CreateCheck{
			Allowed: false,
			Reason:  "Вы не зарегистрированы в этом чате. Отправьте /start",
		}, nil
	}

	week, year := WeekOf(s.clock.Now())
	count, err := s.store.CountUserTasks(userID, chatID, week, year)
	if err != nil {
		log.Printf("[TaskService] Ошибка подсчёта задач (user %d, chat %d): %v", userID, chatID, err)
		return contracts.CreateCheck{}, fmt.Errorf("ошибка подсчёта задач: %w", err)
	}
	if count >= s.max {
		return contracts.CreateCheck{
			Allowed: false,
			Reason:  fmt.Sprintf("Достигнут максимум задач на неделю (%d)", s.max),
		}, nil
	}

	remaining := s.min - (count + 1)
	if remaining < 0 {
		remaining = 0
	}
	return contracts.CreateCheck{Allowed: true, MinRemaining: remaining}, nil
}

// CreateTask создаёт задачу. Проверка членства и квоты повторяется внутри
// хранилища атомарно с вставкой, так что параллельные создания не могут
// превысить недельный максимум.
func (s *TaskService) CreateTask(userID, chatID int64, description string) (int64, error) {
	week, year := WeekOf(s.clock.Now())

	taskID, err := s.store.CreateTask(userID, chatID, description, week, year, s.max)
	if err != nil {
		if errors.Is(err, contracts.ErrNotRegistered) || errors.Is(err, contracts.ErrWeeklyLimitReached) {
			return 0, err
		}
		log.Printf("[TaskService] Ошибка создания задачи (user %d, chat %d): %v", userID, chatID, err)
		return 0, fmt.Errorf("ошибка создания задачи: %w", err)
	}

	log.Printf("[TaskService] Задача #%d создана (user %d, chat %d, неделя %d/%d)", taskID, userID, chatID, week, year)
	return taskID, nil
}

// GetTask получает задачу по ID
func (s *TaskService) GetTask(taskID int64) (*contracts.Task, error) {
	return s.store.GetTask(taskID)
}

// GetUserTasks возвращает задачи пользователя в чате за неделю.
// Нулевые week/year означают текущую неделю.
func (s *TaskService) GetUserTasks(userID, chatID int64, week, year int) ([]contracts.Task, error) {
	week, year = weekOrCurrent(week, year, s.clock.Now())
	return s.store.GetUserTasks(userID, chatID, week, year)
}

// UpdateTaskStatus меняет статус задачи. Любой из трёх статусов можно
// сменить на любой другой; неделя и год задачи не меняются.
func (s *TaskService) UpdateTaskStatus(taskID int64, status contracts.TaskStatus) error {
	if !status.IsValid() {
		return contracts.ErrInvalidStatus
	}

	if err := s.store.UpdateTaskStatus(taskID, status); err != nil {
		if errors.Is(err, contracts.ErrTaskNotFound) {
			return err
		}
		log.Printf("[TaskService] Ошибка обновления статуса задачи %d: %v", taskID, err)
		return fmt.Errorf("ошибка обновления статуса: %w", err)
	}

	log.Printf("[TaskService] Задача #%d переведена в статус %q", taskID, status)
	return nil
}

// DeleteTask удаляет задачу. Повторное удаление возвращает ErrTaskNotFound.
func (s *TaskService) DeleteTask(taskID int64) error {
	if err := s.store.DeleteTask(taskID); err != nil {
		if errors.Is(err, contracts.ErrTaskNotFound) {
			return err
		}
		log.Printf("[TaskService] Ошибка удаления задачи %d: %v", taskID, err)
		return fmt.Errorf("ошибка удаления задачи: %w", err)
	}
	return nil
}

// GetTaskSummary возвращает живую сводку пользователя за текущую неделю
func (s *TaskService) GetTaskSummary(userID, chatID int64) (*contracts.TaskSummary, error) {
	week, year := WeekOf(s.clock.Now())

	counts, err := s.store.CountTasksByStatus(userID, chatID, week, year)
	if err != nil {
		log.Printf("[TaskService] Ошибка сводки (user %d, chat %d): %v", userID, chatID, err)
		return nil, fmt.Errorf("ошибка получения сводки: %w", err)
	}

	rate := 0.0
	if counts.Created > 0 {
		rate = float64(counts.Completed) / float64(counts.Created)
	}

	return &contracts.TaskSummary{
		UserID:         userID,
		ChatID:         chatID,
		WeekNumber:     week,
		Year:           year,
		TotalTasks:     counts.Created,
		CompletedTasks: counts.Completed,
		CanceledTasks:  counts.Canceled,
		OpenTasks:      counts.Created - counts.Completed - counts.Canceled,
		CompletionRate: rate,
		MinTasks:       s.min,
		MaxTasks:       s.max,
	}, nil
}
