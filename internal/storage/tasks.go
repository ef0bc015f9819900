package storage

import (
	"database/sql"
	"fmt"
	"log"

	"TaskTrackerBot/internal/contracts"
)

// CreateTask создаёт задачу, атомарно проверяя членство и недельную квоту.
// SELECT ... FOR UPDATE на строке членства сериализует создания по паре
// (user, chat): две параллельные вставки не могут обе пройти проверку
// счётчика и вместе превысить максимум.
func (s *Storage) CreateTask(userID, chatID int64, description string, week, year, maxPerWeek int) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции создания задачи: %w", err)
	}
	defer tx.Rollback()

	var isActive bool
	err = tx.QueryRow(`SELECT is_active FROM user_chats WHERE user_id = $1 AND chat_id = $2 FOR UPDATE`,
		userID, chatID).Scan(&isActive)
	if err == sql.ErrNoRows {
		return 0, contracts.ErrNotRegistered
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка блокировки членства (user %d, chat %d): %w", userID, chatID, err)
	}
	if !isActive {
		return 0, contracts.ErrNotRegistered
	}

	var count int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM tasks
		WHERE user_id = $1 AND chat_id = $2 AND week_number = $3 AND year = $4`,
		userID, chatID, week, year).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта задач (user %d, chat %d, неделя %d/%d): %w", userID, chatID, week, year, err)
	}
	if count >= maxPerWeek {
		return 0, contracts.ErrWeeklyLimitReached
	}

	var taskID int64
	err = tx.QueryRow(`
		INSERT INTO tasks (user_id, chat_id, description, status, created_at, updated_at, week_number, year)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), $5, $6)
		RETURNING task_id`,
		userID, chatID, description, contracts.StatusCreated, week, year).Scan(&taskID)
	if err != nil {
		return 0, fmt.Errorf("ошибка вставки задачи (user %d, chat %d): %w", userID, chatID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ошибка фиксации транзакции создания задачи: %w", err)
	}

	log.Printf("[Storage] Задача #%d создана (user %d, chat %d, неделя %d/%d)", taskID, userID, chatID, week, year)
	return taskID, nil
}

// GetTask получает задачу по ID
func (s *Storage) GetTask(taskID int64) (*contracts.Task, error) {
	query := `SELECT task_id, user_id, chat_id, description, status, created_at, updated_at, week_number, year
			  FROM tasks WHERE task_id = $1`

	var t contracts.Task
	err := s.db.QueryRow(query, taskID).Scan(
		&t.TaskID,
		&t.UserID,
		&t.ChatID,
		&t.Description,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.WeekNumber,
		&t.Year,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса задачи %d: %w", taskID, err)
	}
	return &t, nil
}

// GetUserTasks возвращает задачи пользователя в чате за указанную неделю
// в порядке создания
func (s *Storage) GetUserTasks(userID, chatID int64, week, year int) ([]contracts.Task, error) {
	rows, err := s.db.Query(`
		SELECT task_id, user_id, chat_id, description, status, created_at, updated_at, week_number, year
		FROM tasks
		WHERE user_id = $1 AND chat_id = $2 AND week_number = $3 AND year = $4
		ORDER BY task_id`,
		userID, chatID, week, year)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса задач (user %d, chat %d, неделя %d/%d): %w", userID, chatID, week, year, err)
	}
	defer rows.Close()

	var tasks []contracts.Task
	for rows.Next() {
		var t contracts.Task
		err := rows.Scan(&t.TaskID, &t.UserID, &t.ChatID, &t.Description, &t.Status,
			&t.CreatedAt, &t.UpdatedAt, &t.WeekNumber, &t.Year)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования задачи: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountUserTasks возвращает количество задач пользователя в чате за неделю
func (s *Storage) CountUserTasks(userID, chatID int64, week, year int) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM tasks
		WHERE user_id = $1 AND chat_id = $2 AND week_number = $3 AND year = $4`,
		userID, chatID, week, year).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта задач (user %d, chat %d, неделя %d/%d): %w", userID, chatID, week, year, err)
	}
	return count, nil
}

// CountTasksByStatus возвращает количества задач недели одним запросом
func (s *Storage) CountTasksByStatus(userID, chatID int64, week, year int) (contracts.TaskCounts, error) {
	var counts contracts.TaskCounts
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = $5),
		       COUNT(*) FILTER (WHERE status = $6)
		FROM tasks
		WHERE user_id = $1 AND chat_id = $2 AND week_number = $3 AND year = $4`,
		userID, chatID, week, year,
		contracts.StatusCompleted, contracts.StatusCanceled,
	).Scan(&counts.Created, &counts.Completed, &counts.Canceled)
	if err != nil {
		return counts, fmt.Errorf("ошибка подсчёта задач по статусам (user %d, chat %d, неделя %d/%d): %w", userID, chatID, week, year, err)
	}
	return counts, nil
}

// UpdateTaskStatus меняет статус задачи и обновляет updated_at.
// Неделя и год задачи не затрагиваются.
func (s *Storage) UpdateTaskStatus(taskID int64, status contracts.TaskStatus) error {
	res, err := s.db.Exec(`UPDATE tasks SET status = $2, updated_at = NOW() WHERE task_id = $1`,
		taskID, status)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса задачи %d: %w", taskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contracts.ErrTaskNotFound
	}
	return nil
}

// DeleteTask удаляет задачу. Отсутствующий ID — обычный отказ, не паника.
func (s *Storage) DeleteTask(taskID int64) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("ошибка удаления задачи %d: %w", taskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contracts.ErrTaskNotFound
	}
	log.Printf("[Storage] Задача #%d удалена", taskID)
	return nil
}
