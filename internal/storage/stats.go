package storage

import (
	"database/sql"
	"fmt"

	"TaskTrackerBot/internal/contracts"
)

// GetWeeklyStat получает статистику пользователя в чате за неделю
func (s *Storage) GetWeeklyStat(userID, chatID int64, week, year int) (*contracts.WeeklyStat, error) {
	query := `SELECT stat_id, user_id, chat_id, week_number, year,
			         tasks_created, tasks_completed, tasks_canceled, completion_rate
			  FROM weekly_stats
			  WHERE user_id = $1 AND chat_id = $2 AND week_number = $3 AND year = $4`

	var stat contracts.WeeklyStat
	err := s.db.QueryRow(query, userID, chatID, week, year).Scan(
		&stat.StatID,
		&stat.UserID,
		&stat.ChatID,
		&stat.WeekNumber,
		&stat.Year,
		&stat.TasksCreated,
		&stat.TasksCompleted,
		&stat.TasksCanceled,
		&stat.CompletionRate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса статистики (user %d, chat %d, неделя %d/%d): %w", userID, chatID, week, year, err)
	}
	return &stat, nil
}

// GetStatsHistory возвращает историю недельной статистики пользователя
// в чате, от последних недель к ранним
func (s *Storage) GetStatsHistory(userID, chatID int64, limit int) ([]contracts.WeeklyStat, error) {
	rows, err := s.db.Query(`
		SELECT stat_id, user_id, chat_id, week_number, year,
		       tasks_created, tasks_completed, tasks_canceled, completion_rate
		FROM weekly_stats
		WHERE user_id = $1 AND chat_id = $2
		ORDER BY year DESC, week_number DESC
		LIMIT $3`,
		userID, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории статистики (user %d, chat %d): %w", userID, chatID, err)
	}
	defer rows.Close()

	var stats []contracts.WeeklyStat
	for rows.Next() {
		var stat contracts.WeeklyStat
		err := rows.Scan(&stat.StatID, &stat.UserID, &stat.ChatID, &stat.WeekNumber, &stat.Year,
			&stat.TasksCreated, &stat.TasksCompleted, &stat.TasksCanceled, &stat.CompletionRate)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования статистики: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// UpsertWeeklyStat вставляет или перезаписывает запись статистики по
// натуральному ключу (user_id, chat_id, week_number, year). Повторная
// генерация с тем же набором задач оставляет запись без изменений.
func (s *Storage) UpsertWeeklyStat(stat *contracts.WeeklyStat) error {
	err := s.db.QueryRow(`
		INSERT INTO weekly_stats (user_id, chat_id, week_number, year,
		                          tasks_created, tasks_completed, tasks_canceled, completion_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, chat_id, week_number, year) DO UPDATE
		SET tasks_created = EXCLUDED.tasks_created,
		    tasks_completed = EXCLUDED.tasks_completed,
		    tasks_canceled = EXCLUDED.tasks_canceled,
		    completion_rate = EXCLUDED.completion_rate
		RETURNING stat_id`,
		stat.UserID, stat.ChatID, stat.WeekNumber, stat.Year,
		stat.TasksCreated, stat.TasksCompleted, stat.TasksCanceled, stat.CompletionRate,
	).Scan(&stat.StatID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения статистики (user %d, chat %d, неделя %d/%d): %w",
			stat.UserID, stat.ChatID, stat.WeekNumber, stat.Year, err)
	}
	return nil
}
