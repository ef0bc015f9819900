package services

import (
	"fmt"
	"log"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"

	"TaskTrackerBot/internal/contracts"
)

// StatisticsService считает, сохраняет и отдаёт недельную статистику
// выполнения задач
type StatisticsService struct {
	tasks contracts.TaskStore
	users contracts.UserStore
	stats contracts.StatStore
	clock clockwork.Clock
}

// NewStatisticsService создает новый сервис статистики
func NewStatisticsService(tasks contracts.TaskStore, users contracts.UserStore, stats contracts.StatStore, clock clockwork.Clock) *StatisticsService {
	return &StatisticsService{
		tasks: tasks,
		users: users,
		stats: stats,
		clock: clock,
	}
}

// computeStat считает статистику одного пользователя из строк задач
func (s *StatisticsService) computeStat(userID, chatID int64, week, year int) (*contracts.WeeklyStat, error) {
	counts, err := s.tasks.CountTasksByStatus(userID, chatID, week, year)
	if err != nil {
		return nil, err
	}

	rate := 0.0
	if counts.Created > 0 {
		rate = float64(counts.Completed) / float64(counts.Created)
	}

	return &contracts.WeeklyStat{
		UserID:         userID,
		ChatID:         chatID,
		WeekNumber:     week,
		Year:           year,
		TasksCreated:   counts.Created,
		TasksCompleted: counts.Completed,
		TasksCanceled:  counts.Canceled,
		CompletionRate: rate,
	}, nil
}

// GenerateWeeklyStatsForChat пересчитывает и сохраняет статистику всех
// активных участников чата за неделю. Нулевые week/year — текущая неделя.
// Сбой по одному участнику не прерывает остальных: его ошибка попадает в
// суммарную, а успешные записи всё равно сохраняются и возвращаются.
func (s *StatisticsService) GenerateWeeklyStatsForChat(chatID int64, week, year int) ([]contracts.WeeklyStat, error) {
	week, year = weekOrCurrent(week, year, s.clock.Now())

	users, err := s.users.GetChatUsers(chatID)
	if err != nil {
		log.Printf("[StatsService] Ошибка получения участников чата %d: %v", chatID, err)
		return nil, fmt.Errorf("ошибка получения участников чата %d: %w", chatID, err)
	}

	var result []contracts.WeeklyStat
	var errs error
	for _, user := range users {
		stat, err := s.computeStat(user.UserID, chatID, week, year)
		if err != nil {
			log.Printf("[StatsService] Ошибка расчёта статистики (user %d, chat %d, неделя %d/%d): %v",
				user.UserID, chatID, week, year, err)
			errs = multierr.Append(errs, err)
			continue
		}
		if err := s.stats.UpsertWeeklyStat(stat); err != nil {
			log.Printf("[StatsService] Ошибка сохранения статистики (user %d, chat %d, неделя %d/%d): %v",
				user.UserID, chatID, week, year, err)
			errs = multierr.Append(errs, err)
			continue
		}
		result = append(result, *stat)
	}

	log.Printf("[StatsService] Статистика чата %d за неделю %d/%d: %d записей", chatID, week, year, len(result))
	return result, errs
}

// GenerateWeeklyStatsForAllChats пересчитывает статистику всех активных
// чатов. Сбой по одному чату не прерывает обработку остальных.
func (s *StatisticsService) GenerateWeeklyStatsForAllChats(week, year int) (map[int64][]contracts.WeeklyStat, error) {
	week, year = weekOrCurrent(week, year, s.clock.Now())

	chats, err := s.users.GetActiveChats()
	if err != nil {
		log.Printf("[StatsService] Ошибка получения активных чатов: %v", err)
		return nil, fmt.Errorf("ошибка получения активных чатов: %w", err)
	}

	results := make(map[int64][]contracts.WeeklyStat)
	var errs error
	for _, chat := range chats {
		stats, err := s.GenerateWeeklyStatsForChat(chat.ChatID, week, year)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("чат %d: %w", chat.ChatID, err))
		}
		if stats != nil {
			results[chat.ChatID] = stats
		}
	}

	log.Printf("[StatsService] Генерация статистики за неделю %d/%d завершена: %d чатов", week, year, len(results))
	return results, errs
}

// GetWeeklyStat возвращает сохранённую статистику пользователя за неделю.
// Нулевые week/year — текущая неделя. Если записи нет, возвращается nil.
func (s *StatisticsService) GetWeeklyStat(userID, chatID int64, week, year int) (*contracts.WeeklyStat, error) {
	week, year = weekOrCurrent(week, year, s.clock.Now())
	return s.stats.GetWeeklyStat(userID, chatID, week, year)
}

// GetStatsHistory возвращает историю статистики пользователя в чате,
// от последних недель к ранним, не больше limit записей
func (s *StatisticsService) GetStatsHistory(userID, chatID int64, limit int) ([]contracts.WeeklyStat, error) {
	return s.stats.GetStatsHistory(userID, chatID, limit)
}

// GetChatUsersCompletionRates возвращает процент выполнения каждого
// активного участника чата. Берёт сохранённый снимок, а при его
// отсутствии считает на лету из задач, ничего не сохраняя: вызов
// безопасен для "живых" запросов и не трогает авторитетный снимок.
func (s *StatisticsService) GetChatUsersCompletionRates(chatID int64, week, year int) ([]contracts.UserCompletionRate, error) {
	week, year = weekOrCurrent(week, year, s.clock.Now())

	users, err := s.users.GetChatUsers(chatID)
	if err != nil {
		log.Printf("[StatsService] Ошибка получения участников чата %d: %v", chatID, err)
		return nil, fmt.Errorf("ошибка получения участников чата %d: %w", chatID, err)
	}

	var result []contracts.UserCompletionRate
	for _, user := range users {
		rate := 0.0

		stat, err := s.stats.GetWeeklyStat(user.UserID, chatID, week, year)
		if err != nil {
			log.Printf("[StatsService] Ошибка чтения статистики (user %d, chat %d): %v", user.UserID, chatID, err)
		}
		switch {
		case stat != nil:
			if stat.TasksCreated > 0 {
				rate = float64(stat.TasksCompleted) / float64(stat.TasksCreated)
			}
		default:
			live, err := s.computeStat(user.UserID, chatID, week, year)
			if err != nil {
				log.Printf("[StatsService] Ошибка расчёта на лету (user %d, chat %d): %v", user.UserID, chatID, err)
			} else {
				rate = live.CompletionRate
			}
		}

		result = append(result, contracts.UserCompletionRate{
			UserID:         user.UserID,
			DisplayName:    user.DisplayName(),
			CompletionRate: rate,
		})
	}
	return result, nil
}

// ResetWeeklyTasks снимает статистику закончившейся недели по всем чатам.
// Вызывается планировщиком на границе недель, поэтому неделя берётся по
// вчерашнему дню: в понедельник 00:00 это как раз закрытая неделя.
// Сами задачи не очищаются — запросы и так ограничены неделей, а история
// остаётся доступной по исходным номерам недель.
func (s *StatisticsService) ResetWeeklyTasks() error {
	endedAt := s.clock.Now().AddDate(0, 0, -1)
	week, year := WeekOf(endedAt)

	log.Printf("[StatsService] Недельный сброс: снимок статистики за неделю %d/%d", week, year)
	_, err := s.GenerateWeeklyStatsForAllChats(week, year)
	if err != nil {
		log.Printf("[StatsService] Недельный сброс завершён с ошибками: %v", err)
		return err
	}

	log.Println("[StatsService] Недельный сброс завершён")
	return nil
}
