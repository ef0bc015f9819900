package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"TaskTrackerBot/internal/services"
)

// StatsHandler обрабатывает HTTP запросы к статистике и планировщику
type StatsHandler struct {
	statsService *services.StatisticsService
	taskService  *services.TaskService
	scheduler    *services.SchedulerService
}

// NewStatsHandler создает новый HTTP обработчик статистики
func NewStatsHandler(statsService *services.StatisticsService, taskService *services.TaskService, scheduler *services.SchedulerService) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
		taskService:  taskService,
		scheduler:    scheduler,
	}
}

// Router собирает маршруты API под JWT-авторизацией
func (h *StatsHandler) Router(jwtSecret string) *mux.Router {
	r := mux.NewRouter()
	r.Use(AuthMiddleware(jwtSecret))

	r.HandleFunc("/v1/chats/{chat_id}/rates", h.GetChatRates).Methods(http.MethodGet)
	r.HandleFunc("/v1/chats/{chat_id}/stats", h.GenerateChatStats).Methods(http.MethodPost)
	r.HandleFunc("/v1/chats/{chat_id}/users/{user_id}/history", h.GetStatsHistory).Methods(http.MethodGet)
	r.HandleFunc("/v1/chats/{chat_id}/users/{user_id}/summary", h.GetTaskSummary).Methods(http.MethodGet)
	r.HandleFunc("/v1/scheduler/jobs", h.GetSchedulerJobs).Methods(http.MethodGet)

	return r
}

// GetChatRates возвращает проценты выполнения участников чата.
// Необязательные параметры week и year задают неделю, по умолчанию текущая.
func (h *StatsHandler) GetChatRates(w http.ResponseWriter, r *http.Request) {
	chatID, err := pathInt64(r, "chat_id")
	if err != nil {
		http.Error(w, "Неверный ID чата", http.StatusBadRequest)
		return
	}
	week := queryInt(r, "week")
	year := queryInt(r, "year")

	rates, err := h.statsService.GetChatUsersCompletionRates(chatID, week, year)
	if err != nil {
		log.Printf("[HTTP] Ошибка получения рейтинга чата %d: %v", chatID, err)
		http.Error(w, "Ошибка получения статистики", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"chat_id": chatID,
		"rates":   rates,
	})
}

// GenerateChatStats принудительно пересчитывает и сохраняет снимок
// статистики чата за неделю
func (h *StatsHandler) GenerateChatStats(w http.ResponseWriter, r *http.Request) {
	chatID, err := pathInt64(r, "chat_id")
	if err != nil {
		http.Error(w, "Неверный ID чата", http.StatusBadRequest)
		return
	}
	week := queryInt(r, "week")
	year := queryInt(r, "year")

	stats, err := h.statsService.GenerateWeeklyStatsForChat(chatID, week, year)
	if err != nil {
		// Частичные сбои логируются в сервисе; успешные записи отдаём
		log.Printf("[HTTP] Генерация статистики чата %d (запросил %d) завершилась с ошибками: %v",
			chatID, getUserTelegramID(r), err)
	}

	writeJSON(w, map[string]interface{}{
		"chat_id": chatID,
		"stats":   stats,
	})
}

// GetStatsHistory возвращает историю недельной статистики пользователя в чате
func (h *StatsHandler) GetStatsHistory(w http.ResponseWriter, r *http.Request) {
	chatID, err := pathInt64(r, "chat_id")
	if err != nil {
		http.Error(w, "Неверный ID чата", http.StatusBadRequest)
		return
	}
	userID, err := pathInt64(r, "user_id")
	if err != nil {
		http.Error(w, "Неверный ID пользователя", http.StatusBadRequest)
		return
	}

	limit := queryInt(r, "limit")
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	history, err := h.statsService.GetStatsHistory(userID, chatID, limit)
	if err != nil {
		log.Printf("[HTTP] Ошибка получения истории (user %d, chat %d): %v", userID, chatID, err)
		http.Error(w, "Ошибка получения истории", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"user_id": userID,
		"chat_id": chatID,
		"history": history,
	})
}

// GetTaskSummary возвращает живую сводку пользователя за текущую неделю
func (h *StatsHandler) GetTaskSummary(w http.ResponseWriter, r *http.Request) {
	chatID, err := pathInt64(r, "chat_id")
	if err != nil {
		http.Error(w, "Неверный ID чата", http.StatusBadRequest)
		return
	}
	userID, err := pathInt64(r, "user_id")
	if err != nil {
		http.Error(w, "Неверный ID пользователя", http.StatusBadRequest)
		return
	}

	summary, err := h.taskService.GetTaskSummary(userID, chatID)
	if err != nil {
		log.Printf("[HTTP] Ошибка получения сводки (user %d, chat %d): %v", userID, chatID, err)
		http.Error(w, "Ошибка получения сводки", http.StatusInternalServerError)
		return
	}

	writeJSON(w, summary)
}

// GetSchedulerJobs возвращает зарегистрированные задания планировщика и
// время их следующего запуска
func (h *StatsHandler) GetSchedulerJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"running": h.scheduler.IsRunning(),
		"jobs":    h.scheduler.JobsInfo(),
	})
}

func pathInt64(r *http.Request, name string) (int64, error) {
	value, ok := mux.Vars(r)[name]
	if !ok {
		return 0, fmt.Errorf("параметр %s отсутствует", name)
	}
	return strconv.ParseInt(value, 10, 64)
}

func queryInt(r *http.Request, name string) int {
	if value := r.URL.Query().Get(name); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return 0
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[HTTP] Ошибка сериализации ответа: %v", err)
	}
}
