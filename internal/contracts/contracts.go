package contracts

import (
	"errors"
	"time"
)

// TaskStatus представляет статус задачи
type TaskStatus string

const (
	StatusCreated   TaskStatus = "created"
	StatusCompleted TaskStatus = "completed"
	StatusCanceled  TaskStatus = "canceled"
)

// IsValid проверяет, что статус входит в допустимый набор
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusCreated, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Ошибки уровня домена. Транспортные слои используют их для выбора
// сообщения пользователю, не разбирая текст ошибки.
var (
	ErrNotRegistered      = errors.New("пользователь не зарегистрирован в этом чате")
	ErrWeeklyLimitReached = errors.New("достигнут максимум задач на эту неделю")
	ErrTaskNotFound       = errors.New("задача не найдена")
	ErrInvalidStatus      = errors.New("недопустимый статус задачи")
)

// User представляет пользователя в базе данных
type User struct {
	UserID           int64     `json:"user_id"`
	Username         string    `json:"username"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	RegistrationDate time.Time `json:"registration_date"`
	IsActive         bool      `json:"is_active"`
}

// DisplayName возвращает имя для отображения: username, иначе имя и фамилия
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

// Chat представляет чат в базе данных
type Chat struct {
	ChatID    int64     `json:"chat_id"`
	Title     string    `json:"title"`
	ChatType  string    `json:"chat_type"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserChat представляет членство пользователя в чате.
// Активное членство — единственное условие для создания задач в чате.
type UserChat struct {
	UserID   int64     `json:"user_id"`
	ChatID   int64     `json:"chat_id"`
	JoinedAt time.Time `json:"joined_at"`
	IsActive bool      `json:"is_active"`
}

// Task представляет задачу пользователя в чате.
// WeekNumber и Year вычисляются один раз при создании и больше не меняются.
type Task struct {
	TaskID      int64      `json:"task_id"`
	UserID      int64      `json:"user_id"`
	ChatID      int64      `json:"chat_id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	WeekNumber  int        `json:"week_number"`
	Year        int        `json:"year"`
}

// WeeklyStat представляет недельную статистику пользователя в чате.
// Запись уникальна по (user_id, chat_id, week_number, year).
type WeeklyStat struct {
	StatID         int64   `json:"stat_id"`
	UserID         int64   `json:"user_id"`
	ChatID         int64   `json:"chat_id"`
	WeekNumber     int     `json:"week_number"`
	Year           int     `json:"year"`
	TasksCreated   int     `json:"tasks_created"`
	TasksCompleted int     `json:"tasks_completed"`
	TasksCanceled  int     `json:"tasks_canceled"`
	CompletionRate float64 `json:"completion_rate"`
}

// TaskCounts содержит количества задач пользователя за неделю по статусам.
// Created — общее число задач недели, независимо от текущего статуса.
type TaskCounts struct {
	Created   int
	Completed int
	Canceled  int
}

// CreateCheck — результат проверки возможности создания задачи
type CreateCheck struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	// MinRemaining — сколько задач ещё нужно создать после этой,
	// чтобы добрать недельный минимум. 0, когда минимум уже набран.
	MinRemaining int `json:"min_remaining"`
}

// UserCompletionRate — строка рейтинга чата
type UserCompletionRate struct {
	UserID         int64   `json:"user_id"`
	DisplayName    string  `json:"display_name"`
	CompletionRate float64 `json:"completion_rate"`
}

// TaskSummary — живая сводка пользователя за текущую неделю
type TaskSummary struct {
	UserID         int64   `json:"user_id"`
	ChatID         int64   `json:"chat_id"`
	WeekNumber     int     `json:"week_number"`
	Year           int     `json:"year"`
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	CanceledTasks  int     `json:"canceled_tasks"`
	OpenTasks      int     `json:"open_tasks"`
	CompletionRate float64 `json:"completion_rate"`
	MinTasks       int     `json:"min_tasks"`
	MaxTasks       int     `json:"max_tasks"`
}

// --- Интерфейсы хранилища ---
// Сервисы зависят от этих интерфейсов, а не от конкретного Postgres-хранилища.

// UserStore — операции над пользователями, чатами и членствами
type UserStore interface {
	GetUser(userID int64) (*User, error)
	GetChat(chatID int64) (*Chat, error)
	GetActiveChats() ([]Chat, error)
	GetMembership(userID, chatID int64) (*UserChat, error)
	// GetChatUsers возвращает активных пользователей с активным членством в чате
	GetChatUsers(chatID int64) ([]User, error)
	GetUserChats(userID int64) ([]Chat, error)
	// RegisterUserInChat создаёт или обновляет пользователя и чат и
	// создаёт либо реактивирует членство, всё в одной транзакции
	RegisterUserInChat(user User, chat Chat) error
	UpdateUserProfile(user User) error
	DeactivateMembership(userID, chatID int64) error
}

// TaskStore — операции над задачами
type TaskStore interface {
	// CreateTask выполняет проверку членства и недельной квоты и вставку
	// одной критической секцией на пару (user, chat). Возвращает
	// ErrNotRegistered либо ErrWeeklyLimitReached при отказе.
	CreateTask(userID, chatID int64, description string, week, year, maxPerWeek int) (int64, error)
	GetTask(taskID int64) (*Task, error)
	GetUserTasks(userID, chatID int64, week, year int) ([]Task, error)
	CountUserTasks(userID, chatID int64, week, year int) (int, error)
	CountTasksByStatus(userID, chatID int64, week, year int) (TaskCounts, error)
	// UpdateTaskStatus возвращает ErrTaskNotFound, если задачи нет
	UpdateTaskStatus(taskID int64, status TaskStatus) error
	// DeleteTask возвращает ErrTaskNotFound, если задачи нет
	DeleteTask(taskID int64) error
}

// StatStore — операции над недельной статистикой
type StatStore interface {
	GetWeeklyStat(userID, chatID int64, week, year int) (*WeeklyStat, error)
	GetStatsHistory(userID, chatID int64, limit int) ([]WeeklyStat, error)
	// UpsertWeeklyStat вставляет или перезаписывает запись по натуральному ключу
	UpsertWeeklyStat(stat *WeeklyStat) error
}
