package services

import (
	"fmt"
	"sort"
	"sync"

	"TaskTrackerBot/internal/contracts"
)

type memKey struct {
	userID int64
	chatID int64
}

// memoryStore — потокобезопасная реализация всех интерфейсов хранилища в
// памяти. Проверка квоты в CreateTask выполняется под общим мьютексом, как
// в настоящем хранилище под блокировкой строки членства.
type memoryStore struct {
	mu          sync.Mutex
	users       map[int64]contracts.User
	chats       map[int64]contracts.Chat
	memberships map[memKey]contracts.UserChat
	tasks       map[int64]contracts.Task
	stats       map[string]contracts.WeeklyStat
	nextTaskID  int64
	nextStatID  int64

	// чаты, для которых GetChatUsers возвращает ошибку
	brokenChats map[int64]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:       make(map[int64]contracts.User),
		chats:       make(map[int64]contracts.Chat),
		memberships: make(map[memKey]contracts.UserChat),
		tasks:       make(map[int64]contracts.Task),
		stats:       make(map[string]contracts.WeeklyStat),
		brokenChats: make(map[int64]error),
	}
}

func statKey(userID, chatID int64, week, year int) string {
	return fmt.Sprintf("%d/%d/%d/%d", userID, chatID, week, year)
}

func (m *memoryStore) GetUser(userID int64) (*contracts.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		return &u, nil
	}
	return nil, nil
}

func (m *memoryStore) GetChat(chatID int64) (*contracts.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chats[chatID]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *memoryStore) GetActiveChats() ([]contracts.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chats []contracts.Chat
	for _, c := range m.chats {
		if c.IsActive {
			chats = append(chats, c)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ChatID < chats[j].ChatID })
	return chats, nil
}

func (m *memoryStore) GetMembership(userID, chatID int64) (*contracts.UserChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uc, ok := m.memberships[memKey{userID, chatID}]; ok {
		return &uc, nil
	}
	return nil, nil
}

func (m *memoryStore) GetChatUsers(chatID int64) ([]contracts.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.brokenChats[chatID]; ok {
		return nil, err
	}
	var users []contracts.User
	for key, uc := range m.memberships {
		if key.chatID != chatID || !uc.IsActive {
			continue
		}
		if u, ok := m.users[key.userID]; ok && u.IsActive {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users, nil
}

func (m *memoryStore) GetUserChats(userID int64) ([]contracts.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chats []contracts.Chat
	for key, uc := range m.memberships {
		if key.userID != userID || !uc.IsActive {
			continue
		}
		if c, ok := m.chats[key.chatID]; ok {
			chats = append(chats, c)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ChatID < chats[j].ChatID })
	return chats, nil
}

func (m *memoryStore) RegisterUserInChat(user contracts.User, chat contracts.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UserID] = user
	m.chats[chat.ChatID] = chat
	m.memberships[memKey{user.UserID, chat.ChatID}] = contracts.UserChat{
		UserID:   user.UserID,
		ChatID:   chat.ChatID,
		IsActive: true,
	}
	return nil
}

func (m *memoryStore) UpdateUserProfile(user contracts.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UserID] = user
	return nil
}

func (m *memoryStore) DeactivateMembership(userID, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey{userID, chatID}
	if uc, ok := m.memberships[key]; ok {
		uc.IsActive = false
		m.memberships[key] = uc
	}
	return nil
}

func (m *memoryStore) CreateTask(userID, chatID int64, description string, week, year, maxPerWeek int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uc, ok := m.memberships[memKey{userID, chatID}]
	if !ok || !uc.IsActive {
		return 0, contracts.ErrNotRegistered
	}

	count := 0
	for _, t := range m.tasks {
		if t.UserID == userID && t.ChatID == chatID && t.WeekNumber == week && t.Year == year {
			count++
		}
	}
	if count >= maxPerWeek {
		return 0, contracts.ErrWeeklyLimitReached
	}

	m.nextTaskID++
	m.tasks[m.nextTaskID] = contracts.Task{
		TaskID:      m.nextTaskID,
		UserID:      userID,
		ChatID:      chatID,
		Description: description,
		Status:      contracts.StatusCreated,
		WeekNumber:  week,
		Year:        year,
	}
	return m.nextTaskID, nil
}

func (m *memoryStore) GetTask(taskID int64) (*contracts.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[taskID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memoryStore) GetUserTasks(userID, chatID int64, week, year int) ([]contracts.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tasks []contracts.Task
	for _, t := range m.tasks {
		if t.UserID == userID && t.ChatID == chatID && t.WeekNumber == week && t.Year == year {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].TaskID < tasks[j].TaskID })
	return tasks, nil
}

func (m *memoryStore) CountUserTasks(userID, chatID int64, week, year int) (int, error) {
	tasks, err := m.GetUserTasks(userID, chatID, week, year)
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}

func (m *memoryStore) CountTasksByStatus(userID, chatID int64, week, year int) (contracts.TaskCounts, error) {
	tasks, err := m.GetUserTasks(userID, chatID, week, year)
	if err != nil {
		return contracts.TaskCounts{}, err
	}
	counts := contracts.TaskCounts{Created: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case contracts.StatusCompleted:
			counts.Completed++
		case contracts.StatusCanceled:
			counts.Canceled++
		}
	}
	return counts, nil
}

func (m *memoryStore) UpdateTaskStatus(taskID int64, status contracts.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return contracts.ErrTaskNotFound
	}
	t.Status = status
	m.tasks[taskID] = t
	return nil
}

func (m *memoryStore) DeleteTask(taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return contracts.ErrTaskNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

func (m *memoryStore) GetWeeklyStat(userID, chatID int64, week, year int) (*contracts.WeeklyStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[statKey(userID, chatID, week, year)]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *memoryStore) GetStatsHistory(userID, chatID int64, limit int) ([]contracts.WeeklyStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var history []contracts.WeeklyStat
	for _, s := range m.stats {
		if s.UserID == userID && s.ChatID == chatID {
			history = append(history, s)
		}
	}
	sort.Slice(history, func(i, j int) bool {
		if history[i].Year != history[j].Year {
			return history[i].Year > history[j].Year
		}
		return history[i].WeekNumber > history[j].WeekNumber
	})
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (m *memoryStore) UpsertWeeklyStat(stat *contracts.WeeklyStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := statKey(stat.UserID, stat.ChatID, stat.WeekNumber, stat.Year)
	if existing, ok := m.stats[key]; ok {
		stat.StatID = existing.StatID
	} else {
		m.nextStatID++
		stat.StatID = m.nextStatID
	}
	m.stats[key] = *stat
	return nil
}

// register — регистрация пользователя в чате одним вызовом
func (m *memoryStore) register(userID int64, username string, chatID int64) {
	_ = m.RegisterUserInChat(
		contracts.User{UserID: userID, Username: username, IsActive: true},
		contracts.Chat{ChatID: chatID, Title: "test chat", ChatType: "group", IsActive: true},
	)
}
