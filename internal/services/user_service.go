package services

import (
	"fmt"
	"log"

	"TaskTrackerBot/internal/contracts"
)

// UserService предоставляет методы для регистрации пользователей в чатах
type UserService struct {
	store contracts.UserStore
}

// NewUserService создает новый сервис пользователей
func NewUserService(store contracts.UserStore) *UserService {
	return &UserService{store: store}
}

// RegisterUser регистрирует пользователя в чате: сохраняет профиль,
// сохраняет чат и создаёт либо реактивирует членство
func (s *UserService) RegisterUser(userID int64, username, firstName, lastName string, chatID int64, chatTitle, chatType string) error {
	if chatTitle == "" {
		// У личных чатов нет заголовка
		chatTitle = firstName
	}

	user := contracts.User{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  true,
	}
	chat := contracts.Chat{
		ChatID:   chatID,
		Title:    chatTitle,
		ChatType: chatType,
		IsActive: true,
	}

	if err := s.store.RegisterUserInChat(user, chat); err != nil {
		log.Printf("[UserService] Ошибка регистрации пользователя %d в чате %d: %v", userID, chatID, err)
		return fmt.Errorf("ошибка регистрации: %w", err)
	}

	log.Printf("[UserService] Пользователь %d зарегистрирован в чате %d", userID, chatID)
	return nil
}

// GetUser получает пользователя по ID
func (s *UserService) GetUser(userID int64) (*contracts.User, error) {
	return s.store.GetUser(userID)
}

// GetUserChats возвращает активные чаты пользователя
func (s *UserService) GetUserChats(userID int64) ([]contracts.Chat, error) {
	return s.store.GetUserChats(userID)
}

// IsRegistered проверяет активное членство пользователя в чате
func (s *UserService) IsRegistered(userID, chatID int64) (bool, error) {
	uc, err := s.store.GetMembership(userID, chatID)
	if err != nil {
		return false, err
	}
	return uc != nil && uc.IsActive, nil
}

// UpdateProfile обновляет поля профиля пользователя, если он уже известен.
// Вызывается на каждом входящем событии: имя или username в Telegram
// могли смениться с прошлого визита.
func (s *UserService) UpdateProfile(userID int64, username, firstName, lastName string) error {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	if user.Username == username && user.FirstName == firstName && user.LastName == lastName {
		return nil
	}

	user.Username = username
	user.FirstName = firstName
	user.LastName = lastName
	if err := s.store.UpdateUserProfile(*user); err != nil {
		log.Printf("[UserService] Ошибка обновления профиля пользователя %d: %v", userID, err)
		return err
	}
	return nil
}

// LeaveChat деактивирует членство пользователя в чате.
// Запись остаётся: история задач и статистики сохраняется.
func (s *UserService) LeaveChat(userID, chatID int64) error {
	return s.store.DeactivateMembership(userID, chatID)
}
