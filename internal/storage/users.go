package storage

import (
	"database/sql"
	"fmt"
	"log"

	"TaskTrackerBot/internal/contracts"
)

// GetUser получает пользователя по его Telegram ID
func (s *Storage) GetUser(userID int64) (*contracts.User, error) {
	query := `SELECT user_id, username, first_name, last_name, registration_date, is_active
			  FROM users WHERE user_id = $1`

	var user contracts.User
	err := s.db.QueryRow(query, userID).Scan(
		&user.UserID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.RegistrationDate,
		&user.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса пользователя %d: %w", userID, err)
	}
	return &user, nil
}

// GetChat получает чат по его Telegram ID
func (s *Storage) GetChat(chatID int64) (*contracts.Chat, error) {
	query := `SELECT chat_id, title, chat_type, is_active, created_at
			  FROM chats WHERE chat_id = $1`

	var chat contracts.Chat
	err := s.db.QueryRow(query, chatID).Scan(
		&chat.ChatID,
		&chat.Title,
		&chat.ChatType,
		&chat.IsActive,
		&chat.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса чата %d: %w", chatID, err)
	}
	return &chat, nil
}

// GetActiveChats возвращает все активные чаты
func (s *Storage) GetActiveChats() ([]contracts.Chat, error) {
	rows, err := s.db.Query(`SELECT chat_id, title, chat_type, is_active, created_at
							 FROM chats WHERE is_active = TRUE ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса активных чатов: %w", err)
	}
	defer rows.Close()

	var chats []contracts.Chat
	for rows.Next() {
		var chat contracts.Chat
		if err := rows.Scan(&chat.ChatID, &chat.Title, &chat.ChatType, &chat.IsActive, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования чата: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// GetMembership получает запись членства пользователя в чате
func (s *Storage) GetMembership(userID, chatID int64) (*contracts.UserChat, error) {
	query := `SELECT user_id, chat_id, joined_at, is_active
			  FROM user_chats WHERE user_id = $1 AND chat_id = $2`

	var uc contracts.UserChat
	err := s.db.QueryRow(query, userID, chatID).Scan(&uc.UserID, &uc.ChatID, &uc.JoinedAt, &uc.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса членства (user %d, chat %d): %w", userID, chatID, err)
	}
	return &uc, nil
}

// GetChatUsers возвращает активных пользователей с активным членством в чате
func (s *Storage) GetChatUsers(chatID int64) ([]contracts.User, error) {
	rows, err := s.db.Query(`
		SELECT u.user_id, u.username, u.first_name, u.last_name, u.registration_date, u.is_active
		FROM users u
		JOIN user_chats uc ON u.user_id = uc.user_id
		WHERE uc.chat_id = $1 AND uc.is_active = TRUE AND u.is_active = TRUE
		ORDER BY uc.joined_at`, chatID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса пользователей чата %d: %w", chatID, err)
	}
	defer rows.Close()

	var users []contracts.User
	for rows.Next() {
		var u contracts.User
		if err := rows.Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastName, &u.RegistrationDate, &u.IsActive); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя чата %d: %w", chatID, err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUserChats возвращает активные чаты, в которых состоит пользователь
func (s *Storage) GetUserChats(userID int64) ([]contracts.Chat, error) {
	rows, err := s.db.Query(`
		SELECT c.chat_id, c.title, c.chat_type, c.is_active, c.created_at
		FROM chats c
		JOIN user_chats uc ON c.chat_id = uc.chat_id
		WHERE uc.user_id = $1 AND uc.is_active = TRUE AND c.is_active = TRUE
		ORDER BY uc.joined_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса чатов пользователя %d: %w", userID, err)
	}
	defer rows.Close()

	var chats []contracts.Chat
	for rows.Next() {
		var chat contracts.Chat
		if err := rows.Scan(&chat.ChatID, &chat.Title, &chat.ChatType, &chat.IsActive, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования чата пользователя %d: %w", userID, err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// RegisterUserInChat создаёт или обновляет пользователя и чат и создаёт либо
// реактивирует членство. Всё выполняется в одной транзакции: регистрация
// не должна оставлять пользователя без членства при сбое на полпути.
func (s *Storage) RegisterUserInChat(user contracts.User, chat contracts.Chat) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции регистрации: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO users (user_id, username, first_name, last_name, registration_date, is_active)
		VALUES ($1, $2, $3, $4, NOW(), TRUE)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    is_active = TRUE`,
		user.UserID, user.Username, user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("ошибка сохранения пользователя %d: %w", user.UserID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO chats (chat_id, title, chat_type, is_active, created_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT (chat_id) DO UPDATE
		SET title = EXCLUDED.title,
		    chat_type = EXCLUDED.chat_type,
		    is_active = TRUE`,
		chat.ChatID, chat.Title, chat.ChatType)
	if err != nil {
		return fmt.Errorf("ошибка сохранения чата %d: %w", chat.ChatID, err)
	}

	// joined_at сохраняется с первой регистрации, реактивация его не трогает
	_, err = tx.Exec(`
		INSERT INTO user_chats (user_id, chat_id, joined_at, is_active)
		VALUES ($1, $2, NOW(), TRUE)
		ON CONFLICT (user_id, chat_id) DO UPDATE
		SET is_active = TRUE`,
		user.UserID, chat.ChatID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения членства (user %d, chat %d): %w", user.UserID, chat.ChatID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции регистрации: %w", err)
	}

	log.Printf("[Storage] Пользователь %d зарегистрирован в чате %d", user.UserID, chat.ChatID)
	return nil
}

// UpdateUserProfile обновляет поля профиля существующего пользователя
func (s *Storage) UpdateUserProfile(user contracts.User) error {
	res, err := s.db.Exec(`
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4
		WHERE user_id = $1`,
		user.UserID, user.Username, user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("ошибка обновления профиля пользователя %d: %w", user.UserID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("пользователь %d не найден", user.UserID)
	}
	return nil
}

// DeactivateMembership помечает членство неактивным, не удаляя запись
func (s *Storage) DeactivateMembership(userID, chatID int64) error {
	_, err := s.db.Exec(`UPDATE user_chats SET is_active = FALSE WHERE user_id = $1 AND chat_id = $2`,
		userID, chatID)
	if err != nil {
		return fmt.Errorf("ошибка деактивации членства (user %d, chat %d): %w", userID, chatID, err)
	}
	return nil
}
