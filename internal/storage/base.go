package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

// Storage — слой доступа к данным поверх Postgres.
// Все SQL-запросы приложения живут в этом пакете.
type Storage struct {
	db *sql.DB
}

// New создаёт хранилище поверх готового подключения
func New(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Connect открывает подключение к Postgres и проверяет его доступность.
// Пинг повторяется с фибоначчи-бэкоффом: при старте в docker-compose база
// может подниматься дольше приложения.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("POSTGRES_DSN не задан")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к Postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backoff := retry.WithMaxRetries(6, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := db.PingContext(ctx); pingErr != nil {
			log.Printf("[Storage] База данных недоступна, повтор: %v", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка проверки соединения с Postgres: %w", err)
	}

	log.Println("[Storage] Подключение к Postgres установлено")
	return db, nil
}
