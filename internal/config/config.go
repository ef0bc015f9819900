package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит конфигурацию приложения
type Config struct {
	Database DatabaseConfig
	Telegram TelegramConfig
	HTTP     HTTPConfig
	Tasks    TasksConfig
	Schedule ScheduleConfig
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	DSN string
}

// TelegramConfig содержит конфигурацию Telegram бота
type TelegramConfig struct {
	Token       string
	Mode        string
	WebhookURL  string
	WebhookPort string
}

// HTTPConfig содержит конфигурацию HTTP API
type HTTPConfig struct {
	Port      string
	JWTSecret string
}

// TasksConfig содержит недельные лимиты задач
type TasksConfig struct {
	MinPerWeek int
	MaxPerWeek int
}

// ScheduleConfig содержит расписание периодических заданий
type ScheduleConfig struct {
	Timezone    string
	ResetDay    time.Weekday
	ResetHour   int
	ResetMinute int
	StatsDay    time.Weekday
	StatsHour   int
	StatsMinute int
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN: getDSN(),
		},
		Telegram: TelegramConfig{
			Token:       getEnvOrDefault("TELEGRAM_BOT_TOKEN", ""),
			Mode:        getEnvOrDefault("TELEGRAM_BOT_MODE", "polling"),
			WebhookURL:  getEnvOrDefault("TELEGRAM_WEBHOOK_URL", ""),
			WebhookPort: getEnvOrDefault("TELEGRAM_WEBHOOK_PORT", "8080"),
		},
		HTTP: HTTPConfig{
			Port:      getEnvOrDefault("HTTP_PORT", "25566"),
			JWTSecret: getEnvOrDefault("API_JWT_SECRET", ""),
		},
		Tasks: TasksConfig{
			MinPerWeek: getEnvAsInt("MIN_TASKS_PER_WEEK", 3),
			MaxPerWeek: getEnvAsInt("MAX_TASKS_PER_WEEK", 5),
		},
		Schedule: ScheduleConfig{
			Timezone:    getEnvOrDefault("TIMEZONE", "Europe/Moscow"),
			ResetDay:    getEnvAsWeekday("WEEKLY_RESET_DAY", time.Monday),
			ResetHour:   getEnvAsInt("WEEKLY_RESET_HOUR", 0),
			ResetMinute: getEnvAsInt("WEEKLY_RESET_MINUTE", 0),
			StatsDay:    getEnvAsWeekday("WEEKLY_STATS_DAY", time.Friday),
			StatsHour:   getEnvAsInt("WEEKLY_STATS_HOUR", 17),
			StatsMinute: getEnvAsInt("WEEKLY_STATS_MINUTE", 0),
		},
	}
}

// Location возвращает часовой пояс расписания
func (c ScheduleConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("неизвестный часовой пояс %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// getDSN формирует строку подключения к базе данных
func getDSN() string {
	// Сначала проверяем переменную окружения с готовым DSN
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}

	// Если переменная не задана, формируем DSN из отдельных параметров
	host := getEnvOrDefault("POSTGRES_HOST", "localhost")
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	user := getEnvOrDefault("POSTGRES_USER", "taskbot_user")
	password := getEnvOrDefault("POSTGRES_PASSWORD", "taskbot_password")
	dbname := getEnvOrDefault("POSTGRES_DB", "taskbot")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbname)
}

// getEnvOrDefault получает значение переменной окружения или возвращает значение по умолчанию
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int или возвращает значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsWeekday получает значение переменной окружения как день недели
// ("monday" ... "sunday") или возвращает значение по умолчанию
func getEnvAsWeekday(key string, defaultValue time.Weekday) time.Weekday {
	if value := os.Getenv(key); value != "" {
		if day, err := ParseWeekday(value); err == nil {
			return day
		}
	}
	return defaultValue
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday разбирает английское название дня недели без учёта регистра
func ParseWeekday(value string) (time.Weekday, error) {
	if day, ok := weekdays[strings.ToLower(strings.TrimSpace(value))]; ok {
		return day, nil
	}
	return 0, fmt.Errorf("неизвестный день недели: %q", value)
}
