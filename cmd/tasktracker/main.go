package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"TaskTrackerBot/internal/config"
	"TaskTrackerBot/internal/handlers"
	"TaskTrackerBot/internal/services"
	"TaskTrackerBot/internal/storage"
	"TaskTrackerBot/internal/telegram"

	"github.com/jonboulle/clockwork"
	"github.com/pressly/goose/v3"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.Load()

	if cfg.Telegram.Token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN не задан в переменных окружения")
	}

	loc, err := cfg.Schedule.Location()
	if err != nil {
		log.Fatalf("Ошибка загрузки часового пояса: %v", err)
	}

	// Подключаемся к базе данных
	db, err := storage.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Ошибка подключения к Postgres: %v", err)
	}
	defer db.Close()

	// Применяем миграции
	if err := goose.Up(db, "internal/migrations"); err != nil {
		log.Fatalf("Ошибка применения миграций: %v", err)
	}

	store := storage.New(db)
	clock := clockwork.NewRealClock()

	// Инициализируем сервисы
	userService := services.NewUserService(store)
	taskService := services.NewTaskService(store, store, cfg.Tasks.MinPerWeek, cfg.Tasks.MaxPerWeek, clock)
	statsService := services.NewStatisticsService(store, store, store, clock)
	log.Printf("Сервисы инициализированы, лимит задач: %d-%d в неделю", cfg.Tasks.MinPerWeek, cfg.Tasks.MaxPerWeek)

	// Настраиваем планировщик еженедельных заданий
	scheduler := services.NewSchedulerService(clock, loc)
	scheduler.AddJob("weekly_task_reset", cfg.Schedule.ResetDay, cfg.Schedule.ResetHour, cfg.Schedule.ResetMinute, func() error {
		return statsService.ResetWeeklyTasks()
	})
	scheduler.AddJob("weekly_stats_generation", cfg.Schedule.StatsDay, cfg.Schedule.StatsHour, cfg.Schedule.StatsMinute, func() error {
		_, err := statsService.GenerateWeeklyStatsForAllChats(0, 0)
		return err
	})
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Ошибка запуска планировщика: %v", err)
	}

	// Инициализируем Telegram бота
	mode := telegram.ModePolling
	if cfg.Telegram.Mode == "webhook" {
		mode = telegram.ModeWebhook
	}

	webhookPort, err := strconv.Atoi(cfg.Telegram.WebhookPort)
	if err != nil {
		log.Fatalf("Неверный TELEGRAM_WEBHOOK_PORT: %v", err)
	}

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:       cfg.Telegram.Token,
		Mode:        mode,
		WebhookURL:  cfg.Telegram.WebhookURL,
		WebhookPort: webhookPort,
	})
	if err != nil {
		log.Fatalf("Ошибка создания Telegram бота: %v", err)
	}

	messageProcessor := telegram.NewMessageProcessor(userService, taskService, statsService, scheduler)
	bot.AddHandler(messageProcessor.ProcessMessage)

	if err := bot.Start(); err != nil {
		log.Fatalf("Ошибка запуска Telegram бота: %v", err)
	}
	log.Printf("Telegram бот запущен в режиме: %s", bot.GetMode())

	// Настраиваем HTTP API
	statsHandler := handlers.NewStatsHandler(statsService, taskService, scheduler)
	server := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: statsHandler.Router(cfg.HTTP.JWTSecret),
	}

	go func() {
		log.Printf("HTTP API запущен на :%s", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	// Ожидаем сигнала для завершения
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	<-signalChan

	log.Println("Сервер завершает работу")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка остановки HTTP сервера: %v", err)
	}

	if err := bot.Stop(); err != nil {
		log.Printf("Ошибка остановки бота: %v", err)
	}

	if err := scheduler.Stop(); err != nil {
		log.Printf("Ошибка остановки планировщика: %v", err)
	}

	log.Println("Сервер успешно завершил работу")
}
