package telegram

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"TaskTrackerBot/internal/contracts"
	"TaskTrackerBot/internal/services"
)

// MessageProcessor обрабатывает сообщения Telegram бота
type MessageProcessor struct {
	userService      *services.UserService
	taskService      *services.TaskService
	statsService     *services.StatisticsService
	schedulerService *services.SchedulerService
}

// NewMessageProcessor создает новый обработчик сообщений
func NewMessageProcessor(
	userService *services.UserService,
	taskService *services.TaskService,
	statsService *services.StatisticsService,
	schedulerService *services.SchedulerService,
) *MessageProcessor {
	return &MessageProcessor{
		userService:      userService,
		taskService:      taskService,
		statsService:     statsService,
		schedulerService: schedulerService,
	}
}

// ProcessMessage обрабатывает входящее сообщение
func (p *MessageProcessor) ProcessMessage(client *Client, update Update) error {
	// Обрабатываем только текстовые сообщения
	if update.Message == nil || update.Message.Text == "" {
		return nil
	}

	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if msg.From.IsBot {
		return nil
	}

	log.Printf("[MessageProcessor] Обработка сообщения от пользователя %d (%s) в чате %d: %s",
		userID, msg.From.Username, chatID, text)

	// Обновляем профиль зарегистрированного пользователя при каждом сообщении
	if err := p.userService.UpdateProfile(userID, msg.From.Username, msg.From.FirstName, msg.From.LastName); err != nil {
		log.Printf("[MessageProcessor] Ошибка обновления профиля пользователя %d: %v", userID, err)
	}

	if !strings.HasPrefix(text, "/") {
		return nil
	}

	return p.handleCommand(client, msg, text)
}

// handleCommand обрабатывает команды
func (p *MessageProcessor) handleCommand(client *Client, msg *Message, text string) error {
	parts := strings.SplitN(text, " ", 2)
	command := strings.ToLower(parts[0])
	// В группах команды приходят с упоминанием бота: /newtask@MyBot
	if at := strings.Index(command, "@"); at != -1 {
		command = command[:at]
	}
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	chatID := msg.Chat.ID
	userID := msg.From.ID

	switch command {
	case "/start":
		return p.handleStartCommand(client, msg)
	case "/help":
		return p.handleHelpCommand(client, chatID)
	case "/newtask":
		return p.handleNewTaskCommand(client, msg, args)
	case "/tasks":
		return p.handleTasksCommand(client, chatID, userID)
	case "/done":
		return p.handleStatusCommand(client, chatID, args, contracts.StatusCompleted)
	case "/cancel":
		return p.handleStatusCommand(client, chatID, args, contracts.StatusCanceled)
	case "/reopen":
		return p.handleStatusCommand(client, chatID, args, contracts.StatusCreated)
	case "/delete":
		return p.handleDeleteCommand(client, chatID, args)
	case "/stats":
		return p.handleStatsCommand(client, chatID, userID)
	case "/chatstats":
		return p.handleChatStatsCommand(client, chatID)
	case "/history":
		return p.handleHistoryCommand(client, chatID, userID)
	case "/next":
		return p.handleNextCommand(client, chatID)
	default:
		return p.sendMessage(client, chatID, fmt.Sprintf("Неизвестная команда: %s\nИспользуйте /help для получения справки", command))
	}
}

// handleStartCommand обрабатывает команду /start
func (p *MessageProcessor) handleStartCommand(client *Client, msg *Message) error {
	err := p.userService.RegisterUser(
		msg.From.ID,
		msg.From.Username,
		msg.From.FirstName,
		msg.From.LastName,
		msg.Chat.ID,
		msg.Chat.Title,
		msg.Chat.Type,
	)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка регистрации пользователя %d в чате %d: %v", msg.From.ID, msg.Chat.ID, err)
		return p.sendErrorMessage(client, msg.Chat.ID, "Не удалось выполнить регистрацию, попробуйте позже")
	}

	name := msg.From.FirstName
	if name == "" {
		name = msg.From.Username
	}

	message := fmt.Sprintf(`👋 <b>Привет, %s!</b>

Я помогаю вести еженедельные задачи.

📝 Каждую неделю нужно запланировать от %d до %d задач.
Новая неделя начинается в понедельник.

Используйте /help для списка команд.`, name, p.taskService.MinPerWeek(), p.taskService.MaxPerWeek())

	return p.sendMessageHTML(client, msg.Chat.ID, message)
}

// handleHelpCommand обрабатывает команду /help
func (p *MessageProcessor) handleHelpCommand(client *Client, chatID int64) error {
	message := fmt.Sprintf(`📚 <b>Справка по командам:</b>

/start - Регистрация в этом чате
/newtask &lt;описание&gt; - Создать задачу на текущую неделю
/tasks - Показать задачи текущей недели
/done &lt;id&gt; - Отметить задачу выполненной
/cancel &lt;id&gt; - Отменить задачу
/reopen &lt;id&gt; - Вернуть задачу в работу
/delete &lt;id&gt; - Удалить задачу
/stats - Моя статистика за текущую неделю
/chatstats - Статистика всех участников чата
/history - История моих недель
/next - Время следующих автоматических запусков

📝 Лимит: от %d до %d задач в неделю.`, p.taskService.MinPerWeek(), p.taskService.MaxPerWeek())

	return p.sendMessageHTML(client, chatID, message)
}

// handleNewTaskCommand обрабатывает команду /newtask
func (p *MessageProcessor) handleNewTaskCommand(client *Client, msg *Message, description string) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if description == "" {
		return p.sendMessage(client, chatID, "Укажите описание задачи: /newtask <описание>")
	}

	check, err := p.taskService.CanCreateTask(userID, chatID)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка проверки лимита для пользователя %d: %v", userID, err)
		return p.sendErrorMessage(client, chatID, "Не удалось проверить лимит задач")
	}
	if !check.Allowed {
		return p.sendMessage(client, chatID, "❌ "+check.Reason)
	}

	taskID, err := p.taskService.CreateTask(userID, chatID, description)
	if err != nil {
		switch {
		case errors.Is(err, contracts.ErrNotRegistered):
			return p.sendMessage(client, chatID, "❌ Вы не зарегистрированы в этом чате. Отправьте /start")
		case errors.Is(err, contracts.ErrWeeklyLimitReached):
			return p.sendMessage(client, chatID, fmt.Sprintf("❌ Достигнут максимум задач на неделю (%d)", p.taskService.MaxPerWeek()))
		default:
			log.Printf("[MessageProcessor] Ошибка создания задачи для пользователя %d: %v", userID, err)
			return p.sendErrorMessage(client, chatID, "Не удалось создать задачу")
		}
	}

	message := fmt.Sprintf("✅ Задача #%d создана: %s", taskID, description)
	if check.MinRemaining > 0 {
		message += fmt.Sprintf("\n\n📝 До минимума осталось запланировать ещё %d.", check.MinRemaining)
	}
	return p.sendMessageHTML(client, chatID, message)
}

// handleTasksCommand обрабатывает команду /tasks
func (p *MessageProcessor) handleTasksCommand(client *Client, chatID, userID int64) error {
	tasks, err := p.taskService.GetUserTasks(userID, chatID, 0, 0)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка получения задач пользователя %d: %v", userID, err)
		return p.sendErrorMessage(client, chatID, "Не удалось получить список задач")
	}

	if len(tasks) == 0 {
		return p.sendMessage(client, chatID, "На этой неделе задач ещё нет. Создайте первую: /newtask <описание>")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 <b>Задачи текущей недели (%d):</b>\n\n", len(tasks)))
	for _, task := range tasks {
		sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", statusEmoji(task.Status), task.TaskID, task.Description))
	}
	sb.WriteString("\n/done, /cancel, /reopen, /delete — управление по номеру задачи")

	return p.sendMessageHTML(client, chatID, sb.String())
}

// handleStatusCommand обрабатывает команды смены статуса задачи
func (p *MessageProcessor) handleStatusCommand(client *Client, chatID int64, args string, status contracts.TaskStatus) error {
	taskID, err := parseTaskID(args)
	if err != nil {
		return p.sendMessage(client, chatID, "Укажите номер задачи, например: /done 42")
	}

	if err := p.taskService.UpdateTaskStatus(taskID, status); err != nil {
		return p.replyTaskError(client, chatID, taskID, err)
	}

	var verb string
	switch status {
	case contracts.StatusCompleted:
		verb = "выполнена"
	case contracts.StatusCanceled:
		verb = "отменена"
	default:
		verb = "возвращена в работу"
	}
	return p.sendMessage(client, chatID, fmt.Sprintf("%s Задача #%d %s", statusEmoji(status), taskID, verb))
}

// handleDeleteCommand обрабатывает команду /delete
func (p *MessageProcessor) handleDeleteCommand(client *Client, chatID int64, args string) error {
	taskID, err := parseTaskID(args)
	if err != nil {
		return p.sendMessage(client, chatID, "Укажите номер задачи, например: /delete 42")
	}

	if err := p.taskService.DeleteTask(taskID); err != nil {
		return p.replyTaskError(client, chatID, taskID, err)
	}

	return p.sendMessage(client, chatID, fmt.Sprintf("🗑 Задача #%d удалена", taskID))
}

// handleStatsCommand обрабатывает команду /stats
func (p *MessageProcessor) handleStatsCommand(client *Client, chatID, userID int64) error {
	summary, err := p.taskService.GetTaskSummary(userID, chatID)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка получения статистики пользователя %d: %v", userID, err)
		return p.sendErrorMessage(client, chatID, "Не удалось получить статистику")
	}

	message := fmt.Sprintf(`📊 <b>Ваша статистика за неделю %d/%d:</b>

📝 Создано: %d
✅ Выполнено: %d
❌ Отменено: %d
⏳ В работе: %d
📈 Процент выполнения: %.0f%%`,
		summary.WeekNumber, summary.Year,
		summary.TotalTasks,
		summary.CompletedTasks,
		summary.CanceledTasks,
		summary.OpenTasks,
		summary.CompletionRate*100)

	if summary.TotalTasks < p.taskService.MinPerWeek() {
		message += fmt.Sprintf("\n\n⚠️ Запланировано меньше минимума (%d).", p.taskService.MinPerWeek())
	}

	return p.sendMessageHTML(client, chatID, message)
}

// handleChatStatsCommand обрабатывает команду /chatstats
func (p *MessageProcessor) handleChatStatsCommand(client *Client, chatID int64) error {
	rates, err := p.statsService.GetChatUsersCompletionRates(chatID, 0, 0)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка получения статистики чата %d: %v", chatID, err)
		return p.sendErrorMessage(client, chatID, "Не удалось получить статистику чата")
	}

	if len(rates) == 0 {
		return p.sendMessage(client, chatID, "В этом чате пока нет зарегистрированных участников. Отправьте /start")
	}

	var sb strings.Builder
	sb.WriteString("🏆 <b>Статистика чата за текущую неделю:</b>\n\n")
	for i, rate := range rates {
		sb.WriteString(fmt.Sprintf("%d. <b>%s</b> — %.0f%% выполнено\n",
			i+1, rate.DisplayName, rate.CompletionRate*100))
	}

	return p.sendMessageHTML(client, chatID, sb.String())
}

// handleHistoryCommand обрабатывает команду /history
func (p *MessageProcessor) handleHistoryCommand(client *Client, chatID, userID int64) error {
	history, err := p.statsService.GetStatsHistory(userID, chatID, 10)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка получения истории пользователя %d: %v", userID, err)
		return p.sendErrorMessage(client, chatID, "Не удалось получить историю")
	}

	if len(history) == 0 {
		return p.sendMessage(client, chatID, "История пока пуста. Статистика появится после завершения первой недели.")
	}

	var sb strings.Builder
	sb.WriteString("📜 <b>История недель:</b>\n\n")
	for _, stat := range history {
		sb.WriteString(fmt.Sprintf("Неделя %d/%d: создано %d, выполнено %d, отменено %d (%.0f%%)\n",
			stat.WeekNumber, stat.Year,
			stat.TasksCreated, stat.TasksCompleted, stat.TasksCanceled,
			stat.CompletionRate*100))
	}

	return p.sendMessageHTML(client, chatID, sb.String())
}

// handleNextCommand обрабатывает команду /next
func (p *MessageProcessor) handleNextCommand(client *Client, chatID int64) error {
	jobs := p.schedulerService.JobsInfo()
	if len(jobs) == 0 {
		return p.sendMessage(client, chatID, "Планировщик сейчас не активен.")
	}

	var sb strings.Builder
	sb.WriteString("⏰ <b>Ближайшие автоматические запуски:</b>\n\n")
	for _, job := range jobs {
		sb.WriteString(fmt.Sprintf("• %s — %s\n", jobTitle(job.Name), job.NextRun.Format("02.01.2006 15:04")))
	}

	return p.sendMessageHTML(client, chatID, sb.String())
}

// replyTaskError переводит доменные ошибки задач в ответ пользователю
func (p *MessageProcessor) replyTaskError(client *Client, chatID int64, taskID int64, err error) error {
	switch {
	case errors.Is(err, contracts.ErrTaskNotFound):
		return p.sendMessage(client, chatID, fmt.Sprintf("❌ Задача #%d не найдена", taskID))
	case errors.Is(err, contracts.ErrInvalidStatus):
		return p.sendMessage(client, chatID, "❌ Недопустимый статус задачи")
	default:
		log.Printf("[MessageProcessor] Ошибка операции над задачей %d: %v", taskID, err)
		return p.sendErrorMessage(client, chatID, "Не удалось выполнить операцию над задачей")
	}
}

// sendMessage отправляет обычное сообщение
func (p *MessageProcessor) sendMessage(client *Client, chatID int64, text string) error {
	_, err := client.SendMessage(chatID, text, "")
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка отправки сообщения: %v", err)
	}
	return err
}

// sendMessageHTML отправляет сообщение с HTML разметкой
func (p *MessageProcessor) sendMessageHTML(client *Client, chatID int64, text string) error {
	_, err := client.SendMessageHTML(chatID, text)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка отправки HTML сообщения: %v", err)
	}
	return err
}

// sendErrorMessage отправляет сообщение об ошибке
func (p *MessageProcessor) sendErrorMessage(client *Client, chatID int64, text string) error {
	return p.sendMessageHTML(client, chatID, fmt.Sprintf("❌ <b>Ошибка:</b> %s", text))
}

func parseTaskID(args string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(args), 10, 64)
}

func statusEmoji(status contracts.TaskStatus) string {
	switch status {
	case contracts.StatusCompleted:
		return "✅"
	case contracts.StatusCanceled:
		return "❌"
	default:
		return "⏳"
	}
}

func jobTitle(name string) string {
	switch name {
	case "weekly_task_reset":
		return "Недельный сброс задач"
	case "weekly_stats_generation":
		return "Формирование статистики"
	default:
		return name
	}
}
