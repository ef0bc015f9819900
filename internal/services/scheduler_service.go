package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// JobFunc — тело периодического задания
type JobFunc func() error

// JobInfo описывает зарегистрированное задание для интроспекции
type JobInfo struct {
	Name    string       `json:"name"`
	Day     time.Weekday `json:"day"`
	Hour    int          `json:"hour"`
	Minute  int          `json:"minute"`
	NextRun time.Time    `json:"next_run"`
}

type job struct {
	name   string
	day    time.Weekday
	hour   int
	minute int
	fn     JobFunc
	// закрывается при перерегистрации задания под тем же именем
	replaced chan struct{}
}

// SchedulerService запускает именованные задания раз в неделю в заданный
// день и время в настроенном часовом поясе. Повторная регистрация под тем
// же именем заменяет расписание, а не дублирует его.
type SchedulerService struct {
	clock clockwork.Clock
	loc   *time.Location

	mu       sync.Mutex
	jobs     map[string]*job
	nextRuns map[string]time.Time
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSchedulerService создает новый планировщик
func NewSchedulerService(clock clockwork.Clock, loc *time.Location) *SchedulerService {
	return &SchedulerService{
		clock:    clock,
		loc:      loc,
		jobs:     make(map[string]*job),
		nextRuns: make(map[string]time.Time),
	}
}

// AddJob регистрирует задание. Если задание с таким именем уже есть, его
// расписание заменяется; у работающего планировщика старый цикл
// останавливается и запускается новый.
func (s *SchedulerService) AddJob(name string, day time.Weekday, hour, minute int, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		close(old.replaced)
		log.Printf("[Scheduler] Задание %q перерегистрировано", name)
	}

	j := &job{
		name:     name,
		day:      day,
		hour:     hour,
		minute:   minute,
		fn:       fn,
		replaced: make(chan struct{}),
	}
	s.jobs[name] = j
	s.nextRuns[name] = nextRunTime(s.clock.Now().In(s.loc), day, hour, minute)

	if s.running {
		s.wg.Add(1)
		go s.runJob(j, s.stopChan)
	}
}

// Start запускает циклы всех зарегистрированных заданий
func (s *SchedulerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("планировщик уже запущен")
	}
	s.running = true
	s.stopChan = make(chan struct{})

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runJob(j, s.stopChan)
	}

	log.Printf("[Scheduler] Планировщик запущен, заданий: %d, часовой пояс: %s", len(s.jobs), s.loc)
	return nil
}

// Stop останавливает все задания и ждёт завершения их циклов
func (s *SchedulerService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("планировщик не запущен")
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("[Scheduler] Планировщик остановлен")
	return nil
}

// IsRunning проверяет, запущен ли планировщик
func (s *SchedulerService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRunTime возвращает время следующего запуска задания
func (s *SchedulerService) NextRunTime(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.nextRuns[name]
	return t, ok
}

// JobsInfo возвращает сведения обо всех заданиях
func (s *SchedulerService) JobsInfo() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		infos = append(infos, JobInfo{
			Name:    j.name,
			Day:     j.day,
			Hour:    j.hour,
			Minute:  j.minute,
			NextRun: s.nextRuns[j.name],
		})
	}
	return infos
}

// runJob — цикл одного задания: ждать следующего срабатывания, выполнить,
// пересчитать время и ждать дальше
func (s *SchedulerService) runJob(j *job, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		now := s.clock.Now().In(s.loc)
		next := nextRunTime(now, j.day, j.hour, j.minute)

		s.mu.Lock()
		// после перерегистрации время следующего запуска принадлежит
		// новому циклу задания
		if s.jobs[j.name] == j {
			s.nextRuns[j.name] = next
		}
		s.mu.Unlock()

		select {
		case <-stop:
			return
		case <-j.replaced:
			return
		case <-s.clock.After(next.Sub(now)):
			s.execute(j)
		}
	}
}

// execute выполняет задание, изолируя панику: одно неудачное срабатывание
// не должно ронять планировщик и отменять будущие недели
func (s *SchedulerService) execute(j *job) {
	runID := uuid.NewString()[:8]
	started := s.clock.Now()
	log.Printf("[Scheduler] Задание %q запущено (run %s)", j.name, runID)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Scheduler] Паника в задании %q (run %s): %v", j.name, runID, r)
		}
	}()

	if err := j.fn(); err != nil {
		log.Printf("[Scheduler] Задание %q (run %s) завершилось с ошибкой: %v", j.name, runID, err)
		return
	}
	log.Printf("[Scheduler] Задание %q (run %s) выполнено за %v", j.name, runID, s.clock.Since(started))
}

// nextRunTime возвращает ближайший будущий момент с заданными днём недели
// и временем суток в часовом поясе now
func nextRunTime(now time.Time, day time.Weekday, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	daysAhead := (int(day) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
