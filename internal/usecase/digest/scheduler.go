package digest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"news-portal/internal/domain"
)

// RunFunc выполняет один прогон рассылки.
type RunFunc func(ctx context.Context, runStart time.Time) (domain.DigestRunSummary, error)

// ScheduleConfig описывает еженедельный триггер.
type ScheduleConfig struct {
	Weekday  int
	Hour     int
	Minute   int
	Location *time.Location
	// LockTTL — время жизни замка одного запуска в Redis.
	LockTTL time.Duration
}

// CronSpec возвращает cron-выражение еженедельного триггера.
func (c ScheduleConfig) CronSpec() string {
	return fmt.Sprintf("%d %d * * %d", c.Minute, c.Hour, c.Weekday)
}

// Scheduler запускает прогон рассылки по еженедельному расписанию.
// Одновременно идёт не более одного прогона: срабатывание во время
// активного прогона пропускается, а замок в Redis не даёт запуститься
// второму процессу того же деплоймента.
type Scheduler struct {
	run     RunFunc
	lock    domain.Cache
	cfg     ScheduleConfig
	cron    *cron.Cron
	running atomic.Bool
	log     zerolog.Logger
}

// NewScheduler создаёт планировщик рассылки.
func NewScheduler(run RunFunc, lock domain.Cache, cfg ScheduleConfig, logger zerolog.Logger) *Scheduler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Hour
	}
	return &Scheduler{run: run, lock: lock, cfg: cfg, log: logger}
}

// Start регистрирует задание и запускает таймер. Повторная регистрация
// после рестарта процесса заменяет прежнее расписание: записей в
// хранилище нет, состояние прогона — это watermark подписчиков.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.cfg.Location))
	spec := s.cfg.CronSpec()
	if _, err := c.AddFunc(spec, func() { s.fire(ctx) }); err != nil {
		return fmt.Errorf("регистрация расписания %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	s.log.Info().Str("spec", spec).Str("tz", s.cfg.Location.String()).Msg("scheduler: расписание активно")
	return nil
}

// Stop останавливает таймер и дожидается завершения активного прогона.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler: остановлен")
}

// RunNow запускает прогон вне расписания, соблюдая те же гарантии
// единственности.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.fire(ctx)
}

func (s *Scheduler) fire(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("scheduler: прогон ещё идёт, срабатывание пропущено")
		return
	}
	defer s.running.Store(false)

	runStart := time.Now().In(s.cfg.Location)
	execute := func() error {
		summary, err := s.run(ctx, runStart)
		if err != nil {
			return err
		}
		s.log.Info().Time("run_start", runStart).Int("sent", summary.Sent).Int("failed", summary.Failed).Msg("scheduler: прогон выполнен")
		return nil
	}

	var err error
	if s.lock != nil {
		err = s.lock.Once(s.lockKey(runStart), s.cfg.LockTTL, execute)
	} else {
		err = execute()
	}
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler: прогон завершился ошибкой")
	}
}

// lockKey строит ключ замка по слоту расписания, а не по моменту
// срабатывания, чтобы два процесса одного слота получили один ключ.
func (s *Scheduler) lockKey(runStart time.Time) string {
	return fmt.Sprintf("digest:run:%s", runStart.Truncate(time.Minute).Format("2006-01-02T15:04"))
}
