package digest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"news-portal/internal/domain"
)

func TestCronSpecWeeklySlot(t *testing.T) {
	cfg := ScheduleConfig{Weekday: 1, Hour: 9, Minute: 0}
	if got := cfg.CronSpec(); got != "0 9 * * 1" {
		t.Fatalf("ожидали %q, получили %q", "0 9 * * 1", got)
	}
}

func TestFireSkipsOverlappingRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs int
	var mu sync.Mutex

	run := func(context.Context, time.Time) (domain.DigestRunSummary, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		close(started)
		<-release
		return domain.DigestRunSummary{}, nil
	}
	scheduler := NewScheduler(run, nil, ScheduleConfig{Location: time.UTC}, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		scheduler.RunNow(context.Background())
		close(done)
	}()
	<-started

	// Срабатывание во время активного прогона.
	scheduler.RunNow(context.Background())

	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Fatalf("перекрывающийся прогон должен пропускаться, выполнено %d", runs)
	}
}

type recordingLock struct {
	keys []string
}

func (l *recordingLock) Once(key string, _ time.Duration, fn func() error) error {
	l.keys = append(l.keys, key)
	return fn()
}

func TestFireTakesRunLock(t *testing.T) {
	lock := &recordingLock{}
	run := func(context.Context, time.Time) (domain.DigestRunSummary, error) {
		return domain.DigestRunSummary{}, nil
	}
	scheduler := NewScheduler(run, lock, ScheduleConfig{Location: time.UTC}, zerolog.Nop())

	scheduler.RunNow(context.Background())
	if len(lock.keys) != 1 {
		t.Fatalf("ожидали один захват замка, получили %d", len(lock.keys))
	}
}
