package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/curio-sh/curio/internal/eventlog"
)

type stubTask struct {
	spec string
	fn   func(ctx context.Context) error
	runs atomic.Int32
}

func (t *stubTask) Schedule() string {
	return t.spec
}

func (t *stubTask) Execute(ctx context.Context) error {
	t.runs.Add(1)
	if t.fn != nil {
		return t.fn(ctx)
	}
	return nil
}

// dueService builds a started-shaped service whose wrappers are all
// overdue, without launching the poll loop.
func dueService(t *testing.T, cfg Config, tasks ...Task) *Service {
	t.Helper()

	s := New(tasks, eventlog.Nop{}, cfg)
	past := time.Now().UTC().Add(-time.Minute)

	for _, task := range tasks {
		schedule, err := ParseSchedule(task.Schedule())
		if err != nil {
			t.Fatalf("parse %q: %v", task.Schedule(), err)
		}
		s.wrappers = append(s.wrappers, &taskWrapper{
			schedule: schedule,
			task:     task,
			nextRun:  past,
		})
	}

	return s
}

func TestStateMachine(t *testing.T) {
	s := New(nil, eventlog.Nop{}, Config{PollInterval: time.Hour})

	if s.State() != StateStopped {
		t.Fatalf("expected StateStopped, got %s", s.State())
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.State() != StateRunning {
		t.Errorf("expected StateRunning, got %s", s.State())
	}

	if err := s.Start(context.Background()); err == nil {
		t.Error("expected second start to fail")
	}

	s.Stop()
	if s.State() != StateStopped {
		t.Errorf("expected StateStopped after stop, got %s", s.State())
	}

	// Stopping an already stopped scheduler is a no-op.
	s.Stop()

	// A stopped scheduler can be started again.
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	s.Stop()
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	task := &stubTask{spec: "nope"}
	s := New([]Task{task}, eventlog.Nop{}, Config{PollInterval: time.Hour})

	err := s.Start(context.Background())
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("expected StateStopped after failed start, got %s", s.State())
	}
}

func TestWrapperIncrement(t *testing.T) {
	schedule, err := ParseSchedule("0 0 * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	reference, _ := time.Parse(time.RFC3339, "2024-01-01T12:00:00Z")
	w := &taskWrapper{schedule: schedule, nextRun: schedule.Next(reference)}

	// Not due before the occurrence.
	if w.shouldRun(reference) {
		t.Error("expected not due at the reference instant")
	}

	after := w.nextRun.Add(time.Second)
	if !w.shouldRun(after) {
		t.Fatal("expected due after the occurrence")
	}

	occurrence := w.nextRun
	w.increment()

	if !w.lastRun.Equal(occurrence) {
		t.Errorf("lastRun = %s, want %s", w.lastRun, occurrence)
	}
	if !w.nextRun.Equal(schedule.Next(occurrence)) {
		t.Errorf("nextRun = %s, want %s", w.nextRun, schedule.Next(occurrence))
	}

	// The consumed occurrence does not re-fire.
	if w.shouldRun(after) {
		t.Error("expected not due again at the same instant")
	}
}

func TestRunPendingDispatchesOnce(t *testing.T) {
	task := &stubTask{spec: "* * * * *"}
	s := dueService(t, Config{PollInterval: time.Hour}, task)

	now := time.Now().UTC()
	s.runPending(context.Background(), now)
	s.runPending(context.Background(), now)
	s.taskWG.Wait()

	if got := task.runs.Load(); got != 1 {
		t.Errorf("expected 1 run, got %d", got)
	}
}

func TestSlowTaskOverlapsAcrossPasses(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)

	slow := &stubTask{spec: "* * * * *", fn: func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}}

	s := dueService(t, Config{PollInterval: time.Hour}, slow)

	now := time.Now().UTC()
	s.runPending(context.Background(), now)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("expected the first dispatch to start")
	}

	// The wrapper was advanced, so a pass after the next occurrence
	// dispatches again even though the first run is still in flight.
	s.runPending(context.Background(), now.Add(2*time.Minute))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a second dispatch while the first run is in flight")
	}

	if got := slow.runs.Load(); got != 2 {
		t.Errorf("expected 2 overlapping runs, got %d", got)
	}

	close(release)
	s.taskWG.Wait()
}

func TestFaultIsolation(t *testing.T) {
	var notified []*TaskError
	var mu sync.Mutex

	failing := &stubTask{spec: "* * * * *", fn: func(context.Context) error {
		return errors.New("boom")
	}}
	healthy := &stubTask{spec: "* * * * *"}

	s := dueService(t, Config{
		PollInterval: time.Hour,
		OnTaskError: func(e *TaskError) {
			mu.Lock()
			notified = append(notified, e)
			mu.Unlock()
			e.Observe()
		},
	}, failing, healthy)

	s.runPending(context.Background(), time.Now().UTC())
	s.taskWG.Wait()

	if failing.runs.Load() != 1 || healthy.runs.Load() != 1 {
		t.Errorf("expected both tasks to run, got %d and %d", failing.runs.Load(), healthy.runs.Load())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(notified) != 1 {
		t.Fatalf("expected 1 error notification, got %d", len(notified))
	}
	if notified[0].TaskName != taskName(failing) {
		t.Errorf("unexpected task name %q", notified[0].TaskName)
	}
	if !strings.Contains(notified[0].Error(), "boom") {
		t.Errorf("unexpected error text %q", notified[0].Error())
	}
}

func TestPanicRecovery(t *testing.T) {
	var captured *TaskError

	panicking := &stubTask{spec: "* * * * *", fn: func(context.Context) error {
		panic("kaboom")
	}}

	s := dueService(t, Config{
		PollInterval: time.Hour,
		OnTaskError: func(e *TaskError) {
			captured = e
			e.Observe()
		},
	}, panicking)

	s.runPending(context.Background(), time.Now().UTC())
	s.taskWG.Wait()

	if captured == nil {
		t.Fatal("expected an error notification from the panic")
	}
	if !strings.Contains(captured.Err.Error(), "kaboom") {
		t.Errorf("unexpected error text %q", captured.Err.Error())
	}
}

func TestUnobservedErrorEscalates(t *testing.T) {
	var fatal atomic.Int32

	failing := &stubTask{spec: "* * * * *", fn: func(context.Context) error {
		return errors.New("nobody watching")
	}}

	s := dueService(t, Config{
		PollInterval: time.Hour,
		OnTaskError:  func(*TaskError) {}, // sees it, does not observe it
		OnFatal:      func(error) { fatal.Add(1) },
	}, failing)

	s.runPending(context.Background(), time.Now().UTC())
	s.taskWG.Wait()

	if fatal.Load() != 1 {
		t.Errorf("expected 1 fatal escalation, got %d", fatal.Load())
	}
}

func TestObservedErrorDoesNotEscalate(t *testing.T) {
	var fatal atomic.Int32

	failing := &stubTask{spec: "* * * * *", fn: func(context.Context) error {
		return errors.New("handled")
	}}

	s := dueService(t, Config{
		PollInterval: time.Hour,
		OnTaskError:  func(e *TaskError) { e.Observe() },
		OnFatal:      func(error) { fatal.Add(1) },
	}, failing)

	s.runPending(context.Background(), time.Now().UTC())
	s.taskWG.Wait()

	if fatal.Load() != 0 {
		t.Errorf("expected no fatal escalation, got %d", fatal.Load())
	}
}

func TestTaskError(t *testing.T) {
	inner := errors.New("cause")
	e := &TaskError{TaskName: "scheduler.stubTask", Err: inner}

	if !errors.Is(e, inner) {
		t.Error("expected Unwrap to expose the cause")
	}
	if !strings.Contains(e.Error(), "scheduler.stubTask") {
		t.Errorf("unexpected error text %q", e.Error())
	}

	if e.Observed() {
		t.Error("expected a fresh error to be unobserved")
	}
	e.Observe()
	if !e.Observed() {
		t.Error("expected Observed after Observe")
	}
}

func TestTaskName(t *testing.T) {
	if got := taskName(&stubTask{}); got != "scheduler.stubTask" {
		t.Errorf("taskName = %q", got)
	}
}
