package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/curio-sh/curio/internal/eventlog"
	"github.com/curio-sh/curio/internal/metrics"
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopRequested
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	default:
		return "unknown"
	}
}

// TaskError is the notification for an error raised by a dispatched task.
// A handler may call Observe to claim it; unobserved errors escalate to
// the fatal handler.
type TaskError struct {
	TaskName string
	Err      error
	observed bool
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.TaskName, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Observe marks the error as handled, suppressing escalation.
func (e *TaskError) Observe() {
	e.observed = true
}

// Observed reports whether a handler claimed the error.
func (e *TaskError) Observed() bool {
	return e.observed
}

// Config holds configuration for the scheduler service.
type Config struct {
	// PollInterval is how often due tasks are evaluated (default: 5m).
	PollInterval time.Duration

	// OnTaskError receives every task error before escalation. The
	// handler may call Observe on the notification to claim it.
	OnTaskError func(*TaskError)

	// OnFatal is invoked with any task error no handler observed. The
	// default logs at fatal level, terminating the process: an error
	// nobody is watching is treated as fatal.
	OnFatal func(error)
}

// Service runs a fixed set of recurring tasks for the lifetime of the
// process. A single poll loop evaluates which tasks are due on a fixed
// tick and dispatches each due task concurrently; one task's fault never
// halts the loop or the other tasks.
type Service struct {
	tasks  []Task
	logger eventlog.Logger
	cfg    Config

	state  atomic.Int32
	cancel context.CancelFunc

	// wrappers is built once in Start and afterwards mutated only by the
	// poll loop, so it needs no locking.
	wrappers []*taskWrapper

	loopWG sync.WaitGroup
	taskWG sync.WaitGroup
}

// taskWrapper pairs a task with its parsed schedule and run-time
// bookkeeping. Wrapper lifetime equals scheduler lifetime; the set is
// fixed at startup.
type taskWrapper struct {
	schedule *CronSchedule
	task     Task
	lastRun  time.Time
	nextRun  time.Time
}

// increment consumes the wrapper's current occurrence. It runs before the
// task executes so a slow or failing task is not re-dispatched in a busy
// loop.
func (w *taskWrapper) increment() {
	w.lastRun = w.nextRun
	w.nextRun = w.schedule.Next(w.nextRun)
}

// shouldRun reports whether the wrapper is due. The second clause keeps a
// wrapper already advanced in this pass from re-dispatching; it does not
// prevent genuine overlap of a task slower than the polling interval,
// which is accepted and left to task-level concurrency control.
func (w *taskWrapper) shouldRun(now time.Time) bool {
	return now.After(w.nextRun) && !w.lastRun.Equal(w.nextRun)
}

// New creates a scheduler over a fixed collection of tasks. The
// collection cannot change after construction.
func New(tasks []Task, logger eventlog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = eventlog.Nop{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.OnFatal == nil {
		cfg.OnFatal = func(err error) {
			log.Fatal().Err(err).Msg("Unobserved task error")
		}
	}

	return &Service{
		tasks:  tasks,
		logger: logger,
		cfg:    cfg,
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Start parses every task's schedule, builds the wrappers using the
// current time as the reference instant, and launches the poll loop. A
// task's first possible run is its first occurrence strictly after this
// instant; nothing fires at boot.
func (s *Service) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("scheduler is %s, not stopped", s.State())
	}

	reference := time.Now().UTC()

	wrappers := make([]*taskWrapper, 0, len(s.tasks))
	for _, task := range s.tasks {
		schedule, err := ParseSchedule(task.Schedule())
		if err != nil {
			s.state.Store(int32(StateStopped))
			return fmt.Errorf("task %s: %w", taskName(task), err)
		}
		wrappers = append(wrappers, &taskWrapper{
			schedule: schedule,
			task:     task,
			nextRun:  schedule.Next(reference),
		})
	}
	s.wrappers = wrappers

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.loopWG.Add(1)
	go s.pollLoop(loopCtx)

	s.state.Store(int32(StateRunning))
	s.logger.LogEvent("SchedulerService:Start", map[string]string{
		"tasks":         strconv.Itoa(len(wrappers)),
		"poll_interval": s.cfg.PollInterval.String(),
	})
	log.Info().
		Int("tasks", len(wrappers)).
		Dur("poll_interval", s.cfg.PollInterval).
		Msg("Scheduler started")

	return nil
}

// Stop requests cancellation, waits for the poll loop and all in-flight
// task executions, and returns once the scheduler is fully stopped.
func (s *Service) Stop() {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopRequested)) {
		return
	}

	s.cancel()
	s.loopWG.Wait()
	s.taskWG.Wait()

	s.state.Store(int32(StateStopped))
	s.logger.LogEvent("SchedulerService:Stop", nil)
	log.Info().Msg("Scheduler stopped")
}

// pollLoop evaluates due tasks, sleeps for the poll interval, and
// repeats until cancellation. It never blocks on task completion.
func (s *Service) pollLoop(ctx context.Context) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.runPending(ctx, time.Now().UTC())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runPending dispatches every wrapper due at the reference instant. Each
// due wrapper is advanced first, then its task is launched concurrently;
// the caller does not await completion.
func (s *Service) runPending(ctx context.Context, now time.Time) {
	var due []*taskWrapper
	for _, w := range s.wrappers {
		if w.shouldRun(now) {
			due = append(due, w)
		}
	}

	s.logger.LogEvent("SchedulerService:Poll", map[string]string{
		"due": strconv.Itoa(len(due)),
	})

	for _, w := range due {
		w.increment()

		name := taskName(w.task)
		metrics.TaskDispatched(name)
		log.Debug().Str("task", name).Time("next_run", w.nextRun).Msg("Dispatching task")

		s.taskWG.Add(1)
		go s.execute(ctx, name, w.task)
	}
}

// execute runs one task to completion, capturing any error or panic so
// nothing propagates into the poll loop.
func (s *Service) execute(ctx context.Context, name string, task Task) {
	defer s.taskWG.Done()

	metrics.TaskStarted()
	defer metrics.TaskFinished()

	err := runTask(ctx, task)
	if err == nil {
		return
	}

	metrics.TaskFailed(name)
	s.logger.LogException(err, map[string]string{"task": name})

	notification := &TaskError{TaskName: name, Err: err}
	if s.cfg.OnTaskError != nil {
		s.cfg.OnTaskError(notification)
	}

	if !notification.Observed() {
		s.cfg.OnFatal(notification)
	}
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()

	return task.Execute(ctx)
}
