package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskRunning    = errors.New("task is already running")
	ErrInvalidTask    = errors.New("task needs an id, a positive interval and a run func")
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Task is a unit of periodic background work. Run returns how many items it
// touched, which is only logged.
type Task struct {
	ID       string
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// TaskStatus is the in-memory record of a task's last execution.
type TaskStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	LastRunAt time.Time `json:"lastRunAt"`
	LastItems int64     `json:"lastItems"`
	LastError string    `json:"lastError,omitempty"`
}

// Service manages scheduled task execution.
type Service struct {
	tasks []Task

	// Runtime state
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Task state tracking (in-memory, not persisted)
	taskMu sync.RWMutex
	status map[string]*TaskStatus
}

// NewService creates a new scheduler service.
func NewService() *Service {
	return &Service{status: make(map[string]*TaskStatus)}
}

// Register adds a task. Tasks must be registered before Start.
func (s *Service) Register(task Task) error {
	if task.ID == "" || task.Interval <= 0 || task.Run == nil {
		return ErrInvalidTask
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}
	s.tasks = append(s.tasks, task)

	s.taskMu.Lock()
	s.status[task.ID] = &TaskStatus{ID: task.ID, Name: task.Name}
	s.taskMu.Unlock()
	return nil
}

// Start begins one background loop per registered task.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.taskLoop(task)
	}

	slog.Info("scheduler started", "component", "scheduler", "tasks", len(s.tasks))
	return nil
}

// Stop cancels every loop and waits for in-flight runs until ctx expires.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("scheduler stopped gracefully", "component", "scheduler")
	case <-ctx.Done():
		slog.Warn("scheduler stopped (timeout)", "component", "scheduler")
	}

	s.running = false
	return nil
}

func (s *Service) taskLoop(task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.executeTask(s.ctx, task)
		}
	}
}

// executeTask runs a task unless a previous run is still in progress. It
// reports whether the task ran.
func (s *Service) executeTask(ctx context.Context, task Task) bool {
	if !s.markRunning(task.ID) {
		return false
	}

	items, err := task.Run(ctx)

	s.taskMu.Lock()
	st := s.status[task.ID]
	st.Running = false
	st.LastRunAt = time.Now().UTC()
	st.LastItems = items
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
	s.taskMu.Unlock()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("task failed", "component", "scheduler", "task", task.ID, "error", err)
		}
		return true
	}
	slog.Debug("task completed", "component", "scheduler", "task", task.ID, "items", items)
	return true
}

func (s *Service) markRunning(id string) bool {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	st, ok := s.status[id]
	if !ok || st.Running {
		return false
	}
	st.Running = true
	return true
}

// RunTaskNow executes a task synchronously on the caller's context.
func (s *Service) RunTaskNow(ctx context.Context, taskID string) error {
	s.mu.RLock()
	var (
		task  Task
		found bool
	)
	for _, t := range s.tasks {
		if t.ID == taskID {
			task, found = t, true
			break
		}
	}
	s.mu.RUnlock()

	if !found {
		return ErrTaskNotFound
	}
	if !s.executeTask(ctx, task) {
		return ErrTaskRunning
	}
	return nil
}

// TaskStatus returns a snapshot of every registered task.
func (s *Service) TaskStatus() []TaskStatus {
	s.mu.RLock()
	ids := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		ids = append(ids, t.ID)
	}
	s.mu.RUnlock()

	s.taskMu.RLock()
	defer s.taskMu.RUnlock()
	out := make([]TaskStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.status[id])
	}
	return out
}

// IsTaskRunning checks if a specific task is currently running.
func (s *Service) IsTaskRunning(taskID string) bool {
	s.taskMu.RLock()
	defer s.taskMu.RUnlock()
	st, ok := s.status[taskID]
	return ok && st.Running
}
