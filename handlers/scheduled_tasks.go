package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"reelhouse/models"
	"reelhouse/services/scheduler"
)

type taskRunner interface {
	TaskStatus() []scheduler.TaskStatus
	RunTaskNow(ctx context.Context, taskID string) error
}

var _ taskRunner = (*scheduler.Service)(nil)

// ScheduledTasksHandler exposes background task status to administrators.
type ScheduledTasksHandler struct {
	Scheduler taskRunner
}

func NewScheduledTasksHandler(s taskRunner) *ScheduledTasksHandler {
	return &ScheduledTasksHandler{Scheduler: s}
}

// ListTasks returns all scheduled tasks with current status
// GET /api/admin/tasks
func (h *ScheduledTasksHandler) ListTasks(w http.ResponseWriter, r *http.Request, _ models.Identity) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": h.Scheduler.TaskStatus()})
}

// RunTask triggers a task immediately and waits for it to finish
// POST /api/admin/tasks/{taskID}/run
func (h *ScheduledTasksHandler) RunTask(w http.ResponseWriter, r *http.Request, _ models.Identity) {
	taskID := mux.Vars(r)["taskID"]

	err := h.Scheduler.RunTaskNow(r.Context(), taskID)
	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	case errors.Is(err, scheduler.ErrTaskRunning):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task already running"})
		return
	default:
		writeError(w, r, err)
		return
	}

	for _, status := range h.Scheduler.TaskStatus() {
		if status.ID == taskID {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "task": status})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
