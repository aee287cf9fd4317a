package tasks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
	"github.com/FACorreiaa/go-kanban-tracker/internal/api/auth"
)

// HandlerImpl translates HTTP requests into TaskService calls.
type HandlerImpl struct {
	taskService TaskService
	logger      *slog.Logger
}

func NewTaskHandlerImpl(taskService TaskService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{taskService: taskService, logger: logger}
}

func (h *HandlerImpl) taskID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (h *HandlerImpl) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var fe api.FieldErrors
	switch {
	case errors.As(err, &fe):
		api.ValidationErrorResponse(w, r, fe)
	case errors.Is(err, api.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "Task not found")
	default:
		h.logger.ErrorContext(r.Context(), "Task operation failed",
			slog.String("operation", op), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Task operation failed")
	}
}

// CreateTask godoc
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        request body CreateTaskRequest true "Task payload"
// @Success      201 {object} Task
// @Failure      400 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /tasks [post]
func (h *HandlerImpl) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateTaskRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err, "create")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, task)
}

// ListTasks godoc
// @Summary      List the caller's tasks
// @Description  Newest first. The optional search term matches title or description case-insensitively.
// @Tags         tasks
// @Produce      json
// @Param        search query string false "Substring filter"
// @Success      200 {array} Task
// @Security     BearerAuth
// @Router       /tasks [get]
func (h *HandlerImpl) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	tasks, err := h.taskService.ListTasks(r.Context(), userID, r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, r, err, "list")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, tasks)
}

// GetTask godoc
// @Summary      Get one task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} Task
// @Failure      404 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /tasks/{id} [get]
func (h *HandlerImpl) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := h.taskID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusNotFound, "Task not found")
		return
	}

	task, err := h.taskService.GetTask(r.Context(), userID, taskID)
	if err != nil {
		h.writeError(w, r, err, "get")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, task)
}

// ReplaceTask godoc
// @Summary      Replace a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        request body UpdateTaskRequest true "Full task payload"
// @Success      200 {object} Task
// @Failure      400 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /tasks/{id} [put]
func (h *HandlerImpl) ReplaceTask(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.taskService.ReplaceTask)
}

// PatchTask godoc
// @Summary      Partially update a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        request body UpdateTaskRequest true "Fields to change"
// @Success      200 {object} Task
// @Failure      400 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /tasks/{id} [patch]
func (h *HandlerImpl) PatchTask(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.taskService.PatchTask)
}

func (h *HandlerImpl) update(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, userID, taskID uuid.UUID, req UpdateTaskRequest) (*Task, error),
) {
	userID, err := auth.GetUserIDFromContext(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := h.taskID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusNotFound, "Task not found")
		return
	}

	var req UpdateTaskRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := apply(r.Context(), userID, taskID, req)
	if err != nil {
		h.writeError(w, r, err, "update")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, task)
}

// DeleteTask godoc
// @Summary      Delete a task
// @Tags         tasks
// @Param        id path string true "Task ID"
// @Success      204 "Deleted"
// @Failure      404 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /tasks/{id} [delete]
func (h *HandlerImpl) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := h.taskID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusNotFound, "Task not found")
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), userID, taskID); err != nil {
		h.writeError(w, r, err, "delete")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
