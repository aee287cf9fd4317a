package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-kanban-tracker/app/observability/metrics"
	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
)

var _ TaskService = (*TaskServiceImpl)(nil)

// TaskService is the business layer for board tasks.
type TaskService interface {
	CreateTask(ctx context.Context, userID uuid.UUID, req CreateTaskRequest) (*Task, error)
	GetTask(ctx context.Context, userID, taskID uuid.UUID) (*Task, error)
	ListTasks(ctx context.Context, userID uuid.UUID, search string) ([]Task, error)
	ReplaceTask(ctx context.Context, userID, taskID uuid.UUID, req UpdateTaskRequest) (*Task, error)
	PatchTask(ctx context.Context, userID, taskID uuid.UUID, req UpdateTaskRequest) (*Task, error)
	DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error
}

// TaskServiceImpl implements TaskService.
type TaskServiceImpl struct {
	repo    TaskRepo
	logger  *slog.Logger
	metrics *metrics.AppMetrics
}

func NewTaskService(repo TaskRepo, appMetrics *metrics.AppMetrics, logger *slog.Logger) *TaskServiceImpl {
	return &TaskServiceImpl{
		repo:    repo,
		logger:  logger,
		metrics: appMetrics,
	}
}

func (s *TaskServiceImpl) count(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.TaskOperationsTotal.Add(ctx, 1)
	}
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, userID uuid.UUID, req CreateTaskRequest) (*Task, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, api.FieldErrors{"title": "This field is required."}
	}

	status := StatusTodo
	if req.Status != "" {
		parsed, err := ParseStatus(req.Status)
		if err != nil {
			return nil, api.FieldErrors{"status": err.Error()}
		}
		status = parsed
	}

	priority := PriorityMedium
	if req.Priority != "" {
		parsed, err := ParsePriority(req.Priority)
		if err != nil {
			return nil, api.FieldErrors{"priority": err.Error()}
		}
		priority = parsed
	}

	task, err := s.repo.CreateTask(ctx, userID, CreateTaskParams{
		Title:       strings.TrimSpace(req.Title),
		Subheading:  req.Subheading,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
	})
	if err != nil {
		return nil, err
	}

	s.count(ctx)
	return task, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*Task, error) {
	return s.repo.GetTask(ctx, userID, taskID)
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, userID uuid.UUID, search string) ([]Task, error) {
	return s.repo.ListTasks(ctx, userID, strings.TrimSpace(search))
}

func validateUpdate(req UpdateTaskRequest) (UpdateTaskParams, error) {
	var params UpdateTaskParams
	fe := api.FieldErrors{}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			fe["title"] = "This field may not be blank."
		}
		params.Title = &title
	}
	params.Subheading = req.Subheading
	params.Description = req.Description

	if req.Status != nil {
		status, err := ParseStatus(*req.Status)
		if err != nil {
			fe["status"] = err.Error()
		}
		params.Status = &status
	}
	if req.Priority != nil {
		priority, err := ParsePriority(*req.Priority)
		if err != nil {
			fe["priority"] = err.Error()
		}
		params.Priority = &priority
	}

	if len(fe) > 0 {
		return UpdateTaskParams{}, fe
	}
	return params, nil
}

// ReplaceTask handles PUT: the title is mandatory, everything else falls
// back to its current value when omitted.
func (s *TaskServiceImpl) ReplaceTask(ctx context.Context, userID, taskID uuid.UUID, req UpdateTaskRequest) (*Task, error) {
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return nil, api.FieldErrors{"title": "This field is required."}
	}
	return s.applyUpdate(ctx, userID, taskID, req)
}

// PatchTask handles PATCH: every field is optional.
func (s *TaskServiceImpl) PatchTask(ctx context.Context, userID, taskID uuid.UUID, req UpdateTaskRequest) (*Task, error) {
	return s.applyUpdate(ctx, userID, taskID, req)
}

func (s *TaskServiceImpl) applyUpdate(ctx context.Context, userID, taskID uuid.UUID, req UpdateTaskRequest) (*Task, error) {
	params, err := validateUpdate(req)
	if err != nil {
		return nil, err
	}

	task, err := s.repo.UpdateTask(ctx, userID, taskID, params)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", taskID, err)
	}

	s.count(ctx)
	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	if err := s.repo.DeleteTask(ctx, userID, taskID); err != nil {
		return err
	}
	s.count(ctx)
	return nil
}
