package tasks

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
)

// MockTaskRepo is a mock implementation of the TaskRepo interface
type MockTaskRepo struct {
	mock.Mock
}

func (m *MockTaskRepo) CreateTask(ctx context.Context, userID uuid.UUID, params CreateTaskParams) (*Task, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Task), args.Error(1)
}

func (m *MockTaskRepo) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*Task, error) {
	args := m.Called(ctx, userID, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Task), args.Error(1)
}

func (m *MockTaskRepo) ListTasks(ctx context.Context, userID uuid.UUID, search string) ([]Task, error) {
	args := m.Called(ctx, userID, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Task), args.Error(1)
}

func (m *MockTaskRepo) UpdateTask(ctx context.Context, userID, taskID uuid.UUID, params UpdateTaskParams) (*Task, error) {
	args := m.Called(ctx, userID, taskID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Task), args.Error(1)
}

func (m *MockTaskRepo) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	args := m.Called(ctx, userID, taskID)
	return args.Error(0)
}

func newTaskService(repo TaskRepo) *TaskServiceImpl {
	return NewTaskService(repo, nil, slog.Default())
}

func TestCreateTask(t *testing.T) {
	userID := uuid.New()

	t.Run("DefaultsApplied", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockTaskRepo)
		service := newTaskService(mockRepo)

		mockRepo.On("CreateTask", ctx, userID, mock.MatchedBy(func(params CreateTaskParams) bool {
			return params.Status == StatusTodo && params.Priority == PriorityMedium
		})).Return(&Task{ID: uuid.New(), UserID: userID, Title: "Buy milk", Status: StatusTodo, Priority: PriorityMedium, CreatedAt: time.Now()}, nil).Once()

		task, err := service.CreateTask(ctx, userID, CreateTaskRequest{Title: "Buy milk"})

		assert.NoError(t, err)
		assert.Equal(t, StatusTodo, task.Status)
		assert.Equal(t, PriorityMedium, task.Priority)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MissingTitle", func(t *testing.T) {
		mockRepo := new(MockTaskRepo)
		service := newTaskService(mockRepo)

		_, err := service.CreateTask(context.Background(), userID, CreateTaskRequest{Description: "no title"})

		var fe api.FieldErrors
		assert.ErrorAs(t, err, &fe)
		assert.Contains(t, fe, "title")
		mockRepo.AssertNotCalled(t, "CreateTask")
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		mockRepo := new(MockTaskRepo)
		service := newTaskService(mockRepo)

		_, err := service.CreateTask(context.Background(), userID, CreateTaskRequest{Title: "x", Status: "Blocked"})

		var fe api.FieldErrors
		assert.ErrorAs(t, err, &fe)
		assert.Contains(t, fe, "status")
	})

	t.Run("UnknownPriority", func(t *testing.T) {
		mockRepo := new(MockTaskRepo)
		service := newTaskService(mockRepo)

		_, err := service.CreateTask(context.Background(), userID, CreateTaskRequest{Title: "x", Priority: "Urgent"})

		var fe api.FieldErrors
		assert.ErrorAs(t, err, &fe)
		assert.Contains(t, fe, "priority")
	})
}

func TestReplaceTask(t *testing.T) {
	userID := uuid.New()
	taskID := uuid.New()

	t.Run("TitleRequired", func(t *testing.T) {
		mockRepo := new(MockTaskRepo)
		service := newTaskService(mockRepo)

		_, err := service.ReplaceTask(context.Background(), userID, taskID, UpdateTaskRequest{})

		var fe api.FieldErrors
		assert.ErrorAs(t, err, &fe)
		assert.Contains(t, fe, "title")
		mockRepo.AssertNotCalled(t, "UpdateTask")
	})

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockTaskRepo)
		service := newTaskService(mockRepo)
		title := "Renamed"

		mockRepo.On("UpdateTask", ctx, userID, taskID, mock.MatchedBy(func(params UpdateTaskParams) bool {
			return params.Title != nil && *params.Title == title
		})).Return(&Task{ID: taskID, UserID: userID, Title: title}, nil).Once()

		task, err := service.ReplaceTask(ctx, userID, taskID, UpdateTaskRequest{Title: &title})

		assert.NoError(t, err)
		assert.Equal(t, title, task.Title)
		mockRepo.AssertExpectations(t)
	})
}

func TestPatchTask(t *testing.T) {
	userID := uuid.New()
	taskID := uuid.New()

	t.Run("StatusOnly", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockTaskRepo)
		service := newTaskService(mockRepo)
		status := "Done"

		mockRepo.On("UpdateTask", ctx, userID, taskID, mock.MatchedBy(func(params UpdateTaskParams) bool {
			return params.Title == nil && params.Status != nil && *params.Status == StatusDone
		})).Return(&Task{ID: taskID, UserID: userID, Title: "Buy milk", Status: StatusDone}, nil).Once()

		task, err := service.PatchTask(ctx, userID, taskID, UpdateTaskRequest{Status: &status})

		assert.NoError(t, err)
		assert.Equal(t, StatusDone, task.Status)
		mockRepo.AssertExpectations(t)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		mockRepo := new(MockTaskRepo)
		service := newTaskService(mockRepo)
		status := "Paused"

		_, err := service.PatchTask(context.Background(), userID, taskID, UpdateTaskRequest{Status: &status})

		var fe api.FieldErrors
		assert.ErrorAs(t, err, &fe)
		assert.Contains(t, fe, "status")
		mockRepo.AssertNotCalled(t, "UpdateTask")
	})

	t.Run("UnknownTaskBubblesNotFound", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockTaskRepo)
		service := newTaskService(mockRepo)
		status := "Done"

		mockRepo.On("UpdateTask", ctx, userID, taskID, mock.Anything).
			Return(nil, api.ErrNotFound).Once()

		_, err := service.PatchTask(ctx, userID, taskID, UpdateTaskRequest{Status: &status})

		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestListTasks(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockTaskRepo)
	service := newTaskService(mockRepo)
	userID := uuid.New()

	mockRepo.On("ListTasks", ctx, userID, "milk").
		Return([]Task{{ID: uuid.New(), UserID: userID, Title: "Buy milk"}}, nil).Once()

	tasks, err := service.ListTasks(ctx, userID, "  milk  ")

	assert.NoError(t, err)
	assert.Len(t, tasks, 1)
	mockRepo.AssertExpectations(t)
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockTaskRepo)
	service := newTaskService(mockRepo)
	userID := uuid.New()
	taskID := uuid.New()

	mockRepo.On("DeleteTask", ctx, userID, taskID).Return(api.ErrNotFound).Once()

	err := service.DeleteTask(ctx, userID, taskID)

	assert.ErrorIs(t, err, api.ErrNotFound)
}
