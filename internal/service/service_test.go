package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"todobot/internal/models/task"
	"todobot/internal/repository"
	"todobot/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskRepository - мок репозитория
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskRepository) Create(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) ListByOwner(ctx context.Context, owner string) ([]*task.Task, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskRepository) GetByOwnerAndRank(ctx context.Context, owner string, rank int) (*task.Task, error) {
	args := m.Called(ctx, owner, rank)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepository) MarkComplete(ctx context.Context, id uuid.UUID, owner string, at time.Time) error {
	args := m.Called(ctx, id, owner, at)
	return args.Error(0)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	args := m.Called(ctx, id, owner)
	return args.Error(0)
}

func (m *MockTaskRepository) GetDueForReminder(ctx context.Context, now time.Time, lead time.Duration, limit int) ([]*task.Task, error) {
	args := m.Called(ctx, now, lead, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskRepository) MarkReminded(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ service.TaskRepository = (*MockTaskRepository)(nil)

// TestTaskService_HealthCheck тестирует HealthCheck
func TestTaskService_HealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*MockTaskRepository)
		expectError bool
	}{
		{
			name: "success - health check passes",
			setupMock: func(m *MockTaskRepository) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
			expectError: false,
		},
		{
			name: "error - health check fails",
			setupMock: func(m *MockTaskRepository) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("db connection failed"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tt.setupMock(mockRepo)

			svc := service.NewTaskService(mockRepo)
			err := svc.HealthCheck(context.Background())

			if tt.expectError {
				assert.Error(t, err)
				assert.True(t, service.IsCode(err, service.CodeStore))
			} else {
				assert.NoError(t, err)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

// TestTaskService_CreateTask тестирует создание задачи
func TestTaskService_CreateTask(t *testing.T) {
	ctx := context.Background()
	deadline := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name         string
		taskName     string
		priority     task.Priority
		setupMock    func(*MockTaskRepository)
		expectedCode string
		expectedPrio task.Priority
	}{
		{
			name:     "success - high priority",
			taskName: "  Buy milk ",
			priority: task.PriorityHigh,
			setupMock: func(m *MockTaskRepository) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(t *task.Task) bool {
					return t.Name == "Buy milk" && t.Owner == "u1" && t.Priority == task.PriorityHigh &&
						t.Deadline != nil && !t.Completed && t.CompletedAt == nil && !t.Reminded
				})).Return(nil)
			},
			expectedPrio: task.PriorityHigh,
		},
		{
			name:     "success - invalid priority falls back to medium",
			taskName: "Walk",
			priority: task.Priority("urgent"),
			setupMock: func(m *MockTaskRepository) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(t *task.Task) bool {
					return t.Priority == task.PriorityMedium
				})).Return(nil)
			},
			expectedPrio: task.PriorityMedium,
		},
		{
			name:         "error - empty name",
			taskName:     "   ",
			priority:     task.PriorityHigh,
			setupMock:    func(m *MockTaskRepository) {},
			expectedCode: service.CodeValidation,
		},
		{
			name:     "error - store failure",
			taskName: "Buy milk",
			priority: task.PriorityLow,
			setupMock: func(m *MockTaskRepository) {
				m.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))
			},
			expectedCode: service.CodeStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tt.setupMock(mockRepo)

			svc := service.NewTaskService(mockRepo)
			result, err := svc.CreateTask(ctx, "u1", tt.taskName, &deadline, tt.priority)

			if tt.expectedCode != "" {
				require.Error(t, err)
				assert.Nil(t, result)
				assert.True(t, service.IsCode(err, tt.expectedCode), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedPrio, result.Priority)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

// TestTaskService_ListTasks проверяет, что ранги считаются по UUID, а не по порядку списка
func TestTaskService_ListTasks(t *testing.T) {
	ctx := context.Background()

	first := &task.Task{UUID: uuid.Must(uuid.NewV7()), Owner: "u1", Name: "first", Priority: task.PriorityLow}
	second := &task.Task{UUID: uuid.Must(uuid.NewV7()), Owner: "u1", Name: "second", Priority: task.PriorityHigh}
	third := &task.Task{UUID: uuid.Must(uuid.NewV7()), Owner: "u1", Name: "third", Priority: task.PriorityMedium}
	foreign := &task.Task{UUID: uuid.Must(uuid.NewV7()), Owner: "u2", Name: "foreign"}

	mockRepo := new(MockTaskRepository)
	mockRepo.On("ListByOwner", mock.Anything, "u1").
		Return([]*task.Task{second, third, first, foreign}, nil)

	svc := service.NewTaskService(mockRepo)
	tasks, err := svc.ListTasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, "second", tasks[0].Name)
	assert.Equal(t, 2, tasks[0].Rank)
	assert.Equal(t, "third", tasks[1].Name)
	assert.Equal(t, 3, tasks[1].Rank)
	assert.Equal(t, "first", tasks[2].Name)
	assert.Equal(t, 1, tasks[2].Rank)
	mockRepo.AssertExpectations(t)
}

func TestTaskService_ListTasks_StoreError(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	mockRepo.On("ListByOwner", mock.Anything, "u1").Return(nil, errors.New("boom"))

	svc := service.NewTaskService(mockRepo)
	_, err := svc.ListTasks(context.Background(), "u1")
	assert.True(t, service.IsCode(err, service.CodeStore))
}

// TestTaskService_CompleteTask тестирует завершение задачи по рангу
func TestTaskService_CompleteTask(t *testing.T) {
	ctx := context.Background()
	taskID := uuid.Must(uuid.NewV7())

	tests := []struct {
		name         string
		rank         int
		setupMock    func(*MockTaskRepository)
		expectedCode string
	}{
		{
			name: "success - mark complete",
			rank: 1,
			setupMock: func(m *MockTaskRepository) {
				m.On("GetByOwnerAndRank", mock.Anything, "u1", 1).
					Return(&task.Task{UUID: taskID, Owner: "u1", Name: "Buy milk"}, nil)
				m.On("MarkComplete", mock.Anything, taskID, "u1", mock.AnythingOfType("time.Time")).Return(nil)
			},
		},
		{
			name:         "error - zero rank",
			rank:         0,
			setupMock:    func(m *MockTaskRepository) {},
			expectedCode: service.CodeValidation,
		},
		{
			name: "error - rank not found",
			rank: 5,
			setupMock: func(m *MockTaskRepository) {
				m.On("GetByOwnerAndRank", mock.Anything, "u1", 5).Return(nil, repository.ErrNotFound)
			},
			expectedCode: service.CodeNotFound,
		},
		{
			name: "error - already completed",
			rank: 1,
			setupMock: func(m *MockTaskRepository) {
				m.On("GetByOwnerAndRank", mock.Anything, "u1", 1).
					Return(&task.Task{UUID: taskID, Owner: "u1"}, nil)
				m.On("MarkComplete", mock.Anything, taskID, "u1", mock.Anything).Return(repository.ErrAlreadyCompleted)
			},
			expectedCode: service.CodeAlreadyCompleted,
		},
		{
			name: "error - foreign owner returned by store",
			rank: 1,
			setupMock: func(m *MockTaskRepository) {
				m.On("GetByOwnerAndRank", mock.Anything, "u1", 1).
					Return(&task.Task{UUID: taskID, Owner: "u2"}, nil)
			},
			expectedCode: service.CodeNotFound,
		},
		{
			name: "error - store failure",
			rank: 1,
			setupMock: func(m *MockTaskRepository) {
				m.On("GetByOwnerAndRank", mock.Anything, "u1", 1).
					Return(&task.Task{UUID: taskID, Owner: "u1"}, nil)
				m.On("MarkComplete", mock.Anything, taskID, "u1", mock.Anything).Return(errors.New("timeout"))
			},
			expectedCode: service.CodeStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tt.setupMock(mockRepo)

			svc := service.NewTaskService(mockRepo)
			result, err := svc.CompleteTask(ctx, "u1", tt.rank)

			if tt.expectedCode != "" {
				require.Error(t, err)
				assert.True(t, service.IsCode(err, tt.expectedCode), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.True(t, result.Completed)
				assert.NotNil(t, result.CompletedAt)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

// TestTaskService_DeleteTask тестирует удаление задачи по рангу
func TestTaskService_DeleteTask(t *testing.T) {
	ctx := context.Background()
	taskID := uuid.Must(uuid.NewV7())

	t.Run("success - delete own task", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		mockRepo.On("GetByOwnerAndRank", mock.Anything, "u1", 2).
			Return(&task.Task{UUID: taskID, Owner: "u1", Name: "old"}, nil)
		mockRepo.On("Delete", mock.Anything, taskID, "u1").Return(nil)

		svc := service.NewTaskService(mockRepo)
		result, err := svc.DeleteTask(ctx, "u1", 2)

		require.NoError(t, err)
		assert.Equal(t, "old", result.Name)
		mockRepo.AssertExpectations(t)
	})

	t.Run("error - no tasks at all", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		mockRepo.On("GetByOwnerAndRank", mock.Anything, "u1", 1).Return(nil, repository.ErrNotFound)

		svc := service.NewTaskService(mockRepo)
		_, err := svc.DeleteTask(ctx, "u1", 1)

		assert.True(t, service.IsCode(err, service.CodeNotFound))
		mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("error - deleted concurrently", func(t *testing.T) {
		mockRepo := new(MockTaskRepository)
		mockRepo.On("GetByOwnerAndRank", mock.Anything, "u1", 1).
			Return(&task.Task{UUID: taskID, Owner: "u1"}, nil)
		mockRepo.On("Delete", mock.Anything, taskID, "u1").Return(repository.ErrNotFound)

		svc := service.NewTaskService(mockRepo)
		_, err := svc.DeleteTask(ctx, "u1", 1)

		assert.True(t, service.IsCode(err, service.CodeNotFound))
	})
}

func TestBusinessError(t *testing.T) {
	cause := errors.New("cause")
	err := service.NewStoreError("создание задачи", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), service.CodeStore)

	busErr := service.NewBusinessError("CUSTOM", "msg", service.ToDetail("k", 1))
	assert.Equal(t, 1, busErr.Details["k"])
	assert.Equal(t, "[CUSTOM] msg", busErr.Error())
}
