package inmemory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"todobot/internal/models/task"
	"todobot/internal/repository/task/inmemory"
	"todobot/internal/repository/task/storetest"
	"todobot/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ service.TaskRepository = (*inmemory.TaskStorage)(nil)

// TestTaskStorage_Contract прогоняет общий набор проверок хранилища
func TestTaskStorage_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) service.TaskRepository {
		return inmemory.NewTaskStorage()
	})
}

// TestTaskStorage_HealthCheck тестирует проверку здоровья
func TestTaskStorage_HealthCheck(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	assert.NoError(t, storage.HealthCheck(context.Background()))
}

// TestTaskStorage_ReturnsCopies проверяет, что наружу не отдаются внутренние указатели
func TestTaskStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	tk := task.New("u1", task.WithName("original"))
	require.NoError(t, storage.Create(ctx, tk))

	got, err := storage.GetByOwnerAndRank(ctx, "u1", 1)
	require.NoError(t, err)
	got.Name = "mutated"
	got.Completed = true

	again, err := storage.GetByOwnerAndRank(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Name)
	assert.False(t, again.Completed)
}

// TestTaskStorage_Concurrent - параллельная запись из диалогов и воркера
func TestTaskStorage_Concurrent(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()
	deadline := time.Now().Add(10 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := task.New("u1", task.WithName("parallel"), task.WithDeadline(&deadline))
			assert.NoError(t, storage.Create(ctx, tk))
		}()
	}
	wg.Wait()

	due, err := storage.GetDueForReminder(ctx, time.Now(), 30*time.Minute, 100)
	require.NoError(t, err)
	assert.Len(t, due, 50)

	for _, tk := range due {
		wg.Add(1)
		go func(tk *task.Task) {
			defer wg.Done()
			assert.NoError(t, storage.MarkReminded(ctx, tk.UUID))
		}(tk)
	}
	wg.Wait()

	due, err = storage.GetDueForReminder(ctx, time.Now(), 30*time.Minute, 100)
	require.NoError(t, err)
	assert.Empty(t, due)
}
