// Package storetest - общий набор проверок для реализаций service.TaskRepository.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"todobot/internal/models/task"
	"todobot/internal/repository"
	"todobot/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory возвращает пустое хранилище для одного подтеста.
type Factory func(t *testing.T) service.TaskRepository

func Run(t *testing.T, newStore Factory) {
	t.Run("create assigns identity and defaults", func(t *testing.T) { testCreate(t, newStore(t)) })
	t.Run("list is scoped and ordered", func(t *testing.T) { testListByOwner(t, newStore(t)) })
	t.Run("rank is stable and follows id", func(t *testing.T) { testRank(t, newStore(t)) })
	t.Run("complete sets completed_at once", func(t *testing.T) { testMarkComplete(t, newStore(t)) })
	t.Run("delete is owner scoped", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("due for reminder", func(t *testing.T) { testDueForReminder(t, newStore(t)) })
}

func at(d time.Duration) *time.Time {
	v := time.Now().Add(d).Truncate(time.Millisecond)
	return &v
}

func create(t *testing.T, store service.TaskRepository, owner, name string, p task.Priority, deadline *time.Time) *task.Task {
	t.Helper()
	tk := task.New(owner, task.WithName(name), task.WithPriority(p), task.WithDeadline(deadline))
	require.NoError(t, store.Create(context.Background(), tk))
	return tk
}

func testCreate(t *testing.T, store service.TaskRepository) {
	ctx := context.Background()
	deadline := at(24 * time.Hour)

	tk := create(t, store, "u1", "Buy milk", task.PriorityHigh, deadline)

	assert.NotEqual(t, uuid.Nil, tk.UUID)
	assert.False(t, tk.CreatedAt.IsZero())

	got, err := store.GetByOwnerAndRank(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, tk.UUID, got.UUID)
	assert.Equal(t, "Buy milk", got.Name)
	assert.Equal(t, task.PriorityHigh, got.Priority)
	require.NotNil(t, got.Deadline)
	assert.True(t, deadline.Equal(*got.Deadline))
	assert.False(t, got.Completed)
	assert.Nil(t, got.CompletedAt)
	assert.False(t, got.Reminded)

	noDeadline := create(t, store, "u1", "Someday", task.PriorityLow, nil)
	got, err = store.GetByOwnerAndRank(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, noDeadline.UUID, got.UUID)
	assert.Nil(t, got.Deadline)
}

func testListByOwner(t *testing.T, store service.TaskRepository) {
	ctx := context.Background()

	lowSoon := create(t, store, "u1", "low-soon", task.PriorityLow, at(time.Hour))
	highNone := create(t, store, "u1", "high-none", task.PriorityHigh, nil)
	highLater := create(t, store, "u1", "high-later", task.PriorityHigh, at(48*time.Hour))
	done := create(t, store, "u1", "done", task.PriorityHigh, at(time.Hour))
	highSoon := create(t, store, "u1", "high-soon", task.PriorityHigh, at(2*time.Hour))
	create(t, store, "u2", "foreign", task.PriorityHigh, at(time.Hour))

	require.NoError(t, store.MarkComplete(ctx, done.UUID, "u1", time.Now()))

	tasks, err := store.ListByOwner(ctx, "u1")
	require.NoError(t, err)

	var names []string
	for _, tk := range tasks {
		assert.Equal(t, "u1", tk.Owner)
		names = append(names, tk.Name)
	}
	assert.Equal(t, []string{highSoon.Name, highLater.Name, highNone.Name, lowSoon.Name, done.Name}, names)

	empty, err := store.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testRank(t *testing.T, store service.TaskRepository) {
	ctx := context.Background()

	var created []*task.Task
	for i := 0; i < 3; i++ {
		created = append(created, create(t, store, "u1", fmt.Sprintf("task-%d", i), task.PriorityLow, nil))
		create(t, store, "u2", fmt.Sprintf("other-%d", i), task.PriorityHigh, nil)
	}

	for i, expected := range created {
		for attempt := 0; attempt < 2; attempt++ {
			got, err := store.GetByOwnerAndRank(ctx, "u1", i+1)
			require.NoError(t, err)
			assert.Equal(t, expected.UUID, got.UUID)
			assert.Equal(t, "u1", got.Owner)
		}
	}

	_, err := store.GetByOwnerAndRank(ctx, "u1", 4)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.GetByOwnerAndRank(ctx, "u1", 0)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.GetByOwnerAndRank(ctx, "nobody", 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testMarkComplete(t *testing.T, store service.TaskRepository) {
	ctx := context.Background()
	tk := create(t, store, "u1", "finish", task.PriorityMedium, nil)
	doneAt := time.Now().Truncate(time.Millisecond)

	err := store.MarkComplete(ctx, tk.UUID, "u2", doneAt)
	assert.ErrorIs(t, err, repository.ErrNotFound, "чужой владелец не может завершить задачу")

	require.NoError(t, store.MarkComplete(ctx, tk.UUID, "u1", doneAt))

	got, err := store.GetByOwnerAndRank(ctx, "u1", 1)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, doneAt.Equal(*got.CompletedAt))

	err = store.MarkComplete(ctx, tk.UUID, "u1", doneAt.Add(time.Hour))
	assert.ErrorIs(t, err, repository.ErrAlreadyCompleted)

	got, err = store.GetByOwnerAndRank(ctx, "u1", 1)
	require.NoError(t, err)
	assert.True(t, doneAt.Equal(*got.CompletedAt), "completed_at не перезаписывается")

	err = store.MarkComplete(ctx, uuid.Must(uuid.NewV7()), "u1", doneAt)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testDelete(t *testing.T, store service.TaskRepository) {
	ctx := context.Background()
	first := create(t, store, "u1", "first", task.PriorityMedium, nil)
	second := create(t, store, "u1", "second", task.PriorityMedium, nil)

	err := store.Delete(ctx, first.UUID, "u2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, store.Delete(ctx, first.UUID, "u1"))

	err = store.Delete(ctx, first.UUID, "u1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := store.GetByOwnerAndRank(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, second.UUID, got.UUID, "ранги сдвигаются после удаления")
}

func testDueForReminder(t *testing.T, store service.TaskRepository) {
	ctx := context.Background()
	now := time.Now()
	lead := 30 * time.Minute

	due := create(t, store, "u1", "due", task.PriorityMedium, at(20*time.Minute))
	overdue := create(t, store, "u2", "overdue", task.PriorityMedium, at(-time.Hour))
	create(t, store, "u1", "later", task.PriorityMedium, at(2*time.Hour))
	create(t, store, "u1", "no deadline", task.PriorityMedium, nil)
	done := create(t, store, "u1", "done", task.PriorityMedium, at(10*time.Minute))
	require.NoError(t, store.MarkComplete(ctx, done.UUID, "u1", now))

	tasks, err := store.GetDueForReminder(ctx, now, lead, 100)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, overdue.UUID, tasks[0].UUID, "сначала самые ранние сроки")
	assert.Equal(t, due.UUID, tasks[1].UUID)

	limited, err := store.GetDueForReminder(ctx, now, lead, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, overdue.UUID, limited[0].UUID)

	require.NoError(t, store.MarkReminded(ctx, due.UUID))
	assert.ErrorIs(t, store.MarkReminded(ctx, due.UUID), repository.ErrNotFound)

	tasks, err = store.GetDueForReminder(ctx, now, lead, 100)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, overdue.UUID, tasks[0].UUID)

	// просроченная и напомненная задача больше не возвращается
	require.NoError(t, store.MarkReminded(ctx, overdue.UUID))
	tasks, err = store.GetDueForReminder(ctx, now.Add(24*time.Hour), lead, 100)
	require.NoError(t, err)
	for _, tk := range tasks {
		assert.NotEqual(t, due.UUID, tk.UUID)
		assert.NotEqual(t, overdue.UUID, tk.UUID)
	}

	noDeadline, err := store.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	for _, tk := range noDeadline {
		if tk.Deadline == nil {
			assert.ErrorIs(t, store.MarkReminded(ctx, tk.UUID), repository.ErrNotFound)
		}
	}
}
