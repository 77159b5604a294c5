package service

import (
	"context"
	"time"

	"todobot/internal/models/task"

	"github.com/google/uuid"
)

// TaskRepository - хранилище задач. Все изменения ограничены владельцем,
// кроме MarkReminded, которым пользуется только фоновый воркер.
type TaskRepository interface {
	HealthCheck(context.Context) error
	// Create присваивает UUID (если пустой) и created_at
	Create(context.Context, *task.Task) error
	ListByOwner(ctx context.Context, owner string) ([]*task.Task, error)
	GetByOwnerAndRank(ctx context.Context, owner string, rank int) (*task.Task, error)
	// MarkComplete: ErrNotFound если задачи нет у владельца, ErrAlreadyCompleted если уже выполнена
	MarkComplete(ctx context.Context, id uuid.UUID, owner string, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID, owner string) error
	GetDueForReminder(ctx context.Context, now time.Time, lead time.Duration, limit int) ([]*task.Task, error)
	// MarkReminded: ErrNotFound если задачи нет, у неё нет срока или флаг уже стоит
	MarkReminded(ctx context.Context, id uuid.UUID) error
}
