package handlers

import (
	"context"

	"todobot/internal/messaging"
	"todobot/internal/models/task"
	"todobot/internal/service"
)

type TaskService interface {
	ListTasks(ctx context.Context, owner string) ([]service.RankedTask, error)
	CompleteTask(ctx context.Context, owner string, rank int) (*task.Task, error)
	DeleteTask(ctx context.Context, owner string, rank int) (*task.Task, error)
}

// Dialogues - движок пошагового добавления задачи.
type Dialogues interface {
	Start(ctx context.Context, userID, channelID string) error
	Deliver(msg messaging.Message) bool
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
