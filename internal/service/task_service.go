package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"todobot/internal/logger"
	"todobot/internal/models/task"
	rep "todobot/internal/repository"

	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики

type TaskService struct {
	repo TaskRepository
	now  func() time.Time
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{
		repo: repo,
		now:  time.Now,
	}
}

// RankedTask - задача вместе с номером, под которым её видит пользователь.
type RankedTask struct {
	*task.Task
	Rank int
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return NewStoreError("проверка здоровья сервиса", err)
	}
	return nil
}

func (s *TaskService) CreateTask(ctx context.Context, owner, name string, deadline *time.Time, priority task.Priority) (*task.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "пустое название")
	}
	if owner == "" {
		return nil, NewValidationError("owner", "пустой владелец")
	}

	if !priority.Valid() {
		priority = task.PriorityMedium
	}

	newTask := task.New(owner,
		task.WithName(name),
		task.WithDeadline(deadline),
		task.WithPriority(priority),
	)

	if err := s.repo.Create(ctx, newTask); err != nil {
		logger.Error("Service: Не удалось создать задачу", err, zap.String("user_id", owner))
		return nil, NewStoreError("создание задачи", err)
	}

	logger.Info("Service: Задача создана",
		zap.String("user_id", owner),
		zap.String("task_id", newTask.UUID.String()))
	return newTask, nil
}

// ListTasks возвращает задачи в порядке отображения и проставляет ранги
// (позиция среди задач владельца по возрастанию UUID).
func (s *TaskService) ListTasks(ctx context.Context, owner string) ([]RankedTask, error) {
	tasks, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		logger.Error("Service: Не удалось получить задачи", err, zap.String("user_id", owner))
		return nil, NewStoreError("получение задач", err)
	}

	own := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Owner != owner {
			logger.Warn("Service: Чужая задача в выборке", zap.String("user_id", owner))
			continue
		}
		own = append(own, t)
	}

	byID := make([]*task.Task, len(own))
	copy(byID, own)
	sortByID(byID)

	ranks := make(map[*task.Task]int, len(byID))
	for i, t := range byID {
		ranks[t] = i + 1
	}

	res := make([]RankedTask, 0, len(own))
	for _, t := range own {
		res = append(res, RankedTask{Task: t, Rank: ranks[t]})
	}
	return res, nil
}

func (s *TaskService) CompleteTask(ctx context.Context, owner string, rank int) (*task.Task, error) {
	t, err := s.resolveRank(ctx, owner, rank)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if err := s.repo.MarkComplete(ctx, t.UUID, owner, at); err != nil {
		switch {
		case errors.Is(err, rep.ErrNotFound):
			return nil, NewNotFound(owner, rank)
		case errors.Is(err, rep.ErrAlreadyCompleted):
			return nil, NewBusinessError(CodeAlreadyCompleted, "задача уже выполнена",
				ToDetail("rank", rank))
		}
		logger.Error("Service: Не удалось отметить задачу", err, zap.String("task_id", t.UUID.String()))
		return nil, NewStoreError("отметка выполнения", err)
	}

	t.Completed = true
	t.CompletedAt = &at
	return t, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, owner string, rank int) (*task.Task, error) {
	t, err := s.resolveRank(ctx, owner, rank)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Delete(ctx, t.UUID, owner); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return nil, NewNotFound(owner, rank)
		}
		logger.Error("Service: Не удалось удалить задачу", err, zap.String("task_id", t.UUID.String()))
		return nil, NewStoreError("удаление задачи", err)
	}

	logger.Info("Service: Задача удалена",
		zap.String("user_id", owner),
		zap.String("task_id", t.UUID.String()))
	return t, nil
}

// resolveRank переводит пользовательский номер в реальную задачу владельца.
func (s *TaskService) resolveRank(ctx context.Context, owner string, rank int) (*task.Task, error) {
	if rank < 1 {
		return nil, NewValidationError("rank", "номер должен быть положительным")
	}

	t, err := s.repo.GetByOwnerAndRank(ctx, owner, rank)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("user_id", owner), zap.Int("rank", rank))
			return nil, NewNotFound(owner, rank)
		}
		return nil, NewStoreError("поиск задачи", err)
	}

	if t.Owner != owner {
		logger.Warn("Service: Несовпадение владельца", zap.String("user_id", owner), zap.Int("rank", rank))
		return nil, NewNotFound(owner, rank)
	}
	return t, nil
}

func sortByID(tasks []*task.Task) {
	sort.Slice(tasks, func(i, j int) bool { return task.CompareID(tasks[i].UUID, tasks[j].UUID) < 0 })
}
