package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"todobot/internal/logger"
	"todobot/internal/models/task"
	repo "todobot/internal/repository"

	"github.com/google/uuid"
)

type TaskStorage struct {
	storage map[uuid.UUID]*task.Task
	mtx     *sync.RWMutex
	// ids отсортированы по возрастанию, на этом строится ранг задачи
	ids []uuid.UUID
	now func() time.Time
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[uuid.UUID]*task.Task),
		mtx:     &sync.RWMutex{},
		ids:     []uuid.UUID{},
		now:     time.Now,
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if taskToCreate.UUID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("генерация идентификатора: %w", err)
		}
		taskToCreate.UUID = id
	}
	if _, ok := s.storage[taskToCreate.UUID]; ok {
		return fmt.Errorf("задача %s уже существует", taskToCreate.UUID)
	}

	taskToCreate.CreatedAt = s.now()
	taskToCreate.Completed = false
	taskToCreate.CompletedAt = nil
	taskToCreate.Reminded = false

	s.storage[taskToCreate.UUID] = clone(taskToCreate)

	pos := sort.Search(len(s.ids), func(i int) bool {
		return task.CompareID(s.ids[i], taskToCreate.UUID) > 0
	})
	s.ids = append(s.ids, uuid.Nil)
	copy(s.ids[pos+1:], s.ids[pos:])
	s.ids[pos] = taskToCreate.UUID
	return nil
}

// задачи владельца в порядке: статус -> приоритет -> срок
func (s *TaskStorage) ListByOwner(ctx context.Context, owner string) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*task.Task{}
	for _, id := range s.ids {
		t := s.storage[id]
		if t.Owner != owner {
			continue
		}
		res = append(res, clone(t))
	}

	sort.SliceStable(res, func(i, j int) bool { return task.Less(res[i], res[j]) })
	return res, nil
}

// ранг - позиция (с 1) среди задач владельца, упорядоченных по UUID
func (s *TaskStorage) GetByOwnerAndRank(ctx context.Context, owner string, rank int) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if rank < 1 {
		return nil, repo.ErrNotFound
	}

	position := 0
	for _, id := range s.ids {
		t := s.storage[id]
		if t.Owner != owner {
			continue
		}
		position++
		if position == rank {
			return clone(t), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *TaskStorage) MarkComplete(ctx context.Context, id uuid.UUID, owner string, at time.Time) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, ok := s.storage[id]
	if !ok || t.Owner != owner {
		return repo.ErrNotFound
	}
	if t.Completed {
		return repo.ErrAlreadyCompleted
	}

	t.Completed = true
	t.CompletedAt = &at
	return nil
}

// полное удаление, только в пределах владельца
func (s *TaskStorage) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, ok := s.storage[id]
	if !ok || t.Owner != owner {
		return repo.ErrNotFound
	}

	delete(s.storage, id)
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return nil
}

func (s *TaskStorage) GetDueForReminder(ctx context.Context, now time.Time, lead time.Duration, limit int) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var tasks []*task.Task
	for _, id := range s.ids {
		t := s.storage[id]
		if t.Due(now, lead) {
			tasks = append(tasks, clone(t))
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Deadline.Before(*tasks[j].Deadline) })
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (s *TaskStorage) MarkReminded(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, ok := s.storage[id]
	if !ok || t.Reminded || t.Deadline == nil {
		return repo.ErrNotFound
	}

	t.Reminded = true
	return nil
}

func clone(t *task.Task) *task.Task {
	c := *t
	if t.Deadline != nil {
		d := *t.Deadline
		c.Deadline = &d
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
