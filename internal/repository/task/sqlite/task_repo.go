package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"todobot/internal/logger"
	"todobot/internal/models/task"
	repo "todobot/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// сроки и отметки времени хранятся как миллисекунды unix epoch
const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	uuid         TEXT PRIMARY KEY,
	owner        TEXT NOT NULL,
	name         TEXT NOT NULL,
	deadline     INTEGER,
	priority     TEXT NOT NULL DEFAULT 'medium',
	completed    INTEGER NOT NULL DEFAULT 0,
	completed_at INTEGER,
	created_at   INTEGER NOT NULL,
	reminded     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner, uuid);
CREATE INDEX IF NOT EXISTS idx_tasks_reminder ON tasks(completed, reminded, deadline);
`

const columns = `uuid, owner, name, deadline, priority, completed, completed_at, created_at, reminded`

type Storage struct {
	db *sql.DB
}

// New открывает (или создаёт) файл базы и применяет схему.
func New(ctx context.Context, path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("создание каталога базы: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("Repository: Ошибка открытия SQLite", err)
		return nil, fmt.Errorf("открытие базы: %w", err)
	}
	// один писатель: воркер и обработчик сообщений делят соединение
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		logger.Error("Repository: Не удалось применить схему", err)
		return nil, fmt.Errorf("применение схемы: %w", err)
	}

	logger.Info("Repository: Успешное открытие SQLite", zap.String("path", path))
	return &Storage{db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	logger.Info("Repository: Закрытие SQLite")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()

	if taskToCreate.UUID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("генерация идентификатора: %w", err)
		}
		taskToCreate.UUID = id
	}
	createdAt := time.Now().Truncate(time.Millisecond)

	query := `INSERT INTO tasks (uuid, owner, name, deadline, priority, completed, completed_at, created_at, reminded)
				VALUES (?, ?, ?, ?, ?, 0, NULL, ?, 0)`

	_, err := s.db.ExecContext(ctx, query,
		taskToCreate.UUID.String(),
		taskToCreate.Owner,
		taskToCreate.Name,
		toMillis(taskToCreate.Deadline),
		string(taskToCreate.Priority),
		createdAt.UnixMilli(),
	)
	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}

	taskToCreate.CreatedAt = createdAt
	taskToCreate.Completed = false
	taskToCreate.CompletedAt = nil
	taskToCreate.Reminded = false

	slowQuery(start, 50*time.Millisecond)
	return nil
}

func (s *Storage) ListByOwner(ctx context.Context, owner string) ([]*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + columns + ` FROM tasks
				WHERE owner = ?
				ORDER BY completed ASC,
					CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
					deadline IS NULL,
					deadline ASC,
					uuid ASC`

	tasks, err := s.query(ctx, query, owner)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	slowQuery(start, 100*time.Millisecond)
	return tasks, nil
}

func (s *Storage) GetByOwnerAndRank(ctx context.Context, owner string, rank int) (*task.Task, error) {
	if rank < 1 {
		return nil, repo.ErrNotFound
	}
	start := time.Now()

	query := `SELECT ` + columns + ` FROM tasks
				WHERE owner = ?
				ORDER BY uuid ASC
				LIMIT 1 OFFSET ?`

	t, err := scanTask(s.db.QueryRowContext(ctx, query, owner, rank-1))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	slowQuery(start, 100*time.Millisecond)
	return t, nil
}

func (s *Storage) MarkComplete(ctx context.Context, id uuid.UUID, owner string, at time.Time) error {
	start := time.Now()

	query := `UPDATE tasks
				SET completed = 1,
					completed_at = ?
				WHERE uuid = ? AND owner = ? AND completed = 0`

	res, err := s.db.ExecContext(ctx, query, at.UnixMilli(), id.String(), owner)
	if err != nil {
		logger.Error("Repository: Не удалось отметить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("отметка выполнения: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("отметка выполнения: %w", err)
	}
	if affected == 0 {
		return s.completionConflict(ctx, id, owner)
	}

	slowQuery(start, 100*time.Millisecond)
	return nil
}

// completionConflict различает "нет задачи" и "уже выполнена"
func (s *Storage) completionConflict(ctx context.Context, id uuid.UUID, owner string) error {
	var completed bool
	err := s.db.QueryRowContext(ctx, `SELECT completed FROM tasks WHERE uuid = ? AND owner = ?`, id.String(), owner).Scan(&completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repo.ErrNotFound
		}
		return fmt.Errorf("проверка задачи: %w", err)
	}
	if completed {
		return repo.ErrAlreadyCompleted
	}
	return repo.ErrNotFound
}

func (s *Storage) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	start := time.Now()

	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE uuid = ? AND owner = ?`, id.String(), owner)
	if err != nil {
		logger.Error("Repository: Полное удаление задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("полное удаление: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("полное удаление: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}

	slowQuery(start, 100*time.Millisecond)
	return nil
}

func (s *Storage) GetDueForReminder(ctx context.Context, now time.Time, lead time.Duration, limit int) ([]*task.Task, error) {
	start := time.Now()
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT ` + columns + ` FROM tasks
				WHERE completed = 0
					AND reminded = 0
					AND deadline IS NOT NULL
					AND deadline <= ?
				ORDER BY deadline ASC
				LIMIT ?`

	tasks, err := s.query(ctx, query, now.Add(lead).UnixMilli(), limit)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	slowQuery(start, 100*time.Millisecond)
	return tasks, nil
}

func (s *Storage) MarkReminded(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE tasks
				SET reminded = 1
				WHERE uuid = ? AND reminded = 0 AND deadline IS NOT NULL`

	res, err := s.db.ExecContext(ctx, query, id.String())
	if err != nil {
		logger.Error("Repository: Не удалось отметить напоминание", err)
		return fmt.Errorf("отметка напоминания: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("отметка напоминания: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) query(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования задачи", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*task.Task, error) {
	var (
		t           task.Task
		id          string
		priority    string
		deadline    sql.NullInt64
		completedAt sql.NullInt64
		createdAt   int64
	)

	err := row.Scan(
		&id,
		&t.Owner,
		&t.Name,
		&deadline,
		&priority,
		&t.Completed,
		&completedAt,
		&createdAt,
		&t.Reminded,
	)
	if err != nil {
		return nil, err
	}

	t.UUID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("разбор идентификатора %q: %w", id, err)
	}
	t.Priority = task.Priority(priority)
	t.Deadline = fromMillis(deadline)
	t.CompletedAt = fromMillis(completedAt)
	t.CreatedAt = time.UnixMilli(createdAt)
	return &t, nil
}

func toMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func slowQuery(start time.Time, threshold time.Duration) {
	if time.Since(start) > threshold {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
}
