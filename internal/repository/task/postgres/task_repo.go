package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todobot/internal/logger"
	"todobot/internal/models/task"
	repo "todobot/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const columns = `uuid,
				owner,
				name,
				deadline,
				priority,
				completed,
				completed_at,
				created_at,
				reminded`

type Options struct {
	MaxConns    int32
	MinConns    int32
	IdleTimeout time.Duration
}

type Storage struct {
	pool *pgxpool.Pool
	dsn  string
}

func New(ctx context.Context, connString string, opts Options) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.IdleTimeout > 0 {
		config.MaxConnIdleTime = opts.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool, dsn: connString}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	logger.Info("Repository: Соединение стабильно")
	return nil
}

// Migrate применяет встроенные миграции к базе этого хранилища
func (s *Storage) Migrate(ctx context.Context) error {
	return MigrateUp(s.dsn)
}

func (s *Storage) Down(ctx context.Context) error {
	return MigrateDown(s.dsn)
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

	query := `INSERT INTO tasks
				(uuid, owner, name, deadline, priority, completed, completed_at, created_at, reminded)
				VALUES ($1, $2, $3, $4, $5, FALSE, NULL, $6, FALSE)
				RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		taskToCreate.UUID,
		taskToCreate.Owner,
		taskToCreate.Name,
		taskToCreate.Deadline,
		string(taskToCreate.Priority),
		time.Now(),
	).Scan(&taskToCreate.CreatedAt)

	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}

	taskToCreate.Completed = false
	taskToCreate.CompletedAt = nil
	taskToCreate.Reminded = false

	if time.Since(start) > time.Millisecond*50 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

// задачи владельца: статус -> приоритет -> срок (без срока в конце)
func (s *Storage) ListByOwner(ctx context.Context, owner string) ([]*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + columns + `
				FROM tasks
				WHERE owner = $1
				ORDER BY completed ASC,
					CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
					deadline ASC NULLS LAST,
					uuid ASC`

	tasks, err := s.query(ctx, query, owner)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return tasks, nil
}

func (s *Storage) GetByOwnerAndRank(ctx context.Context, owner string, rank int) (*task.Task, error) {
	if rank < 1 {
		return nil, repo.ErrNotFound
	}
	start := time.Now()

	query := `SELECT ` + columns + `
				FROM tasks
				WHERE owner = $1
				ORDER BY uuid ASC
				LIMIT 1 OFFSET $2`

	t, err := scanTask(s.pool.QueryRow(ctx, query, owner, rank-1))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return t, nil
}

func (s *Storage) MarkComplete(ctx context.Context, id uuid.UUID, owner string, at time.Time) error {
	start := time.Now()

	query := `UPDATE tasks
				SET completed = TRUE,
					completed_at = $3
				WHERE uuid = $1 AND owner = $2 AND completed = FALSE`

	tag, err := s.pool.Exec(ctx, query, id, owner, at)
	if err != nil {
		logger.Error("Repository: Не удалось отметить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("отметка выполнения: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var completed bool
		err := s.pool.QueryRow(ctx, `SELECT completed FROM tasks WHERE uuid = $1 AND owner = $2`, id, owner).Scan(&completed)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repo.ErrNotFound
			}
			return fmt.Errorf("проверка задачи: %w", err)
		}
		if completed {
			return repo.ErrAlreadyCompleted
		}
		return repo.ErrNotFound
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

// полное удаление из БД, только в пределах владельца
func (s *Storage) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	start := time.Now()

	query := `DELETE FROM tasks
				WHERE uuid = $1 AND owner = $2`

	tag, err := s.pool.Exec(ctx, query, id, owner)
	if err != nil {
		logger.Error("Repository: Полное удаление задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("полное удаление: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) GetDueForReminder(ctx context.Context, now time.Time, lead time.Duration, limit int) ([]*task.Task, error) {
	start := time.Now()

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	query := `SELECT ` + columns + `
				FROM tasks
				WHERE completed = FALSE
					AND reminded = FALSE
					AND deadline IS NOT NULL
					AND deadline <= $1
				ORDER BY deadline ASC
				LIMIT $2`

	tasks, err := s.query(ctx, query, now.Add(lead), limitArg)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	if time.Since(start) > time.Millisecond*50+time.Millisecond*10*time.Duration(len(tasks)) {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return tasks, nil
}

func (s *Storage) MarkReminded(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE tasks
				SET reminded = TRUE
				WHERE uuid = $1 AND reminded = FALSE AND deadline IS NOT NULL`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		logger.Error("Repository: Не удалось отметить напоминание", err)
		return fmt.Errorf("отметка напоминания: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) query(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return tasks, nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	var priority string

	err := row.Scan(
		&t.UUID,
		&t.Owner,
		&t.Name,
		&t.Deadline,
		&priority,
		&t.Completed,
		&t.CompletedAt,
		&t.CreatedAt,
		&t.Reminded,
	)
	if err != nil {
		return nil, err
	}

	t.Priority = task.Priority(priority)
	return t, nil
}
