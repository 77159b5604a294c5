package app

import (
	"context"
	"fmt"

	"todobot/internal/config"
	"todobot/internal/logger"
	"todobot/internal/repository/task/inmemory"
	"todobot/internal/repository/task/postgres"
	"todobot/internal/repository/task/sqlite"
	"todobot/internal/service"

	"go.uber.org/zap"
)

// OpenRepository создаёт хранилище по repository.type.
// Вторым значением возвращается функция закрытия.
func OpenRepository(ctx context.Context, cfg *config.Config) (service.TaskRepository, func(), error) {
	logger.Info("App: Открытие хранилища", zap.String("type", cfg.Repository.Type))

	switch cfg.Repository.Type {
	case config.RepositoryInMemory:
		return inmemory.NewTaskStorage(), func() {}, nil

	case config.RepositorySQLite:
		storage, err := sqlite.New(ctx, cfg.Repository.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("открытие sqlite: %w", err)
		}
		return storage, storage.Close, nil

	case config.RepositoryPostgres:
		storage, err := postgres.New(ctx, cfg.Database.URL, postgres.Options{
			MaxConns:    cfg.Database.MaxConnections,
			MinConns:    cfg.Database.MinConnections,
			IdleTimeout: cfg.Database.IdleTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			storage.Close()
			return nil, nil, fmt.Errorf("миграции postgres: %w", err)
		}
		return storage, storage.Close, nil

	default:
		return nil, nil, fmt.Errorf("неизвестный тип репозитория %q", cfg.Repository.Type)
	}
}
