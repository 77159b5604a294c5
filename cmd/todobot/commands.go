package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"todobot/internal/app"
	"todobot/internal/config"
	"todobot/internal/handlers/dto"
	"todobot/internal/logger"
	"todobot/internal/repository/task/postgres"
	"todobot/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func loadConfig(requireToken bool) (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(requireToken); err != nil {
		return nil, fmt.Errorf("конфигурация: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the reminder worker and the health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := app.New(cfg)
			if err := a.Init(ctx); err != nil {
				return errors.Join(err, a.Shutdown())
			}
			return a.Run(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Apply or roll back PostgreSQL migrations"}

	run := func(apply func(dsn string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			if cfg.Repository.Type != config.RepositoryPostgres {
				return fmt.Errorf("миграции нужны только для postgres, сейчас %q", cfg.Repository.Type)
			}
			if err := logger.Init(cfg.Logging.Development); err != nil {
				return err
			}
			defer logger.Sync()
			return apply(cfg.Database.URL)
		}
	}

	cmd.AddCommand(&cobra.Command{Use: "up", Short: "Apply all migrations", RunE: run(postgres.MigrateUp)})
	cmd.AddCommand(&cobra.Command{Use: "down", Short: "Roll back all migrations", RunE: run(postgres.MigrateDown)})
	return cmd
}

func tasksCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks of a user as the bot shows them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), cfg, func(ctx context.Context, svc *service.TaskService) error {
				tasks, err := svc.ListTasks(ctx, owner)
				if err != nil {
					return err
				}

				views := dto.FromTaskList(tasks)
				if viper.GetBool("json") {
					return printJSON(views)
				}

				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "", "Name", "Priority", "Deadline (UTC+8)", "Reminded"})
				for _, v := range views {
					tw.AppendRow(table.Row{v.Rank, v.Marker(), v.Name, v.Priority, v.Deadline, v.Reminded})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "user id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func withService(ctx context.Context, cfg *config.Config, fn func(context.Context, *service.TaskService) error) error {
	repo, closeRepo, err := app.OpenRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()
	return fn(ctx, service.NewTaskService(repo))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
