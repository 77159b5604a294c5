package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"todobot/internal/config"
	"todobot/internal/conversation"
	"todobot/internal/handlers"
	"todobot/internal/logger"
	"todobot/internal/messaging"
	"todobot/internal/middleware"
	"todobot/internal/service"
	"todobot/internal/timeparse"
	"todobot/internal/transport/discord"
	"todobot/internal/worker"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// Transport - мессенджер, из которого приходят сообщения и куда уходят ответы.
type Transport interface {
	messaging.Messenger
	Start(ctx context.Context, handler messaging.HandlerFunc) error
	Close() error
}

type App struct {
	config     *config.Config
	server     *http.Server
	transport  Transport
	repository service.TaskRepository // интерфейс!
	service    *service.TaskService
	engine     *conversation.Engine
	handler    *handlers.MessageHandler
	worker     *worker.ReminderWorker
	shutdowns  []shutdown

	wg sync.WaitGroup
}

type shutdown struct {
	name string
	fn   func(ctx context.Context) error
}

type Option func(*App)

// WithTransport подменяет Discord другим мессенджером.
func WithTransport(t Transport) Option {
	return func(a *App) {
		a.transport = t
	}
}

func New(cfg *config.Config, opts ...Option) *App {
	a := &App{
		config:    cfg,
		shutdowns: make([]shutdown, 0),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *App) onShutdown(name string, fn func(ctx context.Context) error) {
	a.shutdowns = append(a.shutdowns, shutdown{name: name, fn: fn})
}

// Init собирает зависимости: хранилище, сервис, диалоги, роутер, воркер и HTTP.
func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.onShutdown("logger", func(context.Context) error {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
		return nil
	})

	repo, closeRepo, err := OpenRepository(ctx, a.config)
	if err != nil {
		return err
	}
	a.repository = repo
	a.onShutdown("repository", func(context.Context) error {
		closeRepo()
		return nil
	})

	if a.transport == nil {
		bot, err := discord.New(a.config.Discord.Token)
		if err != nil {
			return err
		}
		a.transport = bot
	}

	a.service = service.NewTaskService(a.repository)

	parser := timeparse.New(timeparse.WithShiftToday(a.config.Timezone.ShiftToday))
	a.engine = conversation.NewEngine(a.service, parser, a.transport,
		conversation.WithTimeout(a.config.Dialogue.Timeout))

	a.handler = handlers.NewMessageHandler(a.service, a.engine, a.transport,
		handlers.WithChannels(a.config.Discord.ChannelIDs...))
	if len(a.config.Discord.ChannelIDs) == 0 {
		logger.Warn("App: discord.channel_ids пуст, бот отвечает во всех каналах сервера")
	}

	interval, lead, batch := a.config.Reminder.Interval, a.config.Reminder.Lead, a.config.Reminder.BatchSize
	a.worker = worker.NewReminderWorker(a.repository, a.transport, &interval, &lead, &batch)

	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           NewRouter(handlers.NewHealthHandler(a.service)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("App: Зависимости собраны",
		zap.String("repository", a.config.Repository.Type),
		zap.Strings("channels", a.config.Discord.ChannelIDs),
		zap.Bool("shift_today", a.config.Timezone.ShiftToday))
	return nil
}

// MessageHandler - обработчик входящих сообщений со всеми middleware.
func (a *App) MessageHandler() messaging.HandlerFunc {
	return middleware.Chain(a.handler.HandleMessage,
		middleware.Recover,
		middleware.RateLimit(a.config.Discord.RateLimit),
	)
}

// Run запускает бота, воркер напоминаний и health-сервер и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if a.handler == nil {
		return errors.New("app: Init не вызван")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if spec := a.config.Reminder.Schedule; spec != "" {
			if err := a.worker.StartSchedule(runCtx, spec); err != nil {
				logger.Error("Worker: Расписание не запущено", err)
			}
			return
		}
		a.worker.Start(runCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP: Health-сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	a.onShutdown("http_server", a.server.Shutdown)
	// диалоги и воркер живут в runCtx
	a.onShutdown("background", func(context.Context) error {
		cancel()
		a.wg.Wait()
		a.engine.Wait()
		return nil
	})

	if err := a.transport.Start(runCtx, a.MessageHandler()); err != nil {
		return errors.Join(err, a.Shutdown())
	}
	a.onShutdown("transport", func(context.Context) error {
		return a.transport.Close()
	})

	logger.Info("App: Бот запущен")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		logger.Error("HTTP: Сервер упал", runErr)
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown выполняет зарегистрированные функции в обратном порядке.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result error
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		s := a.shutdowns[i]
		if err := s.fn(ctx); err != nil {
			logger.Error("App: Ошибка при остановке", err, zap.String("component", s.name))
			result = errors.Join(result, err)
			continue
		}
		logger.Info("App: Компонент остановлен", zap.String("component", s.name))
	}
	a.shutdowns = nil
	return result
}
