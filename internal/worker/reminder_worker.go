package worker

import (
	"context"
	"fmt"
	"time"

	"todobot/internal/logger"
	"todobot/internal/messaging"
	"todobot/internal/models/task"
	"todobot/internal/service"
	"todobot/internal/timeparse"

	"go.uber.org/zap"
)

const (
	DefaultInterval  = time.Minute
	DefaultLead      = 30 * time.Minute
	DefaultBatchSize = 100
)

type ReminderWorker struct {
	repo      service.TaskRepository
	notifier  messaging.DirectSender
	interval  time.Duration
	lead      time.Duration
	batchSize int
	now       func() time.Time
}

// NewReminderWorker - nil в параметрах означает значение по умолчанию.
func NewReminderWorker(repo service.TaskRepository, notifier messaging.DirectSender, interval, lead *time.Duration, batchSize *int) *ReminderWorker {
	w := &ReminderWorker{
		repo:      repo,
		notifier:  notifier,
		interval:  DefaultInterval,
		lead:      DefaultLead,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
	if interval != nil && *interval > 0 {
		w.interval = *interval
	}
	if lead != nil && *lead >= 0 {
		w.lead = *lead
	}
	if batchSize != nil && *batchSize > 0 {
		w.batchSize = *batchSize
	}
	return w
}

// SetClock подменяет источник текущего времени.
func (w *ReminderWorker) SetClock(now func() time.Time) {
	w.now = now
}

func (w *ReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Worker: Напоминания запущены",
		zap.Duration("interval", w.interval),
		zap.Duration("lead", w.lead))

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Напоминания останавливаются")
			return
		}
	}
}

// Check - один проход: отправляет напоминания по задачам, срок которых
// наступает в пределах окна, и возвращает число успешно отправленных.
func (w *ReminderWorker) Check(ctx context.Context) int {
	start := time.Now()

	tasks, err := w.repo.GetDueForReminder(ctx, w.now(), w.lead, w.batchSize)
	if err != nil {
		logger.Warn("Worker: Ошибка получения задач", zap.Error(err))
		return 0
	}

	reminded := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		if err := w.remind(ctx, t); err != nil {
			logger.Warn("Worker: Напоминание не доставлено",
				zap.String("task_id", t.UUID.String()),
				zap.String("user_id", t.Owner),
				zap.Error(err))
			continue
		}
		reminded++
	}

	logger.Info("Worker: Завершение проверки",
		zap.Duration("ms", time.Since(start)),
		zap.Int("due", len(tasks)),
		zap.Int("reminded", reminded))

	return reminded
}

// remind отмечает задачу только после успешной отправки;
// при ошибке флаг остаётся снятым и задача попадёт в следующий проход.
func (w *ReminderWorker) remind(ctx context.Context, t *task.Task) error {
	if err := w.notifier.SendDirect(ctx, t.Owner, ReminderText(t)); err != nil {
		return fmt.Errorf("отправка: %w", err)
	}

	if err := w.repo.MarkReminded(ctx, t.UUID); err != nil {
		return fmt.Errorf("отметка о напоминании: %w", err)
	}
	return nil
}

func ReminderText(t *task.Task) string {
	return fmt.Sprintf("🔔 **任务即将到期**\n📌 %s\n⏰ 截止时间：%s", t.Name, timeparse.Format(t.Deadline))
}
