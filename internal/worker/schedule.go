package worker

import (
	"context"
	"fmt"

	"todobot/internal/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartSchedule запускает проверки по cron-расписанию ("*/5 * * * *", "@every 1m")
// вместо фиксированного интервала и блокируется до отмены ctx.
func (w *ReminderWorker) StartSchedule(ctx context.Context, spec string) error {
	c := cron.New(
		cron.WithLogger(logger.CronLogger{}),
		cron.WithChain(cron.Recover(logger.CronLogger{}), cron.SkipIfStillRunning(logger.CronLogger{})),
	)

	if _, err := c.AddFunc(spec, func() { w.Check(ctx) }); err != nil {
		return fmt.Errorf("расписание %q: %w", spec, err)
	}

	c.Start()
	logger.Info("Worker: Напоминания запущены по расписанию", zap.String("schedule", spec))

	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	logger.Info("Worker: Напоминания останавливаются")
	return nil
}
