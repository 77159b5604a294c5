package middleware

import (
	"context"
	"sync"
	"time"

	"todobot/internal/logger"
	"todobot/internal/messaging"

	"go.uber.org/zap"
)

// MessageMiddleware оборачивает обработчик входящих сообщений чата.
type MessageMiddleware func(messaging.HandlerFunc) messaging.HandlerFunc

// Chain применяет middleware в порядке перечисления: первый - самый внешний.
func Chain(h messaging.HandlerFunc, mws ...MessageMiddleware) messaging.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover не даёт панике в обработчике уронить соединение с чатом.
func Recover(next messaging.HandlerFunc) messaging.HandlerFunc {
	return func(ctx context.Context, msg messaging.Message) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Router: Паника при обработке сообщения", nil,
					zap.Any("panic", rec),
					zap.String("user_id", msg.AuthorID),
					zap.String("channel_id", msg.ChannelID))
			}
		}()
		next(ctx, msg)
	}
}

type clientInfo struct {
	count   int
	resetAt time.Time
}

// RateLimit ограничивает число сообщений от одного пользователя в минуту.
// Лишние сообщения отбрасываются с предупреждением в логе; rpm <= 0 отключает лимит.
func RateLimit(rpm int) MessageMiddleware {
	return rateLimit(rpm, time.Now)
}

func rateLimit(rpm int, now func() time.Time) MessageMiddleware {
	clients := make(map[string]*clientInfo)
	var mtx sync.Mutex
	window := time.Minute

	return func(next messaging.HandlerFunc) messaging.HandlerFunc {
		if rpm <= 0 {
			return next
		}

		return func(ctx context.Context, msg messaging.Message) {
			if msg.FromBot {
				next(ctx, msg)
				return
			}

			current := now()

			mtx.Lock()
			info, exists := clients[msg.AuthorID]
			switch {
			case !exists || current.After(info.resetAt):
				info = &clientInfo{count: 1, resetAt: current.Add(window)}
				clients[msg.AuthorID] = info
			case info.count >= rpm:
				retryAfter := info.resetAt.Sub(current)
				mtx.Unlock()

				logger.Warn("Router: Превышен лимит сообщений",
					zap.String("user_id", msg.AuthorID),
					zap.String("channel_id", msg.ChannelID),
					zap.Int("limit", rpm),
					zap.Duration("retry_after", retryAfter))
				return
			default:
				info.count++
			}
			mtx.Unlock()

			next(ctx, msg)
		}
	}
}
