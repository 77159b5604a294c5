package handlers

import (
	"errors"
	"fmt"

	"todobot/internal/logger"
	"todobot/internal/service"

	"go.uber.org/zap"
)

// businessErrorText превращает ошибку сервиса в одну строку для пользователя.
// Внутренние подробности наружу не попадают.
func businessErrorText(err error, rank int, usage string) string {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		logger.Error("Router: Неожиданная ошибка", err)
		return msgStoreFailure
	}

	logger.Warn("Router: Бизнес-ошибка",
		zap.String("error_code", businessErr.Code),
		zap.Int("rank", rank))

	switch businessErr.Code {
	case service.CodeNotFound:
		return fmt.Sprintf(msgNotFound, rank)
	case service.CodeValidation:
		return usage
	case service.CodeAlreadyCompleted:
		return fmt.Sprintf(msgAlreadyDone, rank)
	default:
		return msgStoreFailure
	}
}
