package handlers

import (
	"context"
	"net/http"
	"time"

	"todobot/internal/handlers/dto"
	"todobot/internal/logger"

	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	checker HealthChecker
}

func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.checker.HealthCheck(ctx); err != nil {
		logger.Warn("HTTP: Хранилище недоступно", zap.Error(err))
		responseWithJSON(w, http.StatusServiceUnavailable, dto.HealthResponse{
			Status: "unavailable",
			Error:  "store unreachable",
		})
		return
	}

	responseWithJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}
