package app

import (
	"net/http"

	"todobot/internal/handlers"
	"todobot/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func NewRouter(health *handlers.HealthHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)

	r.Get("/health", health.HealthCheck)

	return r
}
