package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sarafan/internal/config"
	"sarafan/internal/handlers"
)

// MessageDispatcher принимает входящие сообщения на асинхронную обработку.
type MessageDispatcher interface {
	Dispatch(in handlers.Inbound)
}

// ApiDependencies содержит зависимости для обработчиков API.
type ApiDependencies struct {
	Config     *config.Config
	Dispatcher MessageDispatcher
}

// SetupRoutes настраивает все маршруты для API.
func SetupRoutes(r chi.Router, deps ApiDependencies) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSONSuccess(w, http.StatusOK, "ok")
	})

	r.Group(func(r chi.Router) {
		r.Use(SignatureMiddleware(deps.Config.WebhookSecret))
		r.Post("/webhook", WebhookHandler(deps))
	})
}
