package api

import (
	"net/http"
	"time"

	// Registers the generated API definitions with swag.
	_ "avatar-relay/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter creates and configures a new chi router with all the application's routes.
func NewRouter(chatHandler *ChatHandler, providerHandler *ProviderHandler) *chi.Mux {
	r := chi.NewRouter()

	// --- Global Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- Public Routes ---
	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// --- API Version 1 Routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// JSON routes get a request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// --- Settings ---
			r.Get("/group-settings", chatHandler.GetGroupSettings)
			r.Post("/group-settings", chatHandler.UpdateGroupSettings)

			// --- Chats ---
			r.Get("/chats", chatHandler.GetChats)
			r.Get("/chats/{chatID}", chatHandler.GetChat)
			r.Put("/chats/{chatID}/title", chatHandler.UpdateChatTitle)
			r.Delete("/chats/{chatID}", chatHandler.HandleDeleteChat)

			// --- Messages ---
			r.Get("/messages", chatHandler.GetMessages)
			r.Delete("/messages", chatHandler.ClearMessages)
			r.Post("/messages/deduplicate", chatHandler.DeduplicateMessages)

			// --- Providers ---
			r.Get("/providers", providerHandler.HandleListProviders)
			r.Post("/providers/test", providerHandler.HandleTestProvider)
		})

		// Streaming routes hold the connection open and must NOT have a timeout.
		r.Group(func(r chi.Router) {
			r.Post("/group-chat/messages", chatHandler.HandleGroupMessage)
			r.Post("/chats/messages", chatHandler.HandleStreamMessage)
			r.Get("/events", chatHandler.HandleEvents)
		})
	})

	return r
}
