package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"flashdeck-backend/internal/handlers"
	"flashdeck-backend/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	deckHandler *handlers.DeckHandler,
	cardHandler *handlers.CardHandler,
	generateHandler *handlers.GenerateHandler,
	studyHandler *handlers.StudyHandler,
	dashboardHandler *handlers.DashboardHandler,
	userHandler *handlers.UserHandler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{frontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler)

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Deck & Card Routes ────
		r.Route("/decks", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", deckHandler.List)
			r.Post("/", deckHandler.Create)
			r.Get("/{id}", deckHandler.Get)
			r.Put("/{id}", deckHandler.Update)
			r.Delete("/{id}", deckHandler.Delete)

			r.Post("/{id}/generate", generateHandler.Generate)

			r.Route("/{id}/cards", func(r chi.Router) {
				r.Post("/", cardHandler.Create)
				r.Put("/{cardID}", cardHandler.Update)
				r.Delete("/{cardID}", cardHandler.Delete)
			})
		})

		// ──── Study Session Routes ────
		r.Route("/study/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", studyHandler.Start)
			r.Get("/{id}", studyHandler.Get)
			r.Post("/{id}/events", studyHandler.PostEvent)
			r.Delete("/{id}", studyHandler.End)
		})

		// ──── Dashboard Routes ────
		r.Route("/dashboard", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/stats", dashboardHandler.Stats)
		})

		// ──── User Routes ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", userHandler.Me)
			r.Put("/plan", userHandler.ChangePlan)
		})
	})

	return r
}
