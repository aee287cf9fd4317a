package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/FACorreiaa/go-kanban-tracker/docs"
	"github.com/FACorreiaa/go-kanban-tracker/internal/api/auth"
	"github.com/FACorreiaa/go-kanban-tracker/internal/api/tasks"
)

// Config contains the dependencies needed for the router setup.
type Config struct {
	AuthHandler            *auth.HandlerImpl
	TaskHandler            *tasks.HandlerImpl
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter wires all application routes. Server-wide middleware (request
// ID, logging, recoverer) is applied by the caller before mounting.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Public routes. Verification endpoints stay public: they are exactly
	// what a not-yet-verified user needs before a session exists.
	r.Group(func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/token-refresh", cfg.AuthHandler.RefreshSession)
		r.Post("/send-code", cfg.AuthHandler.SendCode)
		r.Post("/verify-code", cfg.AuthHandler.VerifyCode)
		r.Post("/google-login", cfg.AuthHandler.GoogleLogin)
	})

	// Routes below require a valid bearer access token.
	r.Group(func(r chi.Router) {
		r.Use(cfg.AuthenticateMiddleware)

		r.Post("/logout", cfg.AuthHandler.Logout)
		r.Get("/user-detail", cfg.AuthHandler.GetUserDetail)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", cfg.TaskHandler.ListTasks)
			r.Post("/", cfg.TaskHandler.CreateTask)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.TaskHandler.GetTask)
				r.Put("/", cfg.TaskHandler.ReplaceTask)
				r.Patch("/", cfg.TaskHandler.PatchTask)
				r.Delete("/", cfg.TaskHandler.DeleteTask)
			})
		})
	})

	return r
}
