package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"enrolldesk-backend/internal/handlers"
	"enrolldesk-backend/internal/middleware"
	"enrolldesk-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	studentHandler *handlers.StudentHandler,
	courseHandler *handlers.CourseHandler,
	activityHandler *handlers.ActivityHandler,
	dashboardHandler *handlers.DashboardHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)

				// Only admins can create additional accounts
				r.Group(func(r chi.Router) {
					r.Use(jwtAuth.RequireAdmin)
					r.Post("/users", authHandler.CreateAdmin)
				})
			})
		})

		// ──── Student Routes ────
		r.Route("/students", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", studentHandler.List)
			r.Get("/search", studentHandler.Search)
			r.Post("/", studentHandler.Create)
			r.Post("/check-duplicates", studentHandler.CheckDuplicates)
			r.Post("/enroll", studentHandler.Enroll)
			r.Put("/{userID}/suspension", studentHandler.ToggleSuspension)
			r.Get("/{username}/credentials", studentHandler.Credentials)
		})

		// ──── Course Routes ────
		r.Route("/courses", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", courseHandler.List)
			r.Get("/{courseID}", courseHandler.Detail)
			r.Get("/{courseID}/students", courseHandler.Students)
			r.Get("/{courseID}/suspension-status", courseHandler.SuspensionStatus)
			r.Get("/{courseID}/students/{userID}/suspension", courseHandler.StudentSuspension)
			r.Put("/{courseID}/students/{userID}/suspension", courseHandler.ToggleSuspension)
			r.Delete("/{courseID}/students/{userID}", courseHandler.RemoveUser)
		})

		// ──── Activity Log Routes ────
		r.Route("/activities", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", activityHandler.List)
			r.Get("/analytics", activityHandler.Analytics)
			r.Get("/export", activityHandler.Export)
			r.Post("/", activityHandler.Log)
			r.Get("/{activityID}", activityHandler.Detail)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.RequireAdmin)
				r.Delete("/", activityHandler.Clear)
				r.Post("/fix-status", activityHandler.FixStatus)
			})
		})

		// ──── Dashboard Routes ────
		r.Route("/dashboard", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/stats", dashboardHandler.Stats)
			r.Post("/sync", dashboardHandler.Sync)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.RequireAdmin)
				r.Delete("/", dashboardHandler.Clear)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
