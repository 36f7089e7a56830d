package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appLogger "github.com/Nexoracode/khadamat/app/logger"
	appMiddleware "github.com/Nexoracode/khadamat/app/middleware"
	"github.com/Nexoracode/khadamat/internal/api/auth"
	"github.com/Nexoracode/khadamat/internal/container"
	"github.com/Nexoracode/khadamat/internal/types"
)

// SetupRouter builds the full HTTP surface. metricsHandler may be nil when
// metrics are not exported.
func SetupRouter(c *container.Container, metricsHandler http.Handler) chi.Router {
	cfg := c.Config
	logger := c.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-Audio-Duration-Ms"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	authenticate := auth.Authenticate(logger, cfg.JWT)
	identify := auth.Identify(logger, cfg.JWT)
	chatLimit := appMiddleware.NewRateLimiter(cfg.Chat.RateLimitPerMinute, cfg.Chat.RateLimitBurst, logger)
	otpLimit := appMiddleware.NewRateLimiter(cfg.Chat.RateLimitPerMinute, cfg.Chat.RateLimitBurst, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth/otp", func(r chi.Router) {
			r.Use(otpLimit.Handler)
			r.Post("/request", c.AuthHandler.RequestOTP)
			r.Post("/verify", c.AuthHandler.VerifyOTP)
		})

		// catalog browsing, contact details only for logged-in callers
		r.Group(func(r chi.Router) {
			r.Use(identify)
			r.Use(middleware.Timeout(cfg.Server.Timeout))
			r.Get("/specialists", c.CatalogHandler.ListSpecialists)
			r.Get("/specialists/top", c.CatalogHandler.TopSpecialists)
			r.Get("/products", c.CatalogHandler.ListProducts)
			r.Get("/products/{id}", c.CatalogHandler.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/specialists/{id}/contact", c.CatalogHandler.SpecialistContact)
			r.Get("/cart", c.CartHandler.GetCart)
			r.Post("/cart/items", c.CartHandler.AddItem)
			r.Patch("/cart/items/{productId}", c.CartHandler.UpdateQuantity)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/sessions", c.ChatHandler.CreateSession)
			r.Get("/audio/{ref}", c.ChatHandler.GetAudio)
			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Get("/", c.ChatHandler.GetSession)
				r.Delete("/", c.ChatHandler.EndSession)
				r.Get("/messages", c.ChatHandler.GetSession)
				r.With(chatLimit.Handler).Post("/messages", c.ChatHandler.SendMessage)
				r.Put("/location", c.ChatHandler.SetLocation)
				r.Delete("/location", c.ChatHandler.ClearLocation)
				r.Get("/ws", c.ChatHandler.TranscriptFeed)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(auth.RequireRole(logger, types.RoleAdmin))
			r.Use(middleware.Timeout(cfg.Server.Timeout))

			r.Get("/dashboard", c.CatalogHandler.Dashboard)
			r.Get("/specialists", c.CatalogHandler.AdminListSpecialists)
			r.Post("/specialists", c.CatalogHandler.CreateSpecialist)
			r.Delete("/specialists/{id}", c.CatalogHandler.DeleteSpecialist)
			r.Get("/products", c.CatalogHandler.ListProducts)
			r.Post("/products", c.CatalogHandler.CreateProduct)
			r.Delete("/products/{id}", c.CatalogHandler.DeleteProduct)
			r.Get("/users", c.CatalogHandler.ListUsers)
			r.Post("/users", c.CatalogHandler.CreateUser)
			r.Delete("/users/{id}", c.CatalogHandler.DeleteUser)
		})
	})

	return r
}
