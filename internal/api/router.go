/**
 * @description
 * This file sets up the HTTP router for the subscription service using the
 * go-chi/chi router: public catalog routes, JWT-protected user routes, and
 * internal-key routes for gateway callbacks and plan administration.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the subscription-service routes.
func NewRouter(h *Handler, jwtSecret, internalAPIKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Subscription service is healthy"))
	})

	// Public catalog
	r.Get("/plans", h.handleListPlans)

	// User routes
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Get("/status", h.handleGetStatus)
		r.Post("/subscribe", h.handleSubscribe)
		r.Post("/cancel", h.handleCancel)
	})

	// Internal routes: payment-gateway callbacks and plan administration
	r.Group(func(r chi.Router) {
		r.Use(InternalKeyMiddleware(internalAPIKey))

		r.Post("/payments/{paymentID}/complete", h.handleCompletePayment)
		r.Post("/payments/{paymentID}/fail", h.handleFailPayment)
		r.Post("/subscriptions/{subscriptionID}/extend", h.handleExtend)

		r.Post("/plans", h.handleCreatePlan)
		r.Put("/plans/{planID}", h.handleUpdatePlan)
		r.Delete("/plans/{planID}", h.handleDeletePlan)
	})

	return r
}
