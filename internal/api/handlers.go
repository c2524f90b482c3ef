/**
 * @description
 * This file contains the HTTP handler functions for the subscription service.
 * Handlers parse incoming requests, call the service layer, and map domain
 * errors to HTTP status codes: validation 400, state conflicts 409,
 * missing records 404.
 */
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coursehub/subscription-service/internal/app"
	"github.com/coursehub/subscription-service/internal/domain"
	"github.com/coursehub/subscription-service/internal/store"
)

// Handler holds the application service that handlers interact with.
type Handler struct {
	service *app.Service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// handleGetStatus returns the caller's current subscription state.
func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status, err := h.service.GetStatus(r.Context(), userID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// handleSubscribe starts a checkout: a pending subscription plus a pending
// payment for the gateway to collect.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		PlanID        string `json:"plan_id"`
		PaymentMethod string `json:"payment_method"`
		WalletAmount  int64  `json:"wallet_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(req.PlanID); err != nil {
		http.Error(w, "Invalid plan id", http.StatusBadRequest)
		return
	}

	result, err := h.service.Subscribe(r.Context(), userID, req.PlanID, req.PaymentMethod, req.WalletAmount)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

// handleCancel terminally cancels the caller's subscription.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// Body is optional; an empty cancel reason is fine.
	_ = json.NewDecoder(r.Body).Decode(&req)

	sub, err := h.service.Cancel(r.Context(), userID, strings.TrimSpace(req.Reason))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

// handleExtend pushes a subscription's end date forward. Internal route,
// used by renewal flows and back-office adjustments.
func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	subscriptionID := chi.URLParam(r, "subscriptionID")
	if _, err := uuid.Parse(subscriptionID); err != nil {
		http.Error(w, "Invalid subscription id", http.StatusBadRequest)
		return
	}

	var req struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.service.Extend(r.Context(), subscriptionID, req.Days)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

// handleCompletePayment is the gateway success callback.
func (h *Handler) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	if _, err := uuid.Parse(paymentID); err != nil {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}

	var req struct {
		TransactionID string `json:"transaction_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	sub, err := h.service.CompletePayment(r.Context(), paymentID, req.TransactionID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

// handleFailPayment is the gateway failure callback.
func (h *Handler) handleFailPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	if _, err := uuid.Parse(paymentID); err != nil {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}

	var req struct {
		GatewayResponse json.RawMessage `json:"gateway_response"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	payment, err := h.service.FailPayment(r.Context(), paymentID, req.GatewayResponse)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payment)
}

// handleListPlans returns the purchasable catalog. Public route.
func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, plans)
}

// handleCreatePlan creates a plan. Internal route.
func (h *Handler) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var plan domain.Plan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.service.CreatePlan(r.Context(), &plan)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// handleUpdatePlan updates a plan. Internal route.
func (h *Handler) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	if _, err := uuid.Parse(planID); err != nil {
		http.Error(w, "Invalid plan id", http.StatusBadRequest)
		return
	}

	var plan domain.Plan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	plan.ID = planID

	updated, err := h.service.UpdatePlan(r.Context(), &plan)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// handleDeletePlan soft-deletes a plan. Internal route.
func (h *Handler) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	if _, err := uuid.Parse(planID); err != nil {
		http.Error(w, "Invalid plan id", http.StatusBadRequest)
		return
	}

	if err := h.service.DeletePlan(r.Context(), planID); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondWithError maps domain and store errors to HTTP status codes.
func respondWithError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		respondWithJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrSubscriptionNotFound),
		errors.Is(err, store.ErrPlanNotFound),
		errors.Is(err, store.ErrPaymentNotFound):
		respondWithJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrPlanInUse):
		respondWithJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
