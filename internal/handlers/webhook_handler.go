package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/stayloop/backend/internal/services"
)

type WebhookHandler struct {
	reconciler *services.ReconciliationService
}

func NewWebhookHandler(reconciler *services.ReconciliationService) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandleStripeWebhook receives processor event notifications
// @Summary Stripe webhook endpoint
// @Description Verify the event signature and reconcile the referenced ledger entry. Safe to call more than once per event.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Event signature"
// @Success 200 {object} object{received=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /stripe/webhook [post]
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_576))
	if err != nil {
		services.SendErrorResponse(w, "Failed to read request body", http.StatusBadRequest, nil)
		return
	}

	event, err := h.reconciler.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("[WEBHOOK] Signature verification failed: %v", err)
		services.SendErrorResponse(w, "Invalid signature", http.StatusBadRequest, nil)
		return
	}

	if err := h.reconciler.HandleEvent(r.Context(), event); err != nil {
		// A non-2xx response makes the processor redeliver the event, so
		// transient failures heal themselves on the next attempt.
		if errors.Is(err, services.ErrNotFound) {
			log.Printf("[WEBHOOK] Event %s references an unknown ledger entry", event.ID)
			services.SendErrorResponse(w, "Unknown payment reference", http.StatusNotFound, nil)
			return
		}
		log.Printf("[WEBHOOK] Failed to process event %s: %v", event.ID, err)
		services.SendErrorResponse(w, "Failed to process event", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
