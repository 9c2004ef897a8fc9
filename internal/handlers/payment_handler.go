package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stayloop/backend/internal/models"
	"github.com/stayloop/backend/internal/services"
)

type PaymentHandler struct {
	settlement *services.SettlementService
	validator  *services.ValidationHelper
}

func NewPaymentHandler(settlement *services.SettlementService) *PaymentHandler {
	return &PaymentHandler{
		settlement: settlement,
		validator:  services.NewValidationHelper(),
	}
}

func requestUserID(r *http.Request) (int64, bool) {
	raw, ok := r.Context().Value("userID").(string)
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must only contain a single JSON object")
	}
	return nil
}

// writeDomainError maps service errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var gatewayErr *services.GatewayError
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrNoDestinationAccount):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrDepositBelowMinimum),
		errors.Is(err, services.ErrNotTicketOwner):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrTicketAlreadyPaid):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.As(err, &gatewayErr):
		log.Printf("[PAYMENT] Gateway failure: %v", err)
		services.SendErrorResponse(w, "Payment processor unavailable", http.StatusBadGateway, nil)
	default:
		log.Printf("[PAYMENT] Internal failure: %v", err)
		services.SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
	}
}

// CreatePaymentIntent starts an external ticket payment
// @Summary Create a payment intent
// @Description Create a processor payment intent for a ticket, routed to the hotel partner's connected account
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{ticketId=int64,amount=int64,currency=string,destinationAccount=string} true "Payment intent request"
// @Success 200 {object} object{clientSecret=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /stripe/create-payment-intent [post]
func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		TicketID           int64  `json:"ticketId" validate:"required,gt=0"`
		Amount             int64  `json:"amount" validate:"required,gt=0"`
		Currency           string `json:"currency" validate:"omitempty,len=3"`
		DestinationAccount string `json:"destinationAccount" validate:"omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	clientSecret, err := h.settlement.CreateExternalPaymentIntent(
		r.Context(), req.TicketID, userID, req.Amount, req.Currency, models.MethodBank, req.DestinationAccount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"clientSecret": clientSecret})
}

// CreateCheckoutSession starts a wallet deposit
// @Summary Create a checkout session
// @Description Open a processor checkout session topping up the caller's wallet
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64} true "Deposit request"
// @Success 200 {object} object{sessionId=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /stripe/create-checkout-session [post]
func (h *PaymentHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount int64 `json:"amount" validate:"required,gt=0"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	sessionID, err := h.settlement.CreateDeposit(r.Context(), userID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"sessionId": sessionID})
}

// PayTicket settles a ticket from the caller's wallet
// @Summary Pay a ticket from wallet balance
// @Description Settle a booking internally, moving funds from the guest wallet to the partner wallet
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param ticketId path int true "Ticket ID"
// @Success 200 {object} services.SettlementResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /tickets/{ticketId}/pay [post]
func (h *PaymentHandler) PayTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticketId"), 10, 64)
	if err != nil || ticketID <= 0 {
		services.SendErrorResponse(w, "Invalid ticket id", http.StatusBadRequest, nil)
		return
	}

	result, err := h.settlement.ProcessInternalPayment(r.Context(), ticketID, userID, models.MethodWallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
