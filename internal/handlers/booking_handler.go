package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stayloop/backend/internal/models"
	"github.com/stayloop/backend/internal/services"
)

type BookingHandler struct {
	tickets   *services.TicketService
	validator *services.ValidationHelper
}

func NewBookingHandler(tickets *services.TicketService) *BookingHandler {
	return &BookingHandler{
		tickets:   tickets,
		validator: services.NewValidationHelper(),
	}
}

// CreateTicket books a room
// @Summary Create a booking ticket
// @Description Reserve a room for the given stay. The ticket starts PENDING until it is paid.
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateTicketInput true "Booking request"
// @Success 201 {object} models.Ticket
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /tickets [post]
func (h *BookingHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var input models.CreateTicketInput
	if err := decodeJSON(w, r, &input); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&input); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	ticket, err := h.tickets.CreateTicket(r.Context(), userID, &input)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			services.SendErrorResponse(w, "Room not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Failed to create ticket", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ticket)
}

// GetTicket fetches a single ticket
// @Summary Get a booking ticket
// @Description Fetch a ticket with its computed owed amount. Only the ticket owner may read it.
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param ticketId path int true "Ticket ID"
// @Success 200 {object} models.Ticket
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /tickets/{ticketId} [get]
func (h *BookingHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
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

	ticket, err := h.tickets.GetTicket(r.Context(), ticketID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			services.SendErrorResponse(w, "Ticket not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Failed to load ticket", http.StatusInternalServerError, nil)
		return
	}
	if ticket.UserID != userID {
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ticket)
}
