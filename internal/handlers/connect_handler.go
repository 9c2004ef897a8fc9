package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/stayloop/backend/internal/models"
	"github.com/stayloop/backend/internal/services"
)

// ConnectHandler drives the partner onboarding flow for connected payout
// accounts. Verification results arrive later through account.updated
// webhook events, so the POST here only creates the account and hands
// back an onboarding link.
type ConnectHandler struct {
	users   *services.UserService
	gateway services.PaymentGateway
}

func NewConnectHandler(users *services.UserService, gateway services.PaymentGateway) *ConnectHandler {
	return &ConnectHandler{users: users, gateway: gateway}
}

type ConnectAccountResponse struct {
	AccountID     string `json:"accountId"`
	Status        string `json:"status"`
	OnboardingURL string `json:"onboardingUrl,omitempty"`
}

// CreateAccount starts partner payout onboarding
// @Summary Create a connected payout account
// @Description Create a processor connected account for the partner and return an onboarding link. Calling again while onboarding is incomplete returns a fresh link for the existing account.
// @Tags partners
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handlers.ConnectAccountResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /partner/stripe/account [post]
func (h *ConnectHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if user.Role != "partner" {
		services.SendErrorResponse(w, "Only partners can onboard payout accounts", http.StatusForbidden, nil)
		return
	}

	accountID := user.StripeAccountID
	if accountID == "" {
		accountID, err = h.gateway.CreateConnectedAccount(user.Email)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := h.users.UpdateStripeAccountID(r.Context(), userID, accountID); err != nil {
			log.Printf("[CONNECT] Failed to store account %s for user %d: %v", accountID, userID, err)
			services.SendErrorResponse(w, "Failed to store account", http.StatusInternalServerError, nil)
			return
		}
	}

	linkURL, err := h.gateway.CreateAccountLink(accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ConnectAccountResponse{
		AccountID:     accountID,
		Status:        string(models.StripeAccountPending),
		OnboardingURL: linkURL,
	})
}

// GetAccount reports the partner's payout account status
// @Summary Get connected payout account status
// @Tags partners
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handlers.ConnectAccountResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /partner/stripe/account [get]
func (h *ConnectHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if user.StripeAccountID == "" {
		services.SendErrorResponse(w, "No payout account on file", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ConnectAccountResponse{
		AccountID: user.StripeAccountID,
		Status:    string(user.StripeAccountStatus),
	})
}
