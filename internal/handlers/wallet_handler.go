package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/spf13/viper"

	"github.com/stayloop/backend/internal/models"
	"github.com/stayloop/backend/internal/services"
)

type WalletHandler struct {
	users  *services.UserService
	ledger *services.LedgerService
}

func NewWalletHandler(users *services.UserService, ledger *services.LedgerService) *WalletHandler {
	return &WalletHandler{users: users, ledger: ledger}
}

type WalletResponse struct {
	Balance          int64  `json:"balance"`
	Currency         string `json:"currency"`
	LifetimeDeposits int64  `json:"lifetimeDeposits"`
}

// GetWallet returns the caller's wallet summary
// @Summary Get wallet balance
// @Description Current balance in minor units plus the lifetime sum of settled deposits
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handlers.WalletResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
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

	deposits, err := h.ledger.SumByTypeAndStatus(r.Context(), userID, models.TransactionDeposit, models.StatusSuccess)
	if err != nil {
		log.Printf("[WALLET] Failed to sum deposits for user %d: %v", userID, err)
		services.SendErrorResponse(w, "Failed to load wallet", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WalletResponse{
		Balance:          user.Balance,
		Currency:         viper.GetString("payments.currency"),
		LifetimeDeposits: deposits,
	})
}

// ListTransactions returns the caller's ledger entries, newest first
// @Summary List wallet transactions
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number, starting at 1"
// @Param limit query int false "Page size, capped at 100"
// @Success 200 {array} models.Transaction
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/transactions [get]
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.ledger.ListForUser(r.Context(), userID, page, limit)
	if err != nil {
		log.Printf("[WALLET] Failed to list transactions for user %d: %v", userID, err)
		services.SendErrorResponse(w, "Failed to load transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
