package handler

import (
	"net/http"

	"github.com/taskbay/walletcore/internal/model"
	"github.com/taskbay/walletcore/internal/payment"
)

// WalletHandler serves wallet provisioning and balance queries.
type WalletHandler struct {
	orchestrator *payment.Orchestrator
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(o *payment.Orchestrator) *WalletHandler {
	return &WalletHandler{orchestrator: o}
}

// Provision handles POST /wallet/provision
// @Summary      Ensure the owner's managed wallet
// @Description  Creates the owner's custodial wallet on first call, then keeps returning the same address. Responds with the address and a deposit QR code.
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      provisionRequest  true  "Owner"
// @Success      200      {object}  model.ProvisionResponse
// @Router       /wallet/provision [post]
func (h *WalletHandler) Provision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req provisionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	provisioned, err := h.orchestrator.EnsureWallet(r.Context(), req.OwnerID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, model.ProvisionResponse{
		Address: provisioned.Wallet.Address,
		QR:      provisioned.QR,
		Created: provisioned.Created,
	})
}

// Balance handles GET /wallet/balance
// @Summary      Get managed wallet balance
// @Description  Returns the owner's SOL balance and, when a platform token is configured, the token balance.
// @Tags         wallet
// @Produce      json
// @Param        ownerId  query     string  true  "Owner id"
// @Success      200      {object}  model.BalanceResponse
// @Router       /wallet/balance [get]
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "ownerId is required", Code: "bad_request"})
		return
	}

	balance, err := h.orchestrator.Balance(r.Context(), ownerID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

type provisionRequest struct {
	OwnerID string `json:"ownerId" validate:"required"`
}
