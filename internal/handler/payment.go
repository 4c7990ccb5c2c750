package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/model"
	"github.com/taskbay/walletcore/internal/payment"
	"github.com/taskbay/walletcore/internal/repo"
	"github.com/taskbay/walletcore/internal/x402"
)

// PaymentHandler serves the pay flow and the x402 handshake.
type PaymentHandler struct {
	orchestrator *payment.Orchestrator
	protocol     *x402.Protocol
	store        repo.Store
	asset        model.Asset
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(o *payment.Orchestrator, p *x402.Protocol, store repo.Store, asset model.Asset) *PaymentHandler {
	return &PaymentHandler{orchestrator: o, protocol: p, store: store, asset: asset}
}

// CreateDemand handles POST /payment/create
// @Summary      Create an x402 payment demand
// @Description  Builds an unsigned transfer for the owner's managed wallet and returns it with payment terms. Responds with HTTP 402 by x402 convention.
// @Tags         payment
// @Accept       json
// @Produce      json
// @Param        request  body      model.CreateDemandRequest  true  "Demand parameters"
// @Success      402      {object}  model.CreateDemandResponse
// @Router       /payment/create [post]
func (h *PaymentHandler) CreateDemand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateDemandRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid amount", Code: "bad_request"})
		return
	}
	recipient, err := solana.PublicKeyFromBase58(req.Recipient)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid recipient address", Code: "bad_request"})
		return
	}
	asset, err := h.resolveAsset(req.Asset, req.AssetDecimals)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	wallet, err := h.store.GetWallet(r.Context(), req.OwnerID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	payer, err := wallet.PublicKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	demand, err := h.protocol.CreateDemand(r.Context(), payer, recipient, amount, asset, req.Memo)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusPaymentRequired, model.CreateDemandResponse{
		UnsignedTxBase64: demand.UnsignedTxBase64,
		Terms:            demand.Terms,
	})
}

// Verify handles POST /payment/verify
// @Summary      Verify a claimed payment
// @Description  Fetches the transaction by signature and checks the recipient's balance delta against the expected amount.
// @Tags         payment
// @Accept       json
// @Produce      json
// @Param        request  body      model.VerifyPaymentRequest  true  "Claimed payment"
// @Success      200      {object}  model.VerifyPaymentResponse
// @Router       /payment/verify [post]
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.VerifyPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	sig, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid signature", Code: "bad_request"})
		return
	}
	amount, err := decimal.NewFromString(req.ExpectedAmount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid expected amount", Code: "bad_request"})
		return
	}
	recipient, err := solana.PublicKeyFromBase58(req.ExpectedRecipient)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid recipient address", Code: "bad_request"})
		return
	}
	asset, err := h.resolveAsset(req.Asset, req.AssetDecimals)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	verdict, err := h.protocol.VerifyPayment(r.Context(), sig, amount, recipient, asset)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, model.VerifyPaymentResponse{Valid: true})
	case errors.Is(err, apperr.ErrPaymentMismatch):
		reason := "verification failed"
		if verdict != nil {
			reason = "verification failed: " + verdict.Reason
		}
		writeJSON(w, http.StatusOK, model.VerifyPaymentResponse{Valid: false, Reason: reason})
	case errors.Is(err, apperr.ErrPaymentNotFound), errors.Is(err, apperr.ErrFailedTx):
		writeJSON(w, http.StatusOK, model.VerifyPaymentResponse{Valid: false, Reason: publicMessage(err)})
	default:
		writeError(w, statusFor(err), err)
	}
}

// Pay handles POST /wallet/pay
// @Summary      Settle a payment request from the managed wallet
// @Description  Applies the free-use quota, or charges the fixed service price on chain. Idempotent for terminal requests.
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.PayRequest  true  "Payment request reference"
// @Success      200      {object}  model.PayResponse
// @Router       /wallet/pay [post]
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.PayRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	result, err := h.orchestrator.Pay(r.Context(), req.RequestID, req.OwnerID)
	if err != nil && result == nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := model.PayResponse{Status: result.Status, TxSignature: result.TxSignature}
	if err != nil {
		// Terminal failure: the request state is well-defined, report it
		// alongside the typed reason.
		writeJSON(w, http.StatusPaymentRequired, struct {
			model.PayResponse
			Error string `json:"error"`
			Code  string `json:"code"`
		}{resp, publicMessage(err), apperr.Code(err)})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateRequest handles POST /payment/request
// @Summary      Open a payment request
// @Description  Creates a Pending payment request for a job, carrying any collected intake answers untouched.
// @Tags         payment
// @Accept       json
// @Produce      json
// @Param        request  body      createRequestBody  true  "Request parameters"
// @Success      201      {object}  model.PaymentRequest
// @Router       /payment/request [post]
func (h *PaymentHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req createRequestBody
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	created, err := h.orchestrator.CreateRequest(r.Context(), req.OwnerID, req.ServiceClass, req.Intake)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type createRequestBody struct {
	OwnerID      string               `json:"ownerId" validate:"required"`
	ServiceClass string               `json:"serviceClass" validate:"required"`
	Intake       []model.IntakeAnswer `json:"intake"`
}

// resolveAsset maps an API asset id (empty for the platform asset, "SOL",
// or a mint in base58) onto a concrete asset. Mints other than the
// platform's must state their decimals: scaling a foreign token with the
// platform precision would mis-read its amounts.
func (h *PaymentHandler) resolveAsset(assetID string, decimals *uint8) (model.Asset, error) {
	switch assetID {
	case "":
		return h.asset, nil
	case "SOL":
		return model.NativeAsset(), nil
	}
	mint, err := solana.PublicKeyFromBase58(assetID)
	if err != nil {
		return model.Asset{}, fmt.Errorf("unknown asset %q", assetID)
	}
	if !h.asset.IsNative() && mint.Equals(h.asset.Mint) {
		return h.asset, nil
	}
	if decimals == nil {
		return model.Asset{}, fmt.Errorf("assetDecimals is required for mint %s", assetID)
	}
	return model.Asset{Symbol: assetID, Mint: mint, Decimals: *decimals}, nil
}

// statusFor maps taxonomy errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrDoubleChargeGuard), errors.Is(err, apperr.ErrWalletExists),
		errors.Is(err, apperr.ErrDuplicateSignature):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrAmountTooSmall), errors.Is(err, apperr.ErrPaymentMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, apperr.ErrRPCUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
