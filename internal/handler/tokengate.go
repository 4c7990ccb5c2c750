package handler

import (
	"net/http"

	"github.com/taskbay/walletcore/internal/metrics"
	"github.com/taskbay/walletcore/internal/model"
	"github.com/taskbay/walletcore/internal/repo"
	"github.com/taskbay/walletcore/internal/tokengate"
)

// TokenGateHandler serves balance-threshold access checks.
type TokenGateHandler struct {
	gate    *tokengate.Gate
	store   repo.Store
	metrics *metrics.Recorder
}

// NewTokenGateHandler creates a TokenGateHandler.
func NewTokenGateHandler(gate *tokengate.Gate, store repo.Store, rec *metrics.Recorder) *TokenGateHandler {
	return &TokenGateHandler{gate: gate, store: store, metrics: rec}
}

// Check handles POST /token-gate/check
// @Summary      Evaluate token gate specs against an owner's wallet
// @Description  Checks whether the owner's managed wallet meets the balance thresholds. Mode "any" passes on the first satisfied spec, "all" (default) requires every spec.
// @Tags         token-gate
// @Accept       json
// @Produce      json
// @Param        request  body      model.TokenGateCheckRequest  true  "Gate specs"
// @Success      200      {object}  model.TokenGateCheckResponse
// @Router       /token-gate/check [post]
func (h *TokenGateHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.TokenGateCheckRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	wallet, err := h.store.GetWallet(r.Context(), req.OwnerID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	addr, err := wallet.PublicKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = "all"
	}

	var passed bool
	var outcomes []tokengate.Outcome
	if mode == "any" {
		var hit *tokengate.Outcome
		hit, outcomes = h.gate.Any(r.Context(), addr, req.Specs)
		passed = hit != nil
	} else {
		passed, outcomes = h.gate.All(r.Context(), addr, req.Specs)
	}

	balances := make([]model.SpecBalance, len(outcomes))
	for i, out := range outcomes {
		balances[i] = model.SpecBalance{
			AssetID: out.Spec.AssetID,
			Passed:  out.Passed,
			Balance: out.Balance.String(),
		}
	}

	h.metrics.GateCheck(mode, passed)
	writeJSON(w, http.StatusOK, model.TokenGateCheckResponse{
		HasAccess: passed,
		Balances:  balances,
	})
}
