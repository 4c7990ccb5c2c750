// Package handler is the JSON-over-HTTP boundary with the UI/CRUD layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/model"
)

var validate = validator.New()

// writeJSON writes a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps an error to its stable code and message. Raw chain and
// storage errors never reach the caller.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, model.ErrorResponse{
		Error: publicMessage(err),
		Code:  apperr.Code(err),
	})
}

// publicMessage keeps error text caller-safe: known taxonomy errors map to
// their canonical phrasing, anything else is reduced to a generic message.
// Wrapped detail (addresses, balances, endpoints) stays server-side.
func publicMessage(err error) string {
	for _, sentinel := range []error{
		apperr.ErrEncryption, apperr.ErrIntegrity, apperr.ErrKeyMismatch,
		apperr.ErrAmountTooSmall, apperr.ErrBlockhashExpired, apperr.ErrSignerMismatch,
		apperr.ErrInsufficientBalance, apperr.ErrSubmission, apperr.ErrRPCUnavailable,
		apperr.ErrFailedTx, apperr.ErrQuotaRace, apperr.ErrDoubleChargeGuard,
		apperr.ErrPaymentNotFound, apperr.ErrPaymentMismatch, apperr.ErrNotFound,
		apperr.ErrDuplicateSignature, apperr.ErrWalletExists,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

// decodeAndValidate parses the request body and runs struct validation.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
