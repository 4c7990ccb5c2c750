// Package apperr defines the error taxonomy of the wallet core. Every
// component returns one of these sentinels (usually wrapped with context via
// fmt.Errorf and %w) so callers can classify failures with errors.Is without
// parsing strings.
package apperr

import "errors"

// Vault errors. Always fatal to the current operation, never retried.
var (
	ErrEncryption  = errors.New("encryption failed")
	ErrIntegrity   = errors.New("ciphertext integrity check failed")
	ErrKeyMismatch = errors.New("derived public key does not match wallet address")
)

// Transaction builder errors.
var (
	ErrAmountTooSmall   = errors.New("amount is below one base unit")
	ErrBlockhashExpired = errors.New("blockhash expired")
)

// Signer errors.
var ErrSignerMismatch = errors.New("keypair is not a declared signer of the transaction")

// Chain gateway errors.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSubmission          = errors.New("transaction submission failed")
	ErrRPCUnavailable      = errors.New("rpc endpoint unavailable")
	ErrFailedTx            = errors.New("transaction failed on chain")
)

// Orchestrator errors.
var (
	ErrQuotaRace         = errors.New("free-use quota counter conflict")
	ErrDoubleChargeGuard = errors.New("payment request already settled")
)

// Verification errors.
var (
	ErrPaymentNotFound = errors.New("payment transaction not found")
	ErrPaymentMismatch = errors.New("payment does not match expected terms")
)

// Persistence errors.
var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateSignature = errors.New("ledger record with this signature already exists")
	ErrWalletExists       = errors.New("owner already has a managed wallet")
)

// Code maps an error to a stable machine-readable code for API responses.
// Unknown errors map to "internal" so raw chain or storage detail never
// leaks to callers.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrEncryption):
		return "encryption_failed"
	case errors.Is(err, ErrIntegrity):
		return "integrity_failed"
	case errors.Is(err, ErrKeyMismatch):
		return "key_mismatch"
	case errors.Is(err, ErrAmountTooSmall):
		return "amount_too_small"
	case errors.Is(err, ErrBlockhashExpired):
		return "blockhash_expired"
	case errors.Is(err, ErrSignerMismatch):
		return "signer_mismatch"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrSubmission):
		return "submission_failed"
	case errors.Is(err, ErrRPCUnavailable):
		return "rpc_unavailable"
	case errors.Is(err, ErrFailedTx):
		return "tx_failed"
	case errors.Is(err, ErrQuotaRace):
		return "quota_conflict"
	case errors.Is(err, ErrDoubleChargeGuard):
		return "already_settled"
	case errors.Is(err, ErrPaymentNotFound):
		return "payment_not_found"
	case errors.Is(err, ErrPaymentMismatch):
		return "payment_mismatch"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateSignature):
		return "duplicate_signature"
	case errors.Is(err, ErrWalletExists):
		return "wallet_exists"
	default:
		return "internal"
	}
}
