// Package repo is the persistence boundary. The core reads and writes
// user wallets, payment requests, the ledger, and the free-use counter
// through Store; implementations decide where the bytes live.
package repo

import (
	"context"

	"github.com/taskbay/walletcore/internal/model"
)

// Store is the narrow repository contract the payment core depends on.
//
// GetAndIncrementFreeUses must be atomic: two concurrent calls for the
// same owner and service class must observe distinct counts. That single
// property is what keeps the free-use quota race-free without any
// orchestrator-side locking. DecrementFreeUses releases a slot taken by
// an increment whose grant could not be recorded, so a store hiccup does
// not permanently burn a free use.
//
// PutLedgerRecord rejects a duplicate non-empty TxSignature so the same
// on-chain event can never be booked twice.
//
// RecordPayment persists a ledger record and the request's terminal
// transition in one logical unit (both-or-neither).
type Store interface {
	GetWallet(ctx context.Context, ownerID string) (*model.ManagedWallet, error)
	PutWallet(ctx context.Context, w *model.ManagedWallet) error

	GetRequest(ctx context.Context, id string) (*model.PaymentRequest, error)
	PutRequest(ctx context.Context, r *model.PaymentRequest) error

	GetAndIncrementFreeUses(ctx context.Context, ownerID, serviceClass string) (int, error)
	DecrementFreeUses(ctx context.Context, ownerID, serviceClass string) error

	PutLedgerRecord(ctx context.Context, rec *model.LedgerRecord) error
	RecordPayment(ctx context.Context, r *model.PaymentRequest, rec *model.LedgerRecord) error
}
