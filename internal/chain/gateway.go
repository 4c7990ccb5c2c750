// Package chain is the boundary to the ledger. Everything behind Gateway
// is an untrusted, eventually-consistent oracle reached over the network;
// retry policy for transient RPC failures lives here, not in callers.
package chain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Blockhash is a short-lived transaction anchor. Transactions referencing
// a hash past its expiry height are rejected by the ledger.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// TokenBalanceChange records one owner's pre/post balance of one mint
// within a transaction, in base units.
type TokenBalanceChange struct {
	Owner solana.PublicKey
	Mint  solana.PublicKey
	Pre   uint64
	Post  uint64
}

// TxRecord is a settled transaction as observed on chain, reduced to what
// verification and reconciliation need.
type TxRecord struct {
	Signature    solana.Signature
	Slot         uint64
	BlockTime    time.Time
	Failed       bool
	AccountKeys  []solana.PublicKey
	PreBalances  []uint64 // lamports, index-aligned with AccountKeys
	PostBalances []uint64
	TokenChanges []TokenBalanceChange
	Memo         string
}

// NativeDelta returns the lamport balance change of the given account, or
// false if the account does not appear in the transaction.
func (r *TxRecord) NativeDelta(addr solana.PublicKey) (int64, bool) {
	for i, key := range r.AccountKeys {
		if !key.Equals(addr) {
			continue
		}
		if i >= len(r.PreBalances) || i >= len(r.PostBalances) {
			return 0, false
		}
		return int64(r.PostBalances[i]) - int64(r.PreBalances[i]), true
	}
	return 0, false
}

// TokenDelta returns the base-unit balance change of owner for mint, or
// false if the owner held no account of that mint in the transaction.
func (r *TxRecord) TokenDelta(owner, mint solana.PublicKey) (int64, bool) {
	for _, tc := range r.TokenChanges {
		if tc.Owner.Equals(owner) && tc.Mint.Equals(mint) {
			return int64(tc.Post) - int64(tc.Pre), true
		}
	}
	return 0, false
}

// Gateway is the ledger contract the core is written against. All calls
// are blocking network operations and honor ctx cancellation. Submission
// is "fire, then poll for confirmation": Submit returning a signature says
// nothing about the transaction landing.
type Gateway interface {
	// NativeBalance returns the address's lamport balance.
	NativeBalance(ctx context.Context, addr solana.PublicKey) (uint64, error)

	// TokenBalance returns the owner's balance of mint in base units.
	// A missing token account reads as zero.
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)

	// TokenAccountExists reports whether the owner's associated token
	// account for mint exists on chain.
	TokenAccountExists(ctx context.Context, owner, mint solana.PublicKey) (bool, error)

	// LatestBlockhash fetches a fresh anchor for transaction finalization.
	LatestBlockhash(ctx context.Context) (Blockhash, error)

	// Submit broadcasts a signed transaction. Resubmitting the same signed
	// bytes of an already-landed transaction returns the same signature.
	// A stale anchor surfaces as apperr.ErrBlockhashExpired; other
	// submission failures are terminal apperr.ErrSubmission.
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// Confirm polls until the signature reaches confirmed commitment, the
	// transaction fails on chain (apperr.ErrFailedTx), or ctx expires.
	Confirm(ctx context.Context, sig solana.Signature) error

	// TransactionBySignature fetches a settled transaction, or
	// apperr.ErrPaymentNotFound if the ledger has no record of it.
	TransactionBySignature(ctx context.Context, sig solana.Signature) (*TxRecord, error)

	// FindTransferByMemo scans the address's recent signatures for a
	// transaction whose memo contains the given tag. Used to reconcile
	// interrupted payment flows. Returns apperr.ErrPaymentNotFound when
	// nothing matches.
	FindTransferByMemo(ctx context.Context, addr solana.PublicKey, memoTag string) (*TxRecord, error)
}
