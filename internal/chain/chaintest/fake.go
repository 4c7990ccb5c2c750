// Package chaintest provides a configurable in-memory Gateway for tests.
package chaintest

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/chain"
)

// Fake is a Gateway whose chain state is whatever the test puts in it.
// Zero value is usable: empty chain, all balances zero, blockhash fixed.
// All fields are guarded by mu; tests may mutate them between calls.
type Fake struct {
	mu sync.Mutex

	// NativeBalances maps base58 address to lamports.
	NativeBalances map[string]uint64
	// TokenBalances maps owner+"|"+mint to base units.
	TokenBalances map[string]uint64
	// TokenAccounts marks owner+"|"+mint pairs whose ATA exists.
	TokenAccounts map[string]bool

	// Records maps base58 signature to the settled transaction.
	Records map[string]*chain.TxRecord
	// MemoIndex maps memo tag to a settled transaction, consulted by
	// FindTransferByMemo.
	MemoIndex map[string]*chain.TxRecord

	// Blockhash returned by LatestBlockhash. Tests that exercise the
	// expired-anchor path bump this between attempts.
	Blockhash chain.Blockhash

	// SubmitErrs is consumed one error per Submit call; a nil entry means
	// that call succeeds. Once drained, Submit succeeds.
	SubmitErrs []error
	// ConfirmErr, when set, is returned by every Confirm call.
	ConfirmErr error
	// BalanceErr, when set, fails every balance read.
	BalanceErr error
	// LookupErr, when set, fails TransactionBySignature and
	// FindTransferByMemo before the indexes are consulted.
	LookupErr error

	// Submitted collects every transaction passed to Submit.
	Submitted []*solana.Transaction
	// NextSignature seeds the signatures Submit hands out.
	NextSignature byte

	submitCalls  int
	confirmCalls int
}

var _ chain.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		NativeBalances: make(map[string]uint64),
		TokenBalances:  make(map[string]uint64),
		TokenAccounts:  make(map[string]bool),
		Records:        make(map[string]*chain.TxRecord),
		MemoIndex:      make(map[string]*chain.TxRecord),
		NextSignature:  1,
	}
}

func tokenKey(owner, mint solana.PublicKey) string {
	return owner.String() + "|" + mint.String()
}

// SetNative sets an address's lamport balance.
func (f *Fake) SetNative(addr solana.PublicKey, lamports uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NativeBalances[addr.String()] = lamports
}

// SetToken sets an owner's token balance and marks the account existing.
func (f *Fake) SetToken(owner, mint solana.PublicKey, amount uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TokenBalances[tokenKey(owner, mint)] = amount
	f.TokenAccounts[tokenKey(owner, mint)] = true
}

// PutRecord registers a settled transaction, indexed by signature and,
// when the record carries a memo, by memo tag.
func (f *Fake) PutRecord(rec *chain.TxRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Records[rec.Signature.String()] = rec
	if rec.Memo != "" {
		f.MemoIndex[rec.Memo] = rec
	}
}

// SubmitCalls reports how many times Submit was invoked.
func (f *Fake) SubmitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func (f *Fake) NativeBalance(_ context.Context, addr solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return 0, f.BalanceErr
	}
	return f.NativeBalances[addr.String()], nil
}

func (f *Fake) TokenBalance(_ context.Context, owner, mint solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return 0, f.BalanceErr
	}
	return f.TokenBalances[tokenKey(owner, mint)], nil
}

func (f *Fake) TokenAccountExists(_ context.Context, owner, mint solana.PublicKey) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TokenAccounts[tokenKey(owner, mint)], nil
}

func (f *Fake) LatestBlockhash(_ context.Context) (chain.Blockhash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Blockhash, nil
}

func (f *Fake) Submit(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.Submitted = append(f.Submitted, tx)
	if len(f.SubmitErrs) > 0 {
		err := f.SubmitErrs[0]
		f.SubmitErrs = f.SubmitErrs[1:]
		if err != nil {
			return solana.Signature{}, err
		}
	}
	var sig solana.Signature
	sig[0] = f.NextSignature
	f.NextSignature++
	return sig, nil
}

func (f *Fake) Confirm(_ context.Context, _ solana.Signature) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls++
	return f.ConfirmErr
}

func (f *Fake) TransactionBySignature(_ context.Context, sig solana.Signature) (*chain.TxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LookupErr != nil {
		return nil, f.LookupErr
	}
	rec, ok := f.Records[sig.String()]
	if !ok {
		return nil, fmt.Errorf("%w: signature %s", apperr.ErrPaymentNotFound, sig)
	}
	return rec, nil
}

func (f *Fake) FindTransferByMemo(_ context.Context, _ solana.PublicKey, memoTag string) (*chain.TxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LookupErr != nil {
		return nil, f.LookupErr
	}
	rec, ok := f.MemoIndex[memoTag]
	if !ok {
		return nil, fmt.Errorf("%w: no transfer tagged %q", apperr.ErrPaymentNotFound, memoTag)
	}
	return rec, nil
}
