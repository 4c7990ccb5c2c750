package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/metrics"
)

const (
	retryAttempts = 3
	retryBase     = 500 * time.Millisecond

	confirmPollInterval = 2 * time.Second

	// memoScanLimit bounds the signature window inspected during
	// reconciliation. Interrupted charges are at most one blockhash window
	// old, so a small window is plenty.
	memoScanLimit = 25
)

// SolanaGateway implements Gateway against a Solana RPC node.
type SolanaGateway struct {
	client  *rpc.Client
	log     *zap.Logger
	metrics *metrics.Recorder
}

var _ Gateway = (*SolanaGateway)(nil)

// NewSolanaGateway creates a gateway for the given RPC endpoint.
func NewSolanaGateway(rpcURL string, log *zap.Logger, rec *metrics.Recorder) *SolanaGateway {
	return &SolanaGateway{
		client:  rpc.New(rpcURL),
		log:     log.Named("chain"),
		metrics: rec,
	}
}

// NativeBalance returns the lamport balance at confirmed commitment.
func (g *SolanaGateway) NativeBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	var balance uint64
	err := g.withRetry(ctx, "get_balance", func() error {
		out, err := g.client.GetBalance(ctx, addr, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		balance = out.Value
		return nil
	})
	return balance, err
}

// TokenBalance returns the owner's associated-token-account balance for
// mint in base units. A missing account reads as zero.
func (g *SolanaGateway) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to derive token account address: %w", err)
	}

	var balance uint64
	err = g.withRetry(ctx, "get_token_balance", func() error {
		out, err := g.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
		if err != nil {
			if isAccountNotFound(err) {
				balance = 0
				return nil
			}
			return err
		}
		if out.Value == nil {
			balance = 0
			return nil
		}
		amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse token balance: %w", err)
		}
		balance = amount
		return nil
	})
	return balance, err
}

// TokenAccountExists reports whether the owner's ATA for mint exists.
func (g *SolanaGateway) TokenAccountExists(ctx context.Context, owner, mint solana.PublicKey) (bool, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return false, fmt.Errorf("failed to derive token account address: %w", err)
	}

	var exists bool
	err = g.withRetry(ctx, "get_account_info", func() error {
		out, err := g.client.GetAccountInfo(ctx, ata)
		if err != nil {
			if isAccountNotFound(err) {
				exists = false
				return nil
			}
			return err
		}
		exists = out != nil && out.Value != nil
		return nil
	})
	return exists, err
}

// LatestBlockhash fetches a fresh anchor at finalized commitment.
func (g *SolanaGateway) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	var bh Blockhash
	err := g.withRetry(ctx, "get_latest_blockhash", func() error {
		out, err := g.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return err
		}
		bh = Blockhash{
			Hash:                 out.Value.Blockhash,
			LastValidBlockHeight: out.Value.LastValidBlockHeight,
		}
		return nil
	})
	return bh, err
}

// Submit broadcasts the signed transaction. Submission errors are not
// blind-retried: a stale blockhash is surfaced for the re-finalize path and
// everything else is terminal, because resubmitting an unclassified failure
// risks a duplicate charge.
func (g *SolanaGateway) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	started := time.Now()
	sig, err := g.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	g.metrics.ObserveChain("submit", time.Since(started))
	if err != nil {
		if isBlockhashExpired(err) {
			return solana.Signature{}, fmt.Errorf("%w: %v", apperr.ErrBlockhashExpired, err)
		}
		g.log.Warn("transaction submission failed", zap.Error(err))
		return solana.Signature{}, fmt.Errorf("%w: %v", apperr.ErrSubmission, err)
	}
	return sig, nil
}

// Confirm polls signature status until confirmed commitment or ctx expiry.
func (g *SolanaGateway) Confirm(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		out, err := g.client.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: signature %s", apperr.ErrFailedTx, sig)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
		if err != nil {
			g.log.Debug("signature status poll failed", zap.Error(err), zap.Stringer("signature", sig))
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: confirmation window elapsed for %s: %v", apperr.ErrSubmission, sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

// TransactionBySignature fetches and reduces a settled transaction.
func (g *SolanaGateway) TransactionBySignature(ctx context.Context, sig solana.Signature) (*TxRecord, error) {
	maxVersion := uint64(0)
	var out *rpc.GetTransactionResult
	err := g.withRetry(ctx, "get_transaction", func() error {
		res, err := g.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			if isAccountNotFound(err) {
				return nil
			}
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrPaymentNotFound, sig)
	}
	return reduceTransaction(sig, out)
}

// FindTransferByMemo scans recent signatures of addr for a memo containing
// memoTag. The RPC signature listing carries parsed memos, so only the
// matching transaction is fetched in full.
func (g *SolanaGateway) FindTransferByMemo(ctx context.Context, addr solana.PublicKey, memoTag string) (*TxRecord, error) {
	limit := memoScanLimit
	var sigs []*rpc.TransactionSignature
	err := g.withRetry(ctx, "get_signatures", func() error {
		out, err := g.client.GetSignaturesForAddressWithOpts(ctx, addr, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		sigs = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, info := range sigs {
		if info == nil || info.Memo == nil || !strings.Contains(*info.Memo, memoTag) {
			continue
		}
		return g.TransactionBySignature(ctx, info.Signature)
	}
	return nil, fmt.Errorf("%w: no recent transaction carries memo %q", apperr.ErrPaymentNotFound, memoTag)
}

// reduceTransaction flattens an RPC transaction result into a TxRecord.
func reduceTransaction(sig solana.Signature, res *rpc.GetTransactionResult) (*TxRecord, error) {
	rec := &TxRecord{
		Signature: sig,
		Slot:      uint64(res.Slot),
	}
	if res.BlockTime != nil {
		rec.BlockTime = res.BlockTime.Time()
	}
	if res.Meta != nil {
		rec.Failed = res.Meta.Err != nil
		rec.PreBalances = res.Meta.PreBalances
		rec.PostBalances = res.Meta.PostBalances

		changes := map[string]*TokenBalanceChange{}
		for _, pre := range res.Meta.PreTokenBalances {
			if pre.Owner == nil {
				continue
			}
			amt, _ := strconv.ParseUint(pre.UiTokenAmount.Amount, 10, 64)
			key := pre.Owner.String() + ":" + pre.Mint.String()
			changes[key] = &TokenBalanceChange{Owner: *pre.Owner, Mint: pre.Mint, Pre: amt}
		}
		for _, post := range res.Meta.PostTokenBalances {
			if post.Owner == nil {
				continue
			}
			amt, _ := strconv.ParseUint(post.UiTokenAmount.Amount, 10, 64)
			key := post.Owner.String() + ":" + post.Mint.String()
			if tc, ok := changes[key]; ok {
				tc.Post = amt
			} else {
				changes[key] = &TokenBalanceChange{Owner: *post.Owner, Mint: post.Mint, Post: amt}
			}
		}
		for _, tc := range changes {
			rec.TokenChanges = append(rec.TokenChanges, *tc)
		}
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction %s: %w", sig, err)
	}
	rec.AccountKeys = tx.Message.AccountKeys

	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
			continue
		}
		prog := tx.Message.AccountKeys[inst.ProgramIDIndex]
		if prog.Equals(solana.MemoProgramID) {
			rec.Memo = string(inst.Data)
			break
		}
	}

	return rec, nil
}

// withRetry runs fn with bounded exponential backoff. Only read-path
// operations go through here; submission is classified, not retried.
func (g *SolanaGateway) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", apperr.ErrRPCUnavailable, ctx.Err())
			case <-time.After(retryBase << (attempt - 1)):
			}
		}

		started := time.Now()
		err = fn()
		g.metrics.ObserveChain(op, time.Since(started))
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", apperr.ErrRPCUnavailable, err)
		}
		g.log.Debug("rpc call failed, retrying", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", apperr.ErrRPCUnavailable, op, retryAttempts, err)
}

// isAccountNotFound matches the RPC error shapes for absent accounts and
// transactions.
func isAccountNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "could not find account") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "Invalid param: could not find")
}

// isBlockhashExpired matches the node's stale-anchor rejection.
func isBlockhashExpired(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Blockhash not found") ||
		strings.Contains(msg, "blockhash not found") ||
		strings.Contains(msg, "BlockhashNotFound")
}
