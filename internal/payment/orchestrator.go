// Package payment drives the custodial pay flow: quota check, charge,
// confirmation, and the bookkeeping that keeps every request in a
// well-defined state even when the process dies mid-transfer.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/chain"
	"github.com/taskbay/walletcore/internal/common"
	"github.com/taskbay/walletcore/internal/metrics"
	"github.com/taskbay/walletcore/internal/model"
	"github.com/taskbay/walletcore/internal/repo"
	"github.com/taskbay/walletcore/internal/signer"
	"github.com/taskbay/walletcore/internal/txbuilder"
	"github.com/taskbay/walletcore/internal/vault"
)

// networkFeeLamports is the flat signature fee the payer wallet must hold
// on top of the transfer amount.
const networkFeeLamports = 5000

// finalizeAttempts bounds the re-finalize-and-resign path taken when a
// submission bounces off an expired blockhash.
const finalizeAttempts = 2

// Settings carries the platform's pricing and quota policy.
type Settings struct {
	Quota            int
	Price            decimal.Decimal
	Asset            model.Asset
	ReceivingAddress solana.PublicKey
	ConfirmTimeout   time.Duration
}

// Orchestrator owns the payment request state machine.
type Orchestrator struct {
	store    repo.Store
	gw       chain.Gateway
	vault    *vault.Vault
	builder  *txbuilder.Builder
	settings Settings
	log      *zap.Logger
	metrics  *metrics.Recorder

	// reqLocks serializes concurrent Pay calls on the same request id so
	// two callers racing past the status check cannot both enter the
	// charge path. The quota counter needs no lock: the store increments
	// it atomically.
	reqLocks sync.Map
}

// New creates an Orchestrator.
func New(store repo.Store, gw chain.Gateway, v *vault.Vault, b *txbuilder.Builder, settings Settings, log *zap.Logger, rec *metrics.Recorder) *Orchestrator {
	return &Orchestrator{
		store:    store,
		gw:       gw,
		vault:    v,
		builder:  b,
		settings: settings,
		log:      log.Named("payment"),
		metrics:  rec,
	}
}

// Result is the terminal outcome of a Pay call.
type Result struct {
	Status      model.PaymentStatus
	TxSignature string
}

// Pay drives the request to a terminal state. Terminal requests are
// returned as-is, never re-charged; a request found mid-charge is
// reconciled against chain state before anything else happens.
func (o *Orchestrator) Pay(ctx context.Context, requestID, ownerID string) (*Result, error) {
	unlock := o.lockRequest(requestID)
	defer unlock()

	req, err := o.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: request %s does not belong to owner", apperr.ErrNotFound, requestID)
	}

	switch req.Status {
	case model.StatusPaid, model.StatusFree:
		// Idempotency guard: the recorded result stands, no chain work.
		return &Result{Status: req.Status, TxSignature: req.TxRef}, nil
	case model.StatusFailed:
		return &Result{Status: req.Status}, fmt.Errorf("%w: request %s already failed: %s", apperr.ErrDoubleChargeGuard, req.ID, req.FailReason)
	case model.StatusCharging:
		return o.reconcile(ctx, req)
	}

	// Free-use gate. The increment is atomic in the store, so at most
	// Quota callers ever observe a count within the quota even under
	// concurrent load.
	count, err := o.store.GetAndIncrementFreeUses(ctx, req.OwnerID, req.ServiceClass)
	if err != nil {
		return nil, err
	}
	if count <= o.settings.Quota {
		res, err := o.grantFree(ctx, req)
		if err != nil {
			// The slot was consumed but the grant was never recorded; hand
			// it back so a retry does not burn a second one.
			if derr := o.store.DecrementFreeUses(ctx, req.OwnerID, req.ServiceClass); derr != nil {
				o.log.Warn("free-use slot not released",
					zap.String("owner", req.OwnerID),
					zap.String("service_class", req.ServiceClass),
					zap.Error(derr))
			}
			return nil, err
		}
		return res, nil
	}

	return o.charge(ctx, req)
}

// grantFree records a zero-amount ledger entry and closes the request.
func (o *Orchestrator) grantFree(ctx context.Context, req *model.PaymentRequest) (*Result, error) {
	wallet, err := o.store.GetWallet(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req.Status = model.StatusFree
	req.UpdatedAt = now

	rec := &model.LedgerRecord{
		ID:                  uuid.NewString(),
		WalletAddress:       wallet.Address,
		Direction:           model.DirectionCredit,
		Amount:              decimal.Zero,
		Currency:            o.settings.Asset.Symbol,
		CounterpartyAddress: o.settings.ReceivingAddress.String(),
		RequestID:           req.ID,
		ConfirmedAt:         &now,
	}

	if err := o.store.RecordPayment(ctx, req, rec); err != nil {
		return nil, err
	}

	o.metrics.PaymentOutcome("free")
	o.log.Info("free use granted",
		zap.String("request", req.ID),
		zap.String("owner", req.OwnerID),
		zap.String("service_class", req.ServiceClass))
	return &Result{Status: model.StatusFree}, nil
}

// charge runs the on-chain transfer of the service price to the platform
// address and closes the request on confirmation.
func (o *Orchestrator) charge(ctx context.Context, req *model.PaymentRequest) (*Result, error) {
	wallet, err := o.store.GetWallet(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	payer, err := wallet.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("stored wallet address is invalid: %w", err)
	}

	if err := o.checkFunds(ctx, payer); err != nil {
		return o.fail(ctx, req, err)
	}

	// Persist Charging before touching the chain so an interruption from
	// here on is visible and reconcilable.
	req.Status = model.StatusCharging
	req.AmountDue = o.settings.Price
	req.UpdatedAt = time.Now().UTC()
	if err := o.store.PutRequest(ctx, req); err != nil {
		return nil, err
	}

	sig, err := o.transfer(ctx, req, wallet, payer)
	if err != nil {
		// The submission may have landed despite the error (timeout,
		// cancellation mid-poll). Reconcile before declaring failure.
		landed, rerr := o.reconcile(ctx, req)
		if landed != nil || rerr == nil {
			return landed, rerr
		}
		// Inconclusive: the chain could not be consulted, so the request
		// stays in Charging and is reconciled on next access.
		o.log.Warn("submission outcome unknown, deferring reconciliation",
			zap.String("request", req.ID), zap.Error(err))
		return nil, fmt.Errorf("submission outcome unknown for request %s: %w", req.ID, rerr)
	}

	return o.settle(ctx, req, wallet, sig)
}

// transfer builds, finalizes, signs and submits the service-price
// transfer, re-finalizing once on a stale blockhash. The keypair is
// reconstructed after finalization and discarded before confirmation
// polling, keeping its lifetime free of network waits.
func (o *Orchestrator) transfer(ctx context.Context, req *model.PaymentRequest, wallet *model.ManagedWallet, payer solana.PublicKey) (solana.Signature, error) {
	unsigned, err := o.builder.BuildTransfer(ctx, payer, o.settings.ReceivingAddress, o.settings.Price, o.settings.Asset)
	if err != nil {
		return solana.Signature{}, err
	}
	unsigned.AttachMemo(req.ID, payer)

	var sig solana.Signature
	for attempt := 0; attempt < finalizeAttempts; attempt++ {
		tx, err := o.builder.Finalize(ctx, unsigned, payer)
		if err != nil {
			return solana.Signature{}, err
		}

		keypair, err := o.vault.Reconstruct(payer, wallet.EncryptedSecret)
		if err != nil {
			return solana.Signature{}, err
		}
		_, err = signer.Sign(tx, keypair)
		signer.Zero(keypair)
		if err != nil {
			return solana.Signature{}, err
		}

		sig, err = o.gw.Submit(ctx, tx)
		if err == nil {
			return sig, nil
		}
		if !errors.Is(err, apperr.ErrBlockhashExpired) {
			return solana.Signature{}, err
		}
		o.log.Info("blockhash expired, re-finalizing", zap.String("request", req.ID), zap.Int("attempt", attempt+1))
	}
	return solana.Signature{}, fmt.Errorf("%w: blockhash kept expiring", apperr.ErrSubmission)
}

// settle waits for confirmation and persists the Paid transition together
// with the ledger record.
func (o *Orchestrator) settle(ctx context.Context, req *model.PaymentRequest, wallet *model.ManagedWallet, sig solana.Signature) (*Result, error) {
	confirmCtx, cancel := context.WithTimeout(ctx, o.settings.ConfirmTimeout)
	defer cancel()

	if err := o.gw.Confirm(confirmCtx, sig); err != nil {
		if errors.Is(err, apperr.ErrFailedTx) {
			return o.fail(ctx, req, err)
		}
		// Not confirmed within the window: the transaction may still land.
		landed, rerr := o.reconcile(ctx, req)
		if landed != nil || rerr == nil {
			return landed, rerr
		}
		// Inconclusive: the request stays in Charging and is reconciled
		// on next access.
		o.log.Warn("confirmation outcome unknown, deferring reconciliation",
			zap.String("request", req.ID), zap.Error(err))
		return nil, fmt.Errorf("confirmation outcome unknown for request %s: %w", req.ID, rerr)
	}

	return o.recordPaid(ctx, req, wallet.Address, sig.String())
}

// recordPaid writes the ledger record and the Paid transition as one unit.
func (o *Orchestrator) recordPaid(ctx context.Context, req *model.PaymentRequest, walletAddress, sig string) (*Result, error) {
	now := time.Now().UTC()
	req.Status = model.StatusPaid
	req.TxRef = sig
	req.UpdatedAt = now

	rec := &model.LedgerRecord{
		ID:                  uuid.NewString(),
		WalletAddress:       walletAddress,
		Direction:           model.DirectionCredit,
		Amount:              o.settings.Price,
		Currency:            o.settings.Asset.Symbol,
		CounterpartyAddress: o.settings.ReceivingAddress.String(),
		TxSignature:         sig,
		RequestID:           req.ID,
		ConfirmedAt:         &now,
	}

	if err := o.store.RecordPayment(ctx, req, rec); err != nil {
		if errors.Is(err, apperr.ErrDuplicateSignature) {
			// Another writer already booked this transfer; the on-chain
			// state is what counts, so the request is paid either way.
			if perr := o.store.PutRequest(ctx, req); perr != nil {
				return nil, perr
			}
			o.metrics.PaymentOutcome("paid")
			return &Result{Status: model.StatusPaid, TxSignature: sig}, nil
		}
		return nil, err
	}

	o.metrics.PaymentOutcome("paid")
	o.log.Info("payment confirmed",
		zap.String("request", req.ID),
		zap.String("owner", req.OwnerID),
		zap.String("signature", sig))
	return &Result{Status: model.StatusPaid, TxSignature: sig}, nil
}

// reconcile resolves a request stuck in Charging: if a transaction tagged
// with the request id landed on chain and did not fail, the request is
// paid; if the chain conclusively shows no such transaction, or a failed
// one, the request is failed. When the chain cannot be consulted the
// request is left in Charging and the error is returned with a nil
// result. This is the recovery path for crashes and cancellations
// mid-submission, chosen over blind retry to rule out double payment.
func (o *Orchestrator) reconcile(ctx context.Context, req *model.PaymentRequest) (*Result, error) {
	wallet, err := o.store.GetWallet(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	payer, err := wallet.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("stored wallet address is invalid: %w", err)
	}

	rec, err := o.gw.FindTransferByMemo(ctx, payer, req.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrPaymentNotFound) {
			o.log.Warn("no landed transfer found for interrupted charge", zap.String("request", req.ID))
			return o.fail(ctx, req, fmt.Errorf("%w: interrupted charge left no transaction", apperr.ErrSubmission))
		}
		// The chain could not be consulted; leave the request in Charging
		// rather than guessing.
		return nil, err
	}
	if rec.Failed {
		return o.fail(ctx, req, fmt.Errorf("%w: signature %s", apperr.ErrFailedTx, rec.Signature))
	}

	o.log.Info("reconciled interrupted charge", zap.String("request", req.ID), zap.Stringer("signature", rec.Signature))
	return o.recordPaid(ctx, req, wallet.Address, rec.Signature.String())
}

// fail moves the request to Failed and surfaces the typed cause.
func (o *Orchestrator) fail(ctx context.Context, req *model.PaymentRequest, cause error) (*Result, error) {
	req.Status = model.StatusFailed
	req.FailReason = apperr.Code(cause)
	req.UpdatedAt = time.Now().UTC()
	if err := o.store.PutRequest(ctx, req); err != nil {
		return nil, errors.Join(cause, err)
	}

	o.metrics.PaymentOutcome("failed")
	o.log.Warn("payment failed",
		zap.String("request", req.ID),
		zap.String("owner", req.OwnerID),
		zap.String("reason", req.FailReason))
	return &Result{Status: model.StatusFailed}, cause
}

// checkFunds verifies the payer can cover price plus network fee before
// the request is moved into Charging.
func (o *Orchestrator) checkFunds(ctx context.Context, payer solana.PublicKey) error {
	lamports, err := o.gw.NativeBalance(ctx, payer)
	if err != nil {
		return err
	}

	if o.settings.Asset.IsNative() {
		required, err := common.ToBaseUnits(o.settings.Price, o.settings.Asset.Decimals)
		if err != nil {
			return err
		}
		if lamports < required+networkFeeLamports {
			return fmt.Errorf("%w: need %d lamports, have %d", apperr.ErrInsufficientBalance, required+networkFeeLamports, lamports)
		}
		return nil
	}

	if lamports < networkFeeLamports {
		return fmt.Errorf("%w: cannot cover network fee", apperr.ErrInsufficientBalance)
	}
	required, err := common.ToBaseUnits(o.settings.Price, o.settings.Asset.Decimals)
	if err != nil {
		return err
	}
	tokens, err := o.gw.TokenBalance(ctx, payer, o.settings.Asset.Mint)
	if err != nil {
		return err
	}
	if tokens < required {
		return fmt.Errorf("%w: need %d base units of %s, have %d", apperr.ErrInsufficientBalance, required, o.settings.Asset.Symbol, tokens)
	}
	return nil
}

// lockRequest acquires the per-request mutex.
func (o *Orchestrator) lockRequest(requestID string) func() {
	v, _ := o.reqLocks.LoadOrStore(requestID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateRequest opens a Pending payment request for a job.
func (o *Orchestrator) CreateRequest(ctx context.Context, ownerID, serviceClass string, intake []model.IntakeAnswer) (*model.PaymentRequest, error) {
	now := time.Now().UTC()
	req := &model.PaymentRequest{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		ServiceClass: serviceClass,
		Status:       model.StatusPending,
		AmountDue:    o.settings.Price,
		Intake:       intake,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.store.PutRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}
