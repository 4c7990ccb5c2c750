// Package x402 implements the request/verify payment handshake: the
// server answers "payment required" with machine-readable terms and an
// unsigned transaction, an external signer countersigns, and the server
// later verifies the landed transaction on chain before releasing the
// gated resource.
package x402

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/chain"
	"github.com/taskbay/walletcore/internal/common"
	"github.com/taskbay/walletcore/internal/metrics"
	"github.com/taskbay/walletcore/internal/model"
	"github.com/taskbay/walletcore/internal/txbuilder"
)

// demandTimeoutSeconds is advertised in the terms; it tracks the
// blockhash validity window with headroom for the external signer.
const demandTimeoutSeconds = 60

// Protocol builds payment demands and verifies claimed payments.
type Protocol struct {
	gw      chain.Gateway
	builder *txbuilder.Builder
	network string
	log     *zap.Logger
	metrics *metrics.Recorder
}

// New creates a Protocol.
func New(gw chain.Gateway, b *txbuilder.Builder, network string, log *zap.Logger, rec *metrics.Recorder) *Protocol {
	return &Protocol{
		gw:      gw,
		builder: b,
		network: network,
		log:     log.Named("x402"),
		metrics: rec,
	}
}

// Demand is the "payment required" response handed to an external signer.
type Demand struct {
	UnsignedTxBase64 string
	Terms            model.PaymentTerms
}

// CreateDemand builds, but does not sign, a transfer from the payer to the
// recipient and wraps it in x402 terms. The payer is the fee payer, so the
// external signer's single signature covers fee and transfer.
func (p *Protocol) CreateDemand(ctx context.Context, payer, recipient solana.PublicKey, amount decimal.Decimal, asset model.Asset, memo string) (*Demand, error) {
	units, err := common.ToBaseUnits(amount, asset.Decimals)
	if err != nil {
		return nil, err
	}

	unsigned, err := p.builder.BuildTransfer(ctx, payer, recipient, amount, asset)
	if err != nil {
		return nil, err
	}
	if memo != "" {
		unsigned.AttachMemo(memo, payer)
	}

	tx, err := p.builder.Finalize(ctx, unsigned, payer)
	if err != nil {
		return nil, err
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	assetID := asset.Symbol
	if !asset.IsNative() {
		assetID = asset.Mint.String()
	}

	return &Demand{
		UnsignedTxBase64: base64.StdEncoding.EncodeToString(raw),
		Terms: model.PaymentTerms{
			Scheme:            "exact",
			Network:           p.network,
			MaxAmountRequired: fmt.Sprintf("%d", units),
			PayTo:             recipient.String(),
			Asset:             assetID,
			Memo:              memo,
			MaxTimeoutSeconds: demandTimeoutSeconds,
		},
	}, nil
}

// Verification is the verdict on a claimed payment.
type Verification struct {
	Valid  bool
	Reason string
	Amount decimal.Decimal // amount actually received by the recipient
	Slot   uint64
	Sender string
}

// VerifyPayment fetches the transaction by signature and checks that the
// expected recipient's balance grew by at least the expected amount. A
// recipient or amount mismatch is a rejection, not a warning: this check
// is the sole gate against presenting an unrelated confirmed transaction
// as proof of payment.
func (p *Protocol) VerifyPayment(ctx context.Context, sig solana.Signature, expectedAmount decimal.Decimal, recipient solana.PublicKey, asset model.Asset) (*Verification, error) {
	expectedUnits, err := common.ToBaseUnits(expectedAmount, asset.Decimals)
	if err != nil {
		return nil, err
	}

	rec, err := p.gw.TransactionBySignature(ctx, sig)
	if err != nil {
		if errors.Is(err, apperr.ErrPaymentNotFound) {
			p.metrics.Verification(false)
		}
		return nil, err
	}
	if rec.Failed {
		p.metrics.Verification(false)
		return nil, fmt.Errorf("%w: %s", apperr.ErrFailedTx, sig)
	}

	var delta int64
	var found bool
	if asset.IsNative() {
		delta, found = rec.NativeDelta(recipient)
	} else {
		delta, found = rec.TokenDelta(recipient, asset.Mint)
	}

	verdict := func(reason string) (*Verification, error) {
		p.metrics.Verification(false)
		p.log.Info("payment verification rejected",
			zap.Stringer("signature", sig),
			zap.String("reason", reason))
		return &Verification{Valid: false, Reason: reason, Slot: rec.Slot},
			fmt.Errorf("%w: %s", apperr.ErrPaymentMismatch, reason)
	}

	if !found {
		return verdict("recipient not involved in transaction")
	}
	if delta <= 0 {
		return verdict("recipient balance did not increase")
	}
	if uint64(delta) < expectedUnits {
		return verdict(fmt.Sprintf("amount mismatch: received %d base units, expected %d", delta, expectedUnits))
	}

	received := common.FromBaseUnits(uint64(delta), asset.Decimals)
	sender := ""
	if len(rec.AccountKeys) > 0 {
		sender = rec.AccountKeys[0].String()
	}

	p.metrics.Verification(true)
	return &Verification{
		Valid:  true,
		Amount: received,
		Slot:   rec.Slot,
		Sender: sender,
	}, nil
}
