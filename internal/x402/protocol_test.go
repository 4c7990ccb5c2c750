package x402

import (
	"context"
	"encoding/base64"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/chain"
	"github.com/taskbay/walletcore/internal/chain/chaintest"
	"github.com/taskbay/walletcore/internal/metrics"
	"github.com/taskbay/walletcore/internal/model"
	"github.com/taskbay/walletcore/internal/txbuilder"
)

func newProtocol(gw *chaintest.Fake) *Protocol {
	return New(gw, txbuilder.New(gw), "solana-devnet", zap.NewNop(), metrics.New(prometheus.NewRegistry()))
}

func TestCreateDemand(t *testing.T) {
	gw := chaintest.New()
	p := newProtocol(gw)
	payer := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()

	demand, err := p.CreateDemand(context.Background(), payer, recipient, decimal.RequireFromString("0.25"), model.NativeAsset(), "req-7")
	require.NoError(t, err)

	assert.Equal(t, "exact", demand.Terms.Scheme)
	assert.Equal(t, "solana-devnet", demand.Terms.Network)
	assert.Equal(t, "250000000", demand.Terms.MaxAmountRequired)
	assert.Equal(t, recipient.String(), demand.Terms.PayTo)
	assert.Equal(t, "SOL", demand.Terms.Asset)
	assert.Equal(t, "req-7", demand.Terms.Memo)
	assert.Equal(t, 60, demand.Terms.MaxTimeoutSeconds)

	// The advertised transaction decodes, is unsigned, and names the payer
	// as fee payer.
	raw, err := base64.StdEncoding.DecodeString(demand.UnsignedTxBase64)
	require.NoError(t, err)
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	require.NotEmpty(t, tx.Message.AccountKeys)
	assert.True(t, tx.Message.AccountKeys[0].Equals(payer))
	require.Len(t, tx.Message.Instructions, 2, "transfer plus memo")
}

func TestCreateDemandTokenAsset(t *testing.T) {
	gw := chaintest.New()
	p := newProtocol(gw)
	payer := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	gw.SetToken(recipient, mint, 0)

	demand, err := p.CreateDemand(context.Background(), payer, recipient, decimal.RequireFromString("5"), model.Asset{Symbol: "USDC", Mint: mint, Decimals: 6}, "")
	require.NoError(t, err)
	assert.Equal(t, mint.String(), demand.Terms.Asset)
	assert.Equal(t, "5000000", demand.Terms.MaxAmountRequired)
}

func TestCreateDemandRejectsDust(t *testing.T) {
	p := newProtocol(chaintest.New())
	payer := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()

	_, err := p.CreateDemand(context.Background(), payer, recipient, decimal.Zero, model.NativeAsset(), "")
	require.ErrorIs(t, err, apperr.ErrAmountTooSmall)
}

// paidRecord is a settled transfer where recipient gained delta lamports.
func paidRecord(sig solana.Signature, sender, recipient solana.PublicKey, delta int64) *chain.TxRecord {
	return &chain.TxRecord{
		Signature:    sig,
		Slot:         42,
		AccountKeys:  []solana.PublicKey{sender, recipient},
		PreBalances:  []uint64{10_000_000_000, 1_000_000_000},
		PostBalances: []uint64{10_000_000_000 - uint64(delta), 1_000_000_000 + uint64(delta)},
	}
}

func TestVerifyPayment(t *testing.T) {
	gw := chaintest.New()
	p := newProtocol(gw)
	sender := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()

	var sig solana.Signature
	sig[0] = 1
	gw.PutRecord(paidRecord(sig, sender, recipient, 250_000_000))

	v, err := p.VerifyPayment(context.Background(), sig, decimal.RequireFromString("0.25"), recipient, model.NativeAsset())
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.True(t, decimal.RequireFromString("0.25").Equal(v.Amount))
	assert.Equal(t, uint64(42), v.Slot)
	assert.Equal(t, sender.String(), v.Sender)
}

func TestVerifyPaymentOverpaymentAccepted(t *testing.T) {
	gw := chaintest.New()
	p := newProtocol(gw)
	sender := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()

	var sig solana.Signature
	sig[0] = 2
	gw.PutRecord(paidRecord(sig, sender, recipient, 300_000_000))

	v, err := p.VerifyPayment(context.Background(), sig, decimal.RequireFromString("0.25"), recipient, model.NativeAsset())
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestVerifyPaymentAmountShort(t *testing.T) {
	gw := chaintest.New()
	p := newProtocol(gw)
	sender := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()

	var sig solana.Signature
	sig[0] = 3
	gw.PutRecord(paidRecord(sig, sender, recipient, 100_000_000))

	v, err := p.VerifyPayment(context.Background(), sig, decimal.RequireFromString("0.25"), recipient, model.NativeAsset())
	require.ErrorIs(t, err, apperr.ErrPaymentMismatch)
	require.NotNil(t, v)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "amount mismatch")
}

func TestVerifyPaymentWrongRecipient(t *testing.T) {
	gw := chaintest.New()
	p := newProtocol(gw)
	sender := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()
	bystander := solana.NewWallet().PublicKey()

	var sig solana.Signature
	sig[0] = 4
	gw.PutRecord(paidRecord(sig, sender, bystander, 250_000_000))

	v, err := p.VerifyPayment(context.Background(), sig, decimal.RequireFromString("0.25"), recipient, model.NativeAsset())
	require.ErrorIs(t, err, apperr.ErrPaymentMismatch)
	assert.False(t, v.Valid)
}

func TestVerifyPaymentRecipientLostFunds(t *testing.T) {
	gw := chaintest.New()
	p := newProtocol(gw)
	sender := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()

	var sig solana.Signature
	sig[0] = 5
	// Recipient appears in the transaction but its balance went down.
	gw.PutRecord(&chain.TxRecord{
		Signature:    sig,
		AccountKeys:  []solana.PublicKey{recipient, sender},
		PreBalances:  []uint64{1_000_000_000, 0},
		PostBalances: []uint64{750_000_000, 250_000_000},
	})

	v, err := p.VerifyPayment(context.Background(), sig, decimal.RequireFromString("0.25"), recipient, model.NativeAsset())
	require.ErrorIs(t, err, apperr.ErrPaymentMismatch)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "did not increase")
}

func TestVerifyPaymentUnknownSignature(t *testing.T) {
	p := newProtocol(chaintest.New())
	var sig solana.Signature
	sig[0] = 6

	_, err := p.VerifyPayment(context.Background(), sig, decimal.RequireFromString("0.25"), solana.NewWallet().PublicKey(), model.NativeAsset())
	require.ErrorIs(t, err, apperr.ErrPaymentNotFound)
}

func TestVerifyPaymentFailedTransaction(t *testing.T) {
	gw := chaintest.New()
	p := newProtocol(gw)
	recipient := solana.NewWallet().PublicKey()

	var sig solana.Signature
	sig[0] = 7
	gw.PutRecord(&chain.TxRecord{Signature: sig, Failed: true})

	_, err := p.VerifyPayment(context.Background(), sig, decimal.RequireFromString("0.25"), recipient, model.NativeAsset())
	require.ErrorIs(t, err, apperr.ErrFailedTx)
}

func TestVerifyPaymentTokenDelta(t *testing.T) {
	gw := chaintest.New()
	p := newProtocol(gw)
	sender := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	var sig solana.Signature
	sig[0] = 8
	gw.PutRecord(&chain.TxRecord{
		Signature:   sig,
		AccountKeys: []solana.PublicKey{sender},
		TokenChanges: []chain.TokenBalanceChange{
			{Owner: recipient, Mint: mint, Pre: 0, Post: 5_000_000},
		},
	})

	v, err := p.VerifyPayment(context.Background(), sig, decimal.RequireFromString("5"), recipient, model.Asset{Symbol: "USDC", Mint: mint, Decimals: 6})
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.True(t, decimal.RequireFromString("5").Equal(v.Amount))
}
