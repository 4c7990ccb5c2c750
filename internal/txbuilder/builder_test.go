package txbuilder

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskbay/walletcore/internal/apperr"
	"github.com/taskbay/walletcore/internal/chain/chaintest"
	"github.com/taskbay/walletcore/internal/model"
)

func programAt(t *testing.T, tx *solana.Transaction, i int) solana.PublicKey {
	t.Helper()
	prog, err := tx.Message.Program(tx.Message.Instructions[i].ProgramIDIndex)
	require.NoError(t, err)
	return prog
}

func TestBuildNativeTransfer(t *testing.T) {
	gw := chaintest.New()
	b := New(gw)
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	u, err := b.BuildTransfer(context.Background(), from, to, decimal.RequireFromString("0.5"), model.NativeAsset())
	require.NoError(t, err)

	tx, err := b.Finalize(context.Background(), u, from)
	require.NoError(t, err)

	require.Len(t, tx.Message.Instructions, 1)
	assert.True(t, programAt(t, tx, 0).Equals(system.ProgramID))
	assert.True(t, tx.Message.AccountKeys[0].Equals(from), "fee payer must be first account")
	assert.Equal(t, gw.Blockhash.Hash, tx.Message.RecentBlockhash)
}

func TestBuildTransferRejectsDust(t *testing.T) {
	b := New(chaintest.New())
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	_, err := b.BuildTransfer(context.Background(), from, to, decimal.RequireFromString("0.0000000001"), model.NativeAsset())
	require.ErrorIs(t, err, apperr.ErrAmountTooSmall)

	_, err = b.BuildTransfer(context.Background(), from, to, decimal.Zero, model.NativeAsset())
	require.ErrorIs(t, err, apperr.ErrAmountTooSmall)
}

func TestBuildTokenTransferExistingAccount(t *testing.T) {
	gw := chaintest.New()
	b := New(gw)
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	asset := model.Asset{Symbol: "USDC", Mint: mint, Decimals: 6}

	gw.SetToken(to, mint, 0)

	u, err := b.BuildTransfer(context.Background(), from, to, decimal.RequireFromString("12.5"), asset)
	require.NoError(t, err)
	tx, err := b.Finalize(context.Background(), u, from)
	require.NoError(t, err)

	require.Len(t, tx.Message.Instructions, 1)
	assert.True(t, programAt(t, tx, 0).Equals(token.ProgramID))
}

func TestBuildTokenTransferCreatesMissingAccount(t *testing.T) {
	gw := chaintest.New()
	b := New(gw)
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	asset := model.Asset{Symbol: "USDC", Mint: mint, Decimals: 6}

	u, err := b.BuildTransfer(context.Background(), from, to, decimal.RequireFromString("1"), asset)
	require.NoError(t, err)
	tx, err := b.Finalize(context.Background(), u, from)
	require.NoError(t, err)

	require.Len(t, tx.Message.Instructions, 2)
	assert.True(t, programAt(t, tx, 0).Equals(associatedtokenaccount.ProgramID))
	assert.True(t, programAt(t, tx, 1).Equals(token.ProgramID))
}

func TestAttachMemo(t *testing.T) {
	gw := chaintest.New()
	b := New(gw)
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	u, err := b.BuildTransfer(context.Background(), from, to, decimal.RequireFromString("1"), model.NativeAsset())
	require.NoError(t, err)
	u.AttachMemo("req-42", from)

	tx, err := b.Finalize(context.Background(), u, from)
	require.NoError(t, err)

	require.Len(t, tx.Message.Instructions, 2)
	assert.True(t, programAt(t, tx, 1).Equals(solana.MemoProgramID))
	assert.Equal(t, "req-42", string(tx.Message.Instructions[1].Data))
}

func TestFinalizeEmpty(t *testing.T) {
	b := New(chaintest.New())
	_, err := b.Finalize(context.Background(), &Unsigned{}, solana.NewWallet().PublicKey())
	require.Error(t, err)
}
