// Package txbuilder assembles unsigned transfer transactions. Building and
// finalizing are separate steps because blockhashes expire: Finalize must
// be the last call before signing, and a stale-anchor submission means
// re-finalizing with a fresh hash, never retrying the old one.
package txbuilder

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"

	"github.com/taskbay/walletcore/internal/chain"
	"github.com/taskbay/walletcore/internal/common"
	"github.com/taskbay/walletcore/internal/model"
)

// Builder assembles transfer and memo instructions against the gateway.
type Builder struct {
	gw chain.Gateway
}

// New creates a Builder.
func New(gw chain.Gateway) *Builder {
	return &Builder{gw: gw}
}

// Unsigned is an instruction set awaiting finalization and signing.
type Unsigned struct {
	instructions []solana.Instruction
}

// BuildTransfer appends a transfer of amount (UI units) from one address to
// another. The native asset becomes a system transfer; a fungible asset
// becomes a TransferChecked between the parties' associated token accounts,
// scaled by the asset's declared decimals, with the destination account
// created on the fly when it does not exist yet.
func (b *Builder) BuildTransfer(ctx context.Context, from, to solana.PublicKey, amount decimal.Decimal, asset model.Asset) (*Unsigned, error) {
	units, err := common.ToBaseUnits(amount, asset.Decimals)
	if err != nil {
		return nil, err
	}

	if asset.IsNative() {
		transfer := system.NewTransferInstruction(units, from, to).Build()
		return &Unsigned{instructions: []solana.Instruction{transfer}}, nil
	}

	sourceAccount, _, err := solana.FindAssociatedTokenAddress(from, asset.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source token account: %w", err)
	}
	destAccount, _, err := solana.FindAssociatedTokenAddress(to, asset.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	var instructions []solana.Instruction

	destExists, err := b.gw.TokenAccountExists(ctx, to, asset.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to check destination token account: %w", err)
	}
	if !destExists {
		createATA := associatedtokenaccount.NewCreateInstruction(
			from,       // payer
			to,         // owner
			asset.Mint, // mint
		).Build()
		instructions = append(instructions, createATA)
	}

	transfer := token.NewTransferCheckedInstruction(
		units,
		asset.Decimals,
		sourceAccount,
		asset.Mint,
		destAccount,
		from,
		[]solana.PublicKey{},
	).Build()
	instructions = append(instructions, transfer)

	return &Unsigned{instructions: instructions}, nil
}

// AttachMemo appends an opaque annotation instruction signed by the fee
// payer. Used to bind a transfer to an off-chain request id so an
// interrupted flow can later be reconciled by memo lookup.
func (u *Unsigned) AttachMemo(text string, signer solana.PublicKey) *Unsigned {
	memo := solana.NewInstruction(
		solana.MemoProgramID,
		solana.AccountMetaSlice{solana.Meta(signer).SIGNER()},
		[]byte(text),
	)
	u.instructions = append(u.instructions, memo)
	return u
}

// Finalize fetches the current blockhash and stamps it plus the fee payer
// onto the transaction. The result must be signed and submitted promptly;
// past the expiry window the caller re-finalizes instead of resubmitting.
func (b *Builder) Finalize(ctx context.Context, u *Unsigned, feePayer solana.PublicKey) (*solana.Transaction, error) {
	if len(u.instructions) == 0 {
		return nil, fmt.Errorf("no instructions to finalize")
	}

	recent, err := b.gw.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		u.instructions,
		recent.Hash,
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	return tx, nil
}
