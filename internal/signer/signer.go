// Package signer produces submittable transactions from vault keypairs.
// Callers scope the keypair to a single Sign call: decrypt, sign, then
// Zero, with no network call holding the decrypted bytes live.
package signer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/taskbay/walletcore/internal/apperr"
)

// Sign signs the finalized transaction in place with the given keypair.
// Deterministic given inputs; never persists the keypair. Fails when the
// keypair's public key is not among the transaction's declared signers.
func Sign(tx *solana.Transaction, keypair solana.PrivateKey) (*solana.Transaction, error) {
	pub := keypair.PublicKey()
	if !tx.Message.IsSigner(pub) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrSignerMismatch, pub)
	}

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(key) {
			return &keypair
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// Zero wipes a keypair buffer. Deferred by every caller of
// vault.Reconstruct.
func Zero(keypair solana.PrivateKey) {
	clear(keypair)
}
