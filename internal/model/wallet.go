package model

import "github.com/gagliardetto/solana-go"

// ManagedWallet is a keypair custodied by the service. The secret half only
// ever exists as vault ciphertext; Address is always the public-key
// derivation of the encrypted material, verified on every reconstruction.
type ManagedWallet struct {
	OwnerID         string `json:"ownerId"`
	Address         string `json:"address"`
	EncryptedSecret string `json:"-"` // vault ciphertext, never serialized over a boundary
	CreatedAt       string `json:"createdAt"`
}

// PublicKey parses the wallet address.
func (w *ManagedWallet) PublicKey() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(w.Address)
}

// Asset identifies the currency of a transfer. A zero Mint means the
// ledger's native asset.
type Asset struct {
	Symbol   string           `json:"symbol"`
	Mint     solana.PublicKey `json:"mint"`
	Decimals uint8            `json:"decimals"`
}

// IsNative reports whether the asset is the chain's native one.
func (a Asset) IsNative() bool {
	return a.Mint.IsZero()
}

// NativeAsset is SOL: 9 decimals, no mint.
func NativeAsset() Asset {
	return Asset{Symbol: "SOL", Decimals: 9}
}
