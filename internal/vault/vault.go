// Package vault generates and custodies signing keys. The secret half of a
// managed wallet only ever leaves this package through Reconstruct, and the
// caller is expected to zero the returned keypair the moment signing is
// done.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/scrypt"

	"github.com/taskbay/walletcore/internal/apperr"
)

const (
	// scrypt parameters sized for a server-side vault: the passphrase is a
	// high-entropy provisioned secret, not a human password, so N=2^15
	// (~32MB, tens of ms) keeps per-request decryption affordable while the
	// salt still makes precomputation useless.
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32

	saltLen  = 32
	nonceLen = 12

	secretKeyLen = 64 // ed25519 expanded private key
)

// Vault encrypts and decrypts wallet secrets with a key derived from the
// server-held passphrase.
type Vault struct {
	passphrase []byte
}

// New creates a vault around the provisioned passphrase. The passphrase is
// copied; the caller may clear its own buffer.
func New(passphrase []byte) (*Vault, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", apperr.ErrEncryption)
	}
	p := make([]byte, len(passphrase))
	copy(p, passphrase)
	return &Vault{passphrase: p}, nil
}

// Generate produces a fresh keypair. The secret bytes belong to the caller,
// which must pass them to Encrypt and then clear them.
func (v *Vault) Generate() (solana.PublicKey, solana.PrivateKey, error) {
	wallet := solana.NewWallet()
	if len(wallet.PrivateKey) != secretKeyLen {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: keypair generation produced %d bytes", apperr.ErrEncryption, len(wallet.PrivateKey))
	}
	return wallet.PublicKey(), wallet.PrivateKey, nil
}

// Encrypt seals secret bytes with AES-256-GCM under a scrypt-derived key.
// The blob layout is salt || nonce || ciphertext+tag, base64 encoded.
func (v *Vault) Encrypt(secret []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("%w: failed to generate salt: %v", apperr.ErrEncryption, err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: failed to generate nonce: %v", apperr.ErrEncryption, err)
	}

	aead, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	blob := make([]byte, 0, saltLen+nonceLen+len(secret)+aead.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, secret, nil)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt inverts Encrypt. A failed authentication tag is a hard failure:
// tampered or wrongly-keyed ciphertext never yields bytes.
func (v *Vault) Decrypt(ciphertext string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed ciphertext encoding", apperr.ErrIntegrity)
	}
	if len(blob) < saltLen+nonceLen {
		return nil, fmt.Errorf("%w: ciphertext too short", apperr.ErrIntegrity)
	}

	salt := blob[:saltLen]
	nonce := blob[saltLen : saltLen+nonceLen]
	sealed := blob[saltLen+nonceLen:]

	aead, err := v.aead(salt)
	if err != nil {
		return nil, err
	}

	secret, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication tag did not verify", apperr.ErrIntegrity)
	}
	return secret, nil
}

// Reconstruct decrypts the wallet's secret and rebuilds a usable keypair.
// The derived public key is checked against the stored address on every
// call; a mismatch means the ciphertext was corrupted or swapped and must
// never produce a keypair for the wrong account. The caller owns the
// returned keypair and must clear it after signing.
func (v *Vault) Reconstruct(address solana.PublicKey, ciphertext string) (solana.PrivateKey, error) {
	secret, err := v.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}

	if len(secret) != secretKeyLen {
		clear(secret)
		return nil, fmt.Errorf("%w: decrypted secret has invalid length %d", apperr.ErrKeyMismatch, len(secret))
	}

	keypair := solana.PrivateKey(secret)
	if !keypair.PublicKey().Equals(address) {
		clear(secret)
		return nil, fmt.Errorf("%w: ciphertext does not belong to %s", apperr.ErrKeyMismatch, address)
	}

	return keypair, nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(v.passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: key derivation failed: %v", apperr.ErrEncryption, err)
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEncryption, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEncryption, err)
	}
	return aead, nil
}
