package vault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskbay/walletcore/internal/apperr"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New([]byte("test-passphrase-0123456789abcdef"))
	require.NoError(t, err)

	pub, secret, err := v.Generate()
	require.NoError(t, err)
	require.Len(t, []byte(secret), 64)

	ciphertext, err := v.Encrypt(secret)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, base64.StdEncoding.EncodeToString(secret))

	keypair, err := v.Reconstruct(pub, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte(secret), []byte(keypair))
	assert.True(t, keypair.PublicKey().Equals(pub))
}

func TestEncryptIsSaltedPerCall(t *testing.T) {
	v, err := New([]byte("test-passphrase-0123456789abcdef"))
	require.NoError(t, err)

	_, secret, err := v.Generate()
	require.NoError(t, err)

	first, err := v.Encrypt(secret)
	require.NoError(t, err)
	second, err := v.Encrypt(secret)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	v, err := New([]byte("test-passphrase-0123456789abcdef"))
	require.NoError(t, err)

	_, secret, err := v.Generate()
	require.NoError(t, err)
	ciphertext, err := v.Encrypt(secret)
	require.NoError(t, err)

	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(blob)

	_, err = v.Decrypt(tampered)
	require.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestDecryptWrongPassphrase(t *testing.T) {
	v, err := New([]byte("test-passphrase-0123456789abcdef"))
	require.NoError(t, err)
	_, secret, err := v.Generate()
	require.NoError(t, err)
	ciphertext, err := v.Encrypt(secret)
	require.NoError(t, err)

	other, err := New([]byte("a-different-passphrase-entirely!"))
	require.NoError(t, err)
	_, err = other.Decrypt(ciphertext)
	require.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestDecryptMalformedInput(t *testing.T) {
	v, err := New([]byte("test-passphrase-0123456789abcdef"))
	require.NoError(t, err)

	_, err = v.Decrypt("not base64 at all %%%")
	require.ErrorIs(t, err, apperr.ErrIntegrity)

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestReconstructRejectsForeignAddress(t *testing.T) {
	v, err := New([]byte("test-passphrase-0123456789abcdef"))
	require.NoError(t, err)

	_, secret, err := v.Generate()
	require.NoError(t, err)
	ciphertext, err := v.Encrypt(secret)
	require.NoError(t, err)

	otherPub, _, err := v.Generate()
	require.NoError(t, err)

	_, err = v.Reconstruct(otherPub, ciphertext)
	require.ErrorIs(t, err, apperr.ErrKeyMismatch)
}

func TestNewRejectsEmptyPassphrase(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, apperr.ErrEncryption)
}
