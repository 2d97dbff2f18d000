package eth

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignTextRecoverAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg := []byte("example.com wants you to sign in with your Ethereum account:")
	sig, err := SignText(key, msg)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)
	assert.Contains(t, []byte{27, 28}, sig[64])

	got, err := RecoverAddress(TextHash(msg), sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), got)
}

func TestRecoverAddressAcceptsZeroBasedV(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	hash := TextHash([]byte("hello"))
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)

	got, err := RecoverAddress(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), got)
}

func TestRecoverAddressRejectsMalformed(t *testing.T) {
	hash := TextHash([]byte("hello"))

	_, err := RecoverAddress(hash, make([]byte, 64))
	assert.ErrorIs(t, err, ErrBadSignature)

	sig := make([]byte, SignatureLength)
	sig[64] = 30
	_, err = RecoverAddress(hash, sig)
	assert.ErrorIs(t, err, ErrBadSignature)

	sig[64] = 27
	_, err = RecoverAddress(hash, sig)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestTextHashIsDomainSeparated(t *testing.T) {
	msg := []byte("hello")
	assert.NotEqual(t, crypto.Keccak256(msg), TextHash(msg))
	assert.Equal(t, crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n5hello")), TextHash(msg))
}
