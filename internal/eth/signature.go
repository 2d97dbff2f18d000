// Package eth holds the Ethereum signing primitives used by the SIWE verifier:
// the EIP-191 personal-sign digest, ECDSA signer recovery and the EIP-1271
// smart-contract wallet check.
package eth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an r || s || v ECDSA signature
const SignatureLength = crypto.SignatureLength

var ErrBadSignature = errors.New("malformed ecdsa signature")

// TextHash returns keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg)
func TextHash(msg []byte) []byte {
	return accounts.TextHash(msg)
}

// RecoverAddress recovers the address that produced sig over hash.
// Wallets emit v as 27/28 while go-ethereum expects 0/1; both are accepted.
func RecoverAddress(hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", SignatureLength, ErrBadSignature)
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id: %w", ErrBadSignature)
	}

	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", ErrBadSignature)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// SignText signs msg with the personal-sign prefix the way a wallet does,
// returning a signature with v in {27, 28}
func SignText(key *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(TextHash(msg), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
