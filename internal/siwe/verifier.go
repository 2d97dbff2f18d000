package siwe

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/regrant/regrant-auth/core"
	"github.com/regrant/regrant-auth/internal/eth"
)

// ContractWallets validates signatures of smart-contract wallets (EIP-1271)
type ContractWallets interface {
	IsValidSignature(ctx context.Context, wallet common.Address, hash []byte, sig []byte) (bool, error)
}

// Verifier validates SIWE signatures over the exact signed message text
type Verifier struct {
	domain    string
	contracts ContractWallets
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithDomain requires messages to name the given domain
func WithDomain(domain string) VerifierOption {
	return func(v *Verifier) {
		v.domain = domain
	}
}

// WithContractWallets enables the EIP-1271 fallback for signatures that do
// not recover to the message address
func WithContractWallets(contracts ContractWallets) VerifierOption {
	return func(v *Verifier) {
		v.contracts = contracts
	}
}

// NewVerifier creates a new Verifier
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the message time window and its signature, returning the
// checksum address of the signer. The signer must be the address named in
// the message; anything else fails closed with core.ErrInvalidSignature.
func (v *Verifier) Verify(ctx context.Context, msg *core.SiweMessage, signature string, now time.Time) (common.Address, error) {
	if msg == nil || !core.IsWalletAddress(msg.Address) {
		return common.Address{}, core.ErrInvalidSignature
	}

	if v.domain != "" && msg.Domain != v.domain {
		return common.Address{}, fmt.Errorf("%w: got %q", core.ErrDomainMismatch, msg.Domain)
	}

	if msg.ExpirationTime != nil && !now.Before(*msg.ExpirationTime) {
		return common.Address{}, core.ErrExpiredMessage
	}

	if msg.NotBefore != nil && now.Before(*msg.NotBefore) {
		return common.Address{}, core.ErrNotYetValid
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", core.ErrInvalidSignature)
	}

	expected := common.HexToAddress(msg.Address)
	hash := eth.TextHash([]byte(msg.Raw))

	if len(sig) == eth.SignatureLength {
		recovered, err := eth.RecoverAddress(hash, sig)
		if err == nil && recovered == expected {
			return recovered, nil
		}
	}

	if v.contracts != nil {
		ok, err := v.contracts.IsValidSignature(ctx, expected, hash, sig)
		if err != nil {
			return common.Address{}, fmt.Errorf("contract wallet check: %v: %w", err, core.ErrInvalidSignature)
		}
		if ok {
			return expected, nil
		}
	}

	return common.Address{}, core.ErrInvalidSignature
}
