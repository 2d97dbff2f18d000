package eth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const eip1271ABI = `[{"type":"function","name":"isValidSignature","stateMutability":"view",
"inputs":[{"name":"hash","type":"bytes32"},{"name":"signature","type":"bytes"}],
"outputs":[{"name":"magicValue","type":"bytes4"}]}]`

// EIP1271MagicValue is returned by isValidSignature for a valid signature
var EIP1271MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

// ContractVerifier validates signatures of smart-contract wallets through
// their on-chain isValidSignature(bytes32,bytes) method
type ContractVerifier struct {
	caller  ethereum.ContractCaller
	abi     abi.ABI
	timeout time.Duration
}

// DefaultCallTimeout bounds isValidSignature when no positive timeout is given
const DefaultCallTimeout = 5 * time.Second

// NewContractVerifier creates a verifier calling through caller, usually an *ethclient.Client
func NewContractVerifier(caller ethereum.ContractCaller, timeout time.Duration) (*ContractVerifier, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	parsed, err := abi.JSON(strings.NewReader(eip1271ABI))
	if err != nil {
		return nil, fmt.Errorf("parse eip-1271 abi: %w", err)
	}

	return &ContractVerifier{
		caller:  caller,
		abi:     parsed,
		timeout: timeout,
	}, nil
}

// IsValidSignature asks the wallet contract whether sig is valid for hash.
// Any call failure, including the timeout, is returned as an error.
func (v *ContractVerifier) IsValidSignature(ctx context.Context, wallet common.Address, hash []byte, sig []byte) (bool, error) {
	if len(hash) != common.HashLength {
		return false, fmt.Errorf("hash must be %d bytes", common.HashLength)
	}

	data, err := v.abi.Pack("isValidSignature", [32]byte(hash), sig)
	if err != nil {
		return false, fmt.Errorf("pack call: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	out, err := v.caller.CallContract(ctx, ethereum.CallMsg{To: &wallet, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call isValidSignature: %w", err)
	}

	values, err := v.abi.Unpack("isValidSignature", out)
	if err != nil || len(values) != 1 {
		return false, fmt.Errorf("unpack isValidSignature result: %w", err)
	}

	magic, ok := values[0].([4]byte)
	if !ok {
		return false, fmt.Errorf("unexpected result type %T", values[0])
	}

	return magic == EIP1271MagicValue, nil
}
