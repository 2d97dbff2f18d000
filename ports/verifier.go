package ports

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/regrant/regrant-auth/core"
)

// SignatureVerifier checks that a SIWE message was signed by the address it names
type SignatureVerifier interface {
	Verify(ctx context.Context, msg *core.SiweMessage, signature string, now time.Time) (common.Address, error)
}
