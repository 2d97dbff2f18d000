package ports

import "context"

// NonceStore issues and consumes single-use login nonces.
// Consume reports false for unknown or expired nonces; the error is reserved
// for backend failures and means nothing was consumed.
type NonceStore interface {
	Issue(ctx context.Context, address string) (string, error)
	Consume(ctx context.Context, address, nonce string) (bool, error)
}
