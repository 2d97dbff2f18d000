package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// Encoding selects the textual form of issued nonces
type Encoding string

const (
	EncodingHex    Encoding = "hex"
	EncodingBase58 Encoding = "base58"

	// nonceEntropy is the number of random bytes behind every nonce
	nonceEntropy = 16

	// DefaultNonceTTL is how long an issued nonce stays consumable
	DefaultNonceTTL = 5 * time.Minute
)

// ParseEncoding validates an encoding name
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case EncodingHex, EncodingBase58:
		return Encoding(s), nil
	default:
		return "", fmt.Errorf("unknown nonce encoding %q", s)
	}
}

type options struct {
	encoding Encoding
	now      func() time.Time
}

// Option configures a nonce store
type Option func(*options)

// WithEncoding sets the nonce encoding, hex by default
func WithEncoding(enc Encoding) Option {
	return func(o *options) {
		o.encoding = enc
	}
}

// WithClock replaces time.Now, used by tests to move past expiry
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{
		encoding: EncodingHex,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// generateNonce returns nonceEntropy random bytes in the requested encoding
func generateNonce(enc Encoding) (string, error) {
	b := make([]byte, nonceEntropy)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	if enc == EncodingBase58 {
		return base58.Encode(b), nil
	}
	return hex.EncodeToString(b), nil
}
