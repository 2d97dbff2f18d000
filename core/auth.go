package core

import (
	"regexp"
	"strings"
	"time"
)

var walletAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsWalletAddress reports whether s is a 0x-prefixed, 40 hex character address
func IsWalletAddress(s string) bool {
	return walletAddressPattern.MatchString(s)
}

// NormalizeAddress returns the lowercased form used to key nonces and users
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Nonce is a single-use login challenge bound to the address it was issued for
type Nonce struct {
	Value     string    // Random value embedded in the signed message
	Address   string    // Lowercased wallet address the nonce belongs to
	ExpiresAt time.Time // After this instant the nonce can no longer be consumed
}

// Key returns the store key for the nonce
func (n Nonce) Key() string {
	return NonceKey(n.Address, n.Value)
}

// NonceKey builds the "<lowercased address>:<nonce>" lookup key
func NonceKey(address, nonce string) string {
	return NormalizeAddress(address) + ":" + nonce
}

// SiweMessage is a parsed EIP-4361 sign-in message
type SiweMessage struct {
	Domain         string
	Address        string // Verbatim from the message, case preserved
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string

	// Raw is the exact text the wallet signed
	Raw string
}

// LoginRequest carries the fields a client submits to finish a SIWE login
type LoginRequest struct {
	Message   string
	Signature string
	Address   string
	Nonce     string
}

// LoginEvent is published after a login reaches a resolved user
type LoginEvent struct {
	UserID        string    `json:"user_id"`
	WalletAddress string    `json:"wallet_address"`
	NewUser       bool      `json:"new_user"`
	At            time.Time `json:"at"`
}
