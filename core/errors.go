package core

import "errors"

var (
	// SIWE login
	ErrMalformedMessage = errors.New("malformed message")
	ErrNonceInvalid     = errors.New("nonce is invalid")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpiredMessage   = errors.New("message has expired")
	ErrNotYetValid      = errors.New("message is not yet valid")
	ErrDomainMismatch   = errors.New("message domain mismatch")
	ErrAddressMismatch  = errors.New("signer does not match claimed address")
	ErrInactiveUser     = errors.New("inactive user")
	ErrInvalidAddress   = errors.New("invalid ethereum address")

	// Session tokens
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")

	// Persistence
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email is already in use")
)

// IsAuthFailure reports whether err is one of the login rejections that
// collapse into a generic unauthorized response
func IsAuthFailure(err error) bool {
	for _, target := range []error{
		ErrMalformedMessage,
		ErrNonceInvalid,
		ErrInvalidSignature,
		ErrExpiredMessage,
		ErrNotYetValid,
		ErrDomainMismatch,
		ErrAddressMismatch,
		ErrInvalidAddress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
