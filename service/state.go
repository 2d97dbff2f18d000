package service

import (
	"errors"

	"github.com/regrant/regrant-auth/core"
)

// LoginState is a step of the SIWE login state machine
type LoginState string

const (
	StateReceived          LoginState = "RECEIVED"
	StateParsed            LoginState = "PARSED"
	StateNonceValidated    LoginState = "NONCE_VALIDATED"
	StateSignatureVerified LoginState = "SIGNATURE_VERIFIED"
	StateAddressMatched    LoginState = "ADDRESS_MATCHED"
	StateUserResolved      LoginState = "USER_RESOLVED"
	StateRejected          LoginState = "REJECTED"
)

// reason names the rejection cause for logs and metrics
func reason(err error) string {
	switch {
	case errors.Is(err, core.ErrMalformedMessage):
		return "malformed_message"
	case errors.Is(err, core.ErrNonceInvalid):
		return "nonce_invalid"
	case errors.Is(err, core.ErrExpiredMessage):
		return "expired_message"
	case errors.Is(err, core.ErrNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, core.ErrDomainMismatch):
		return "domain_mismatch"
	case errors.Is(err, core.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, core.ErrAddressMismatch):
		return "address_mismatch"
	case errors.Is(err, core.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, core.ErrInactiveUser):
		return "inactive_user"
	default:
		return "internal"
	}
}
