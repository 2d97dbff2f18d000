package ports

import "time"

// SessionIssuer mints and validates bearer tokens keyed by wallet address
type SessionIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
	Validate(token string) (string, error)
}
