package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims are the claims of a session access token; the subject is
// the wallet address that completed SIWE login
type AccessClaims struct {
	jwt.RegisteredClaims
}
