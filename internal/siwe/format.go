package siwe

import (
	"strconv"
	"strings"
	"time"

	"github.com/regrant/regrant-auth/core"
)

// Format renders msg as EIP-4361 text. Parse(Format(msg)) yields the same fields.
func Format(msg *core.SiweMessage) string {
	var b strings.Builder

	b.WriteString(msg.Domain + headerSuffix + "\n")
	b.WriteString(msg.Address + "\n")
	b.WriteString("\n")
	if msg.Statement != "" {
		b.WriteString(msg.Statement + "\n")
		b.WriteString("\n")
	}

	field := func(prefix, v string) {
		b.WriteString(prefix + " " + v + "\n")
	}
	field(prefixURI, msg.URI)
	field(prefixVersion, msg.Version)
	field(prefixChainID, strconv.FormatInt(msg.ChainID, 10))
	field(prefixNonce, msg.Nonce)
	field(prefixIssuedAt, msg.IssuedAt.UTC().Format(time.RFC3339))
	if msg.ExpirationTime != nil {
		field(prefixExpirationTime, msg.ExpirationTime.UTC().Format(time.RFC3339))
	}
	if msg.NotBefore != nil {
		field(prefixNotBefore, msg.NotBefore.UTC().Format(time.RFC3339))
	}
	if msg.RequestID != "" {
		field(prefixRequestID, msg.RequestID)
	}
	if len(msg.Resources) > 0 {
		b.WriteString(prefixResources + "\n")
		for _, r := range msg.Resources {
			b.WriteString("- " + r + "\n")
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}
