// Package siwe parses, formats and verifies EIP-4361 Sign-In with Ethereum messages.
package siwe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/regrant/regrant-auth/core"
)

const (
	headerSuffix = " wants you to sign in with your Ethereum account:"

	prefixURI            = "URI:"
	prefixVersion        = "Version:"
	prefixChainID        = "Chain ID:"
	prefixNonce          = "Nonce:"
	prefixIssuedAt       = "Issued At:"
	prefixExpirationTime = "Expiration Time:"
	prefixNotBefore      = "Not Before:"
	prefixRequestID      = "Request ID:"
	prefixResources      = "Resources:"
)

var headerPattern = regexp.MustCompile(`^(.+) wants you to sign in with your Ethereum account:$`)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrMalformedMessage, fmt.Sprintf(format, args...))
}

// Parse converts the raw text of an EIP-4361 message into a SiweMessage.
// All failures wrap core.ErrMalformedMessage and no partial message is returned.
func Parse(raw string) (*core.SiweMessage, error) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	if len(lines) < 2 {
		return nil, malformed("message too short")
	}

	msg := &core.SiweMessage{Raw: raw}

	match := headerPattern.FindStringSubmatch(lines[0])
	if match == nil {
		return nil, malformed("missing domain header")
	}
	msg.Domain = strings.TrimSpace(match[1])

	msg.Address = lines[1]
	if !core.IsWalletAddress(msg.Address) {
		return nil, malformed("invalid address %q", msg.Address)
	}

	i := 2
	var statement []string
	for ; i < len(lines) && !strings.HasPrefix(lines[i], prefixURI); i++ {
		if lines[i] != "" {
			statement = append(statement, lines[i])
		}
	}
	msg.Statement = strings.Join(statement, "\n")

	var hasChainID, hasIssuedAt bool
	for ; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, prefixURI):
			msg.URI = value(line, prefixURI)
		case strings.HasPrefix(line, prefixVersion):
			msg.Version = value(line, prefixVersion)
		case strings.HasPrefix(line, prefixChainID):
			id, err := strconv.ParseUint(value(line, prefixChainID), 10, 63)
			if err != nil {
				return nil, malformed("chain id: %v", err)
			}
			if id == 0 {
				return nil, malformed("chain id must be positive")
			}
			msg.ChainID = int64(id)
			hasChainID = true
		case strings.HasPrefix(line, prefixNonce):
			msg.Nonce = value(line, prefixNonce)
		case strings.HasPrefix(line, prefixIssuedAt):
			ts, err := parseTime(value(line, prefixIssuedAt))
			if err != nil {
				return nil, malformed("issued at: %v", err)
			}
			msg.IssuedAt = ts
			hasIssuedAt = true
		case strings.HasPrefix(line, prefixExpirationTime):
			ts, err := parseTime(value(line, prefixExpirationTime))
			if err != nil {
				return nil, malformed("expiration time: %v", err)
			}
			msg.ExpirationTime = &ts
		case strings.HasPrefix(line, prefixNotBefore):
			ts, err := parseTime(value(line, prefixNotBefore))
			if err != nil {
				return nil, malformed("not before: %v", err)
			}
			msg.NotBefore = &ts
		case strings.HasPrefix(line, prefixRequestID):
			msg.RequestID = value(line, prefixRequestID)
		case line == prefixResources:
			for i+1 < len(lines) && strings.HasPrefix(lines[i+1], "- ") {
				i++
				msg.Resources = append(msg.Resources, strings.TrimSpace(strings.TrimPrefix(lines[i], "- ")))
			}
		}
	}

	switch {
	case msg.URI == "":
		return nil, malformed("missing uri")
	case msg.Version == "":
		return nil, malformed("missing version")
	case !hasChainID:
		return nil, malformed("missing chain id")
	case msg.Nonce == "":
		return nil, malformed("missing nonce")
	case !hasIssuedAt:
		return nil, malformed("missing issued at")
	}

	return msg, nil
}

func value(line, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, prefix))
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
