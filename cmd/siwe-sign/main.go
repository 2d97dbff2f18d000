// Command siwe-sign builds and signs an EIP-4361 login message. Its JSON
// output is the body expected by POST /auth/siwe/login.
package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/regrant/regrant-auth/core"
	"github.com/regrant/regrant-auth/internal/eth"
	"github.com/regrant/regrant-auth/internal/siwe"
)

type loginBody struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now); err != nil {
		fmt.Fprintf(os.Stderr, "siwe-sign: %v\n", err)
		os.Exit(2)
	}
}

func run(args []string, out io.Writer, now func() time.Time) error {
	fs := flag.NewFlagSet("siwe-sign", flag.ContinueOnError)

	keyHex := fs.String("key", os.Getenv("SIWE_PRIVATE_KEY"), "hex private key, a fresh one is generated when empty")
	nonce := fs.String("nonce", "", "nonce returned by GET /auth/siwe/nonce")
	domain := fs.String("domain", "localhost", "domain requesting the signature")
	uri := fs.String("uri", "http://localhost", "URI of the resource")
	chainID := fs.Int64("chain", 1, "chain id")
	statement := fs.String("statement", "", "optional human-readable statement")
	ttl := fs.Duration("ttl", 0, "sets Expiration Time to now+ttl when positive")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *nonce == "" {
		return errors.New("-nonce is required")
	}

	var (
		key *ecdsa.PrivateKey
		err error
	)
	if *keyHex == "" {
		key, err = crypto.GenerateKey()
	} else {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(*keyHex, "0x"))
	}
	if err != nil {
		return fmt.Errorf("private key: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	issuedAt := now().UTC().Truncate(time.Second)
	msg := &core.SiweMessage{
		Domain:    *domain,
		Address:   address,
		Statement: *statement,
		URI:       *uri,
		Version:   "1",
		ChainID:   *chainID,
		Nonce:     *nonce,
		IssuedAt:  issuedAt,
	}
	if *ttl > 0 {
		exp := issuedAt.Add(*ttl)
		msg.ExpirationTime = &exp
	}

	raw := siwe.Format(msg)
	sig, err := eth.SignText(key, []byte(raw))
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(loginBody{
		Message:   raw,
		Signature: hexutil.Encode(sig),
		Address:   address,
		Nonce:     *nonce,
	})
}
