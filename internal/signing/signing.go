// Package signing is the keyed-hash primitive under both exit tokens and QR
// signatures: a pipe-delimited payload, an HMAC-SHA256 hex signature, and a
// base64url envelope around the two. Verification fails closed — malformed
// input of any kind is a false, never an error a caller could mishandle.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Delimiter separates payload fields. Join rejects fields containing it, so a
// signed payload always splits back into the fields that were signed.
const Delimiter = "|"

var ErrDelimiterInField = errors.New("signing: field contains payload delimiter")

type Signer struct {
	secret []byte
}

func NewSigner(secret string) Signer {
	return Signer{secret: []byte(secret)}
}

// Sign returns the hex HMAC-SHA256 of payload.
func (s Signer) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time.
func (s Signer) Verify(payload, signature string) bool {
	presented, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hmac.Equal(presented, mac.Sum(nil))
}

// Join builds a delimiter-separated payload, refusing any field that would
// make the encoding ambiguous.
func Join(fields ...string) (string, error) {
	for _, f := range fields {
		if strings.Contains(f, Delimiter) {
			return "", fmt.Errorf("%w: %q", ErrDelimiterInField, f)
		}
	}
	return strings.Join(fields, Delimiter), nil
}

// Nonce returns 8 random bytes hex-encoded.
func Nonce() string {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		// crypto/rand failing means the process has no usable entropy source.
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Encode wraps a signed payload in the opaque form handed to clients.
func Encode(signed string) string {
	return base64.URLEncoding.EncodeToString([]byte(signed))
}

// Decode reverses Encode. Callers treat an error as verification failure.
func Decode(opaque string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(opaque)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
