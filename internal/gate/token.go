package gate

import (
	"strconv"
	"strings"
	"time"

	"dbugate/internal/signing"
)

// ExitTokens issues and verifies the short-lived token that ties one
// scan-student call to the single follow-up call it authorizes. Tokens are
// stateless: verification is pure recomputation, nothing is stored server
// side. A still-valid token presented twice within the TTL verifies twice;
// the short window plus the client discarding tokens after use bounds that
// exposure. See DESIGN.md for the nonce-consumption alternative.
type ExitTokens struct {
	signer signing.Signer
	ttl    time.Duration
	now    func() time.Time
}

func NewExitTokens(secret string, ttl time.Duration) *ExitTokens {
	return &ExitTokens{signer: signing.NewSigner(secret), ttl: ttl, now: time.Now}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Issue binds studentID, operatorID and the expects-asset flag into an opaque
// token. Called exactly once per successful student scan.
func (t *ExitTokens) Issue(studentID string, operatorID uint, expectsAsset bool) (string, error) {
	payload, err := signing.Join(
		studentID,
		strconv.FormatUint(uint64(operatorID), 10),
		boolFlag(expectsAsset),
		signing.Nonce(),
		strconv.FormatInt(t.now().Unix(), 10),
	)
	if err != nil {
		return "", err
	}
	return signing.Encode(payload + signing.Delimiter + t.signer.Sign(payload)), nil
}

// Verify fails closed: any decode error, field-count mismatch, signature
// mismatch, elapsed TTL, or identity/flag mismatch is a false. When
// requireExpectsAsset is nil the flag is not checked; gate endpoints always
// pass a concrete expectation so an asset-exit token cannot satisfy a
// no-asset exit or vice versa.
func (t *ExitTokens) Verify(token, studentID string, operatorID uint, requireExpectsAsset *bool) bool {
	decoded, err := signing.Decode(token)
	if err != nil {
		return false
	}
	parts := strings.Split(decoded, signing.Delimiter)
	if len(parts) != 6 {
		return false
	}
	payload := strings.Join(parts[:5], signing.Delimiter)
	if !t.signer.Verify(payload, parts[5]) {
		return false
	}
	issued, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return false
	}
	if t.now().Sub(time.Unix(issued, 0)) > t.ttl {
		return false
	}
	if parts[0] != studentID {
		return false
	}
	if parts[1] != strconv.FormatUint(uint64(operatorID), 10) {
		return false
	}
	if requireExpectsAsset != nil && parts[2] != boolFlag(*requireExpectsAsset) {
		return false
	}
	return true
}
