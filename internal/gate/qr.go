package gate

import (
	"context"
	"strconv"
	"strings"
	"time"

	"dbugate/internal/models"
	"dbugate/internal/repository"
	"dbugate/internal/signing"
)

// QRSignatures binds an asset record to the opaque string printed on its
// sticker and resolves scans back to the live record.
type QRSignatures struct {
	signer   signing.Signer
	validity time.Duration
	assets   repository.AssetRepo
	now      func() time.Time
}

func NewQRSignatures(secret string, validity time.Duration, assets repository.AssetRepo) *QRSignatures {
	return &QRSignatures{
		signer:   signing.NewSigner(secret),
		validity: validity,
		assets:   assets,
		now:      time.Now,
	}
}

// Generate signs the asset's identity at registration time. The result is
// stored on the asset record and re-generated only when the asset is
// re-registered or reassigned.
func (q *QRSignatures) Generate(a *models.Asset) (string, error) {
	payload, err := signing.Join(
		strconv.FormatUint(uint64(a.AssetID), 10),
		a.OwnerStudentID,
		a.SerialNumber,
		signing.Nonce(),
		strconv.FormatInt(q.now().Unix(), 10),
	)
	if err != nil {
		return "", err
	}
	return signing.Encode(payload + signing.Delimiter + q.signer.Sign(payload)), nil
}

// Verify resolves a scanned string to the live asset it was generated for,
// or nil. The signed payload alone is never trusted: after the signature and
// validity window check, the asset is looked up and rejected if its current
// serial number or owner no longer match what was signed. A sticker printed
// before an admin reassignment therefore stops verifying even though its
// signature is still cryptographically valid. Callers receive the live
// record so status checks always see current state.
func (q *QRSignatures) Verify(ctx context.Context, qrData string) *models.Asset {
	decoded, err := signing.Decode(qrData)
	if err != nil {
		return nil
	}
	parts := strings.Split(decoded, signing.Delimiter)
	if len(parts) != 6 {
		return nil
	}
	payload := strings.Join(parts[:5], signing.Delimiter)
	if !q.signer.Verify(payload, parts[5]) {
		return nil
	}
	issued, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return nil
	}
	if q.now().Sub(time.Unix(issued, 0)) > q.validity {
		return nil
	}
	assetID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil
	}
	asset, err := q.assets.Find(ctx, uint(assetID))
	if err != nil {
		return nil
	}
	if asset.SerialNumber != parts[2] {
		return nil
	}
	if asset.OwnerStudentID != parts[1] {
		return nil
	}
	return asset
}
