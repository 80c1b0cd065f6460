package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dbugate/internal/models"
	"dbugate/internal/repository/memory"
)

type fixture struct {
	svc      *Service
	students *memory.Students
	assets   *memory.Assets
	logs     *memory.ExitLogs
	now      time.Time
}

// advance moves the shared clock used by the service, token TTLs, and QR
// validity windows.
func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(students *memory.Students, assets *memory.Assets) *fixture {
	f := &fixture{
		students: students,
		assets:   assets,
		logs:     memory.NewExitLogs(),
		now:      time.Unix(1700000000, 0),
	}
	clock := func() time.Time { return f.now }

	tokens := NewExitTokens("exit-secret", 5*time.Minute)
	tokens.now = clock
	qr := NewQRSignatures("qr-secret", 24*time.Hour, assets)
	qr.now = clock

	f.svc = NewService(students, assets, f.logs, tokens, qr, zap.NewNop().Sugar())
	f.svc.now = clock
	return f
}

func (f *fixture) qrFor(t *testing.T, assetID uint) string {
	t.Helper()
	a, err := f.assets.Find(context.Background(), assetID)
	require.NoError(t, err)
	qr, err := f.svc.qr.Generate(a)
	require.NoError(t, err)
	return qr
}


func lastRow(l *memory.ExitLogs) models.ExitLog {
	rows := l.Rows()
	return rows[len(rows)-1]
}

const operatorID = uint(7)

func activeStudent() *models.Student {
	return &models.Student{StudentID: "STU-1001", FullName: "Abebe Bikila", Status: models.StudentActive}
}

// ── scan-student ─────────────────────────────────────────────────────────────

func TestScanStudentUnknownIsBlockedAndLogged(t *testing.T) {
	f := newFixture(memory.NewStudents(), memory.NewAssets())

	res, err := f.svc.ScanStudent(context.Background(), "STU-404", operatorID)
	require.NoError(t, err)

	assert.Equal(t, models.ResultBlocked, res.Status)
	assert.Equal(t, ReasonStudentNotFound, res.Reason)
	assert.Empty(t, res.ExitToken, "a blocked scan must not yield a usable token")

	require.Len(t, f.logs.Rows(), 1)
	row := lastRow(f.logs)
	assert.Equal(t, models.ResultBlocked, row.Result)
	assert.Equal(t, ReasonStudentNotFound, row.Reason)
	assert.Equal(t, operatorID, row.OperatorID)
}

func TestScanStudentBlockedStudentIsBlockedAndLogged(t *testing.T) {
	s := activeStudent()
	s.Status = models.StudentBlocked
	f := newFixture(memory.NewStudents(s), memory.NewAssets())

	res, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)

	assert.Equal(t, models.ResultBlocked, res.Status)
	assert.Equal(t, ReasonStudentInactive, res.Reason)
	assert.Empty(t, res.ExitToken)
	require.Len(t, f.logs.Rows(), 1)
	assert.Contains(t, lastRow(f.logs).Reason, ReasonStudentInactive)
}

func TestScanStudentSuccessIssuesTokenAndLogsNothing(t *testing.T) {
	f := newFixture(
		memory.NewStudents(activeStudent()),
		memory.NewAssets(&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive}),
	)

	res, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)

	assert.Equal(t, "OK", res.Status)
	assert.True(t, res.HasAssets)
	assert.Equal(t, int64(1), res.AssetCount)
	assert.NotEmpty(t, res.ExitToken)
	require.NotNil(t, res.Student)
	assert.Equal(t, "STU-1001", res.Student.StudentID)
	assert.Empty(t, f.logs.Rows(), "a bare successful scan is not a terminal decision")
}

func TestScanStudentIgnoresRevokedAssetsForExpectation(t *testing.T) {
	f := newFixture(
		memory.NewStudents(activeStudent()),
		memory.NewAssets(&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetRevoked}),
	)

	res, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)
	assert.False(t, res.HasAssets)
	assert.Equal(t, int64(0), res.AssetCount)
}

// ── scan-asset ───────────────────────────────────────────────────────────────

func TestScanAssetHappyPath(t *testing.T) {
	f := newFixture(
		memory.NewStudents(activeStudent()),
		memory.NewAssets(&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive}),
	)

	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)
	require.Equal(t, "OK", scan.Status)

	dec, err := f.svc.ScanAsset(context.Background(), "STU-1001", f.qrFor(t, 1), scan.ExitToken, operatorID)
	require.NoError(t, err)

	assert.Equal(t, models.ResultAllowed, dec.Status)
	assert.Equal(t, ReasonExitVerified, dec.Reason)
	require.NotNil(t, dec.Asset)
	assert.Equal(t, uint(1), dec.Asset.AssetID)

	require.Len(t, f.logs.Rows(), 1)
	row := lastRow(f.logs)
	assert.Equal(t, models.ResultAllowed, row.Result)
	require.NotNil(t, row.AssetID)
	assert.Equal(t, uint(1), *row.AssetID)
}

func TestScanAssetRejectsExpiredToken(t *testing.T) {
	f := newFixture(
		memory.NewStudents(activeStudent()),
		memory.NewAssets(&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive}),
	)

	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)

	f.advance(6 * time.Minute)

	dec, err := f.svc.ScanAsset(context.Background(), "STU-1001", f.qrFor(t, 1), scan.ExitToken, operatorID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultBlocked, dec.Status)
	assert.Equal(t, ReasonInvalidToken, dec.Reason)
	require.Len(t, f.logs.Rows(), 1)
	assert.Equal(t, ReasonInvalidToken, lastRow(f.logs).Reason)
}

func TestScanAssetRejectsTokenIssuedToOtherOperator(t *testing.T) {
	f := newFixture(
		memory.NewStudents(activeStudent()),
		memory.NewAssets(&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive}),
	)

	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)

	dec, err := f.svc.ScanAsset(context.Background(), "STU-1001", f.qrFor(t, 1), scan.ExitToken, operatorID+1)
	require.NoError(t, err)
	assert.Equal(t, models.ResultBlocked, dec.Status)
	assert.Equal(t, ReasonInvalidToken, dec.Reason)
}

func TestScanAssetRechecksStudentStatus(t *testing.T) {
	s := activeStudent()
	students := memory.NewStudents(s)
	f := newFixture(
		students,
		memory.NewAssets(&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive}),
	)

	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)

	// Status changes between the two scans; phase one's snapshot must not be
	// trusted.
	s.Status = models.StudentBlocked
	require.NoError(t, students.Save(context.Background(), s))

	dec, err := f.svc.ScanAsset(context.Background(), "STU-1001", f.qrFor(t, 1), scan.ExitToken, operatorID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultBlocked, dec.Status)
	assert.Equal(t, ReasonStudentInvalid, dec.Reason)
}

func TestScanAssetRejectsInvalidQR(t *testing.T) {
	f := newFixture(
		memory.NewStudents(activeStudent()),
		memory.NewAssets(&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive}),
	)

	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)

	dec, err := f.svc.ScanAsset(context.Background(), "STU-1001", "!!not a qr!!", scan.ExitToken, operatorID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultBlocked, dec.Status)
	assert.Equal(t, ReasonInvalidQR, dec.Reason)
	require.Len(t, f.logs.Rows(), 1)
}

func TestScanAssetRejectsSomeoneElsesAsset(t *testing.T) {
	other := &models.Student{StudentID: "STU-2002", FullName: "Tirunesh Dibaba", Status: models.StudentActive}
	f := newFixture(
		memory.NewStudents(activeStudent(), other),
		memory.NewAssets(
			&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive},
			&models.Asset{OwnerStudentID: "STU-2002", SerialNumber: "SN-HP-002", Status: models.AssetActive},
		),
	)

	// STU-1001 presents STU-2002's laptop. The ownership check in the QR
	// verifier passes (sticker matches its own asset); the gate must catch
	// the student/asset mismatch.
	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)

	dec, err := f.svc.ScanAsset(context.Background(), "STU-1001", f.qrFor(t, 2), scan.ExitToken, operatorID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultBlocked, dec.Status)
	assert.Equal(t, ReasonOwnershipMismatch, dec.Reason)
	row := lastRow(f.logs)
	require.NotNil(t, row.AssetID)
	assert.Equal(t, uint(2), *row.AssetID)
}

func TestScanAssetBlocksRevokedAndStolen(t *testing.T) {
	for _, status := range []string{models.AssetRevoked, models.AssetStolen} {
		t.Run(status, func(t *testing.T) {
			// Asset still active at scan time so the token expects an asset,
			// then flips before the asset scan.
			asset := &models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive}
			assets := memory.NewAssets(asset)
			f := newFixture(memory.NewStudents(activeStudent()), assets)

			scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
			require.NoError(t, err)

			stored, _ := assets.Find(context.Background(), 1)
			stored.Status = status
			require.NoError(t, assets.Save(context.Background(), stored))

			dec, err := f.svc.ScanAsset(context.Background(), "STU-1001", f.qrFor(t, 1), scan.ExitToken, operatorID)
			require.NoError(t, err)
			assert.Equal(t, models.ResultBlocked, dec.Status)
			assert.Equal(t, "Asset "+status, dec.Reason)
		})
	}
}

// ── exit-without-asset ───────────────────────────────────────────────────────

func TestExitWithoutAssetHappyPath(t *testing.T) {
	f := newFixture(memory.NewStudents(activeStudent()), memory.NewAssets())

	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)
	assert.False(t, scan.HasAssets)

	dec, err := f.svc.ExitWithoutAsset(context.Background(), "STU-1001", scan.ExitToken, operatorID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultAllowed, dec.Status)
	assert.Equal(t, ReasonExitWithoutAssets, dec.Reason)
	require.Len(t, f.logs.Rows(), 1)
	assert.Nil(t, lastRow(f.logs).AssetID)
}

func TestExitWithoutAssetRejectsAssetExpectingToken(t *testing.T) {
	f := newFixture(
		memory.NewStudents(activeStudent()),
		memory.NewAssets(&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive}),
	)

	// Token was issued expecting an asset scan; it must not complete a
	// no-asset exit.
	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)
	require.True(t, scan.HasAssets)

	dec, err := f.svc.ExitWithoutAsset(context.Background(), "STU-1001", scan.ExitToken, operatorID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultBlocked, dec.Status)
	assert.Equal(t, ReasonInvalidToken, dec.Reason)
}

func TestExitWithoutAssetCatchesAssetRegisteredBetweenCalls(t *testing.T) {
	assets := memory.NewAssets()
	f := newFixture(memory.NewStudents(activeStudent()), assets)

	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)
	assert.False(t, scan.HasAssets)

	// An asset appears between the two calls; the live re-count must win
	// over the token's expectation.
	require.NoError(t, assets.Create(context.Background(),
		&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-NEW-001", Status: models.AssetActive}))

	dec, err := f.svc.ExitWithoutAsset(context.Background(), "STU-1001", scan.ExitToken, operatorID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultBlocked, dec.Status)
	assert.Equal(t, ReasonAssetsPresent, dec.Reason)
}

// ── audit log ────────────────────────────────────────────────────────────────

func TestEveryTerminalDecisionWritesExactlyOneRow(t *testing.T) {
	f := newFixture(
		memory.NewStudents(activeStudent()),
		memory.NewAssets(&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive}),
	)

	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)
	require.Empty(t, f.logs.Rows())

	_, err = f.svc.ScanAsset(context.Background(), "STU-1001", f.qrFor(t, 1), scan.ExitToken, operatorID)
	require.NoError(t, err)
	assert.Len(t, f.logs.Rows(), 1)

	_, err = f.svc.ScanStudent(context.Background(), "STU-404", operatorID)
	require.NoError(t, err)
	assert.Len(t, f.logs.Rows(), 2)
}

func TestLogsAreOrderedNewestFirstAndIdempotent(t *testing.T) {
	f := newFixture(memory.NewStudents(), memory.NewAssets())

	for _, id := range []string{"STU-404", "STU-405", "STU-406"} {
		_, err := f.svc.ScanStudent(context.Background(), id, operatorID)
		require.NoError(t, err)
	}

	first, err := f.svc.Logs(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "STU-406", first[0].StudentID)
	assert.Equal(t, "STU-405", first[1].StudentID)

	second, err := f.svc.Logs(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, first, second, "repeated reads without new exits must be identical")
}

func TestStatistics(t *testing.T) {
	f := newFixture(
		memory.NewStudents(activeStudent()),
		memory.NewAssets(&models.Asset{OwnerStudentID: "STU-1001", SerialNumber: "SN-DELL-001", Status: models.AssetActive}),
	)

	scan, err := f.svc.ScanStudent(context.Background(), "STU-1001", operatorID)
	require.NoError(t, err)
	_, err = f.svc.ScanAsset(context.Background(), "STU-1001", f.qrFor(t, 1), scan.ExitToken, operatorID)
	require.NoError(t, err)
	_, err = f.svc.ScanStudent(context.Background(), "STU-404", operatorID)
	require.NoError(t, err)

	st, err := f.svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalStudents)
	assert.Equal(t, int64(1), st.ActiveStudents)
	assert.Equal(t, int64(1), st.TotalAssets)
	assert.Equal(t, int64(1), st.ActiveAssets)
	assert.Equal(t, int64(2), st.TotalExits)
	assert.Equal(t, int64(1), st.AllowedExits)
	assert.Equal(t, int64(1), st.BlockedExits)
}
