// Package gate implements the exit-authorization core: the exit-token and QR
// signature services and the two-phase state machine that sequences student
// verification, optional asset verification, and the audit trail.
package gate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dbugate/internal/models"
	"dbugate/internal/repository"
)

// Decision reasons are part of the observable contract: the UI and audits
// distinguish them, so they are constants, not free-form strings.
const (
	ReasonStudentNotFound   = "Student not found"
	ReasonStudentInactive   = "Student inactive"
	ReasonStudentInvalid    = "Student invalid or inactive"
	ReasonInvalidToken      = "Invalid or expired exit token"
	ReasonInvalidQR         = "Invalid QR"
	ReasonOwnershipMismatch = "Ownership mismatch"
	ReasonExitVerified      = "Exit verified successfully"
	ReasonAssetsPresent     = "Registered assets present"
	ReasonExitWithoutAssets = "Exit without registered assets"
)

// ScanStudentResult is the phase-one outcome. ExitToken is set only when
// Status is OK; a blocked scan never yields a usable token.
type ScanStudentResult struct {
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Student    *models.Student `json:"student,omitempty"`
	HasAssets  bool            `json:"has_assets"`
	AssetCount int64           `json:"asset_count"`
	ExitToken  string          `json:"exit_token,omitempty"`
}

// Decision is a terminal gate outcome, phase two of the state machine.
type Decision struct {
	Status  string          `json:"status"`
	Reason  string          `json:"reason"`
	Student *models.Student `json:"student,omitempty"`
	Asset   *models.Asset   `json:"asset,omitempty"`
}

// Service orchestrates scan-student → [scan-asset | exit-without-asset],
// re-reading live student/asset state at every step rather than trusting the
// phase-one snapshot.
type Service struct {
	students repository.StudentRepo
	assets   repository.AssetRepo
	exitLogs repository.ExitLogRepo
	tokens   *ExitTokens
	qr       *QRSignatures
	lg       *zap.SugaredLogger
	now      func() time.Time
}

func NewService(
	students repository.StudentRepo,
	assets repository.AssetRepo,
	exitLogs repository.ExitLogRepo,
	tokens *ExitTokens,
	qr *QRSignatures,
	lg *zap.SugaredLogger,
) *Service {
	return &Service{
		students: students,
		assets:   assets,
		exitLogs: exitLogs,
		tokens:   tokens,
		qr:       qr,
		lg:       lg,
		now:      time.Now,
	}
}

// record appends exactly one audit row for a terminal decision. A failed
// audit write is logged but does not overturn the decision already made —
// the operator-facing outcome must not flip from a storage hiccup.
func (s *Service) record(ctx context.Context, studentID string, assetID *uint, operatorID uint, result, reason string) {
	l := &models.ExitLog{
		Timestamp:  s.now(),
		StudentID:  studentID,
		AssetID:    assetID,
		OperatorID: operatorID,
		Result:     result,
		Reason:     reason,
	}
	if err := s.exitLogs.Append(ctx, l); err != nil {
		s.lg.Errorw("exit log append failed", "student_id", studentID, "result", result, "error", err)
	}
}

// ScanStudent is phase one. A failed scan is itself a terminal BLOCKED
// decision and is logged; a successful scan only issues the exit token, the
// terminal decision (and its log row) comes from phase two.
func (s *Service) ScanStudent(ctx context.Context, studentID string, operatorID uint) (*ScanStudentResult, error) {
	student, err := s.students.Find(ctx, studentID)
	if err == repository.ErrNotFound {
		s.record(ctx, studentID, nil, operatorID, models.ResultBlocked, ReasonStudentNotFound)
		return &ScanStudentResult{Status: models.ResultBlocked, Reason: ReasonStudentNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	if student.Status != models.StudentActive {
		s.record(ctx, studentID, nil, operatorID, models.ResultBlocked,
			fmt.Sprintf("%s: %s", ReasonStudentInactive, student.Status))
		return &ScanStudentResult{Status: models.ResultBlocked, Reason: ReasonStudentInactive}, nil
	}

	count, err := s.assets.CountActiveByOwner(ctx, studentID)
	if err != nil {
		return nil, err
	}
	hasAssets := count > 0

	token, err := s.tokens.Issue(studentID, operatorID, hasAssets)
	if err != nil {
		return nil, err
	}
	return &ScanStudentResult{
		Status:     "OK",
		Student:    student,
		HasAssets:  hasAssets,
		AssetCount: count,
		ExitToken:  token,
	}, nil
}

// ScanAsset is the phase-two path for students carrying a registered asset.
// Every branch, including token rejection, writes exactly one audit row.
func (s *Service) ScanAsset(ctx context.Context, studentID, qrData, exitToken string, operatorID uint) (*Decision, error) {
	expects := true
	if !s.tokens.Verify(exitToken, studentID, operatorID, &expects) {
		s.record(ctx, studentID, nil, operatorID, models.ResultBlocked, ReasonInvalidToken)
		return &Decision{Status: models.ResultBlocked, Reason: ReasonInvalidToken}, nil
	}

	// Status may have changed since phase one; re-check, never cache.
	student, err := s.students.Find(ctx, studentID)
	if err != nil && err != repository.ErrNotFound {
		return nil, err
	}
	if student == nil || student.Status != models.StudentActive {
		s.record(ctx, studentID, nil, operatorID, models.ResultBlocked, ReasonStudentInvalid)
		return &Decision{Status: models.ResultBlocked, Reason: ReasonStudentInvalid}, nil
	}

	asset := s.qr.Verify(ctx, qrData)
	if asset == nil {
		s.record(ctx, studentID, nil, operatorID, models.ResultBlocked, ReasonInvalidQR)
		return &Decision{Status: models.ResultBlocked, Reason: ReasonInvalidQR, Student: student}, nil
	}
	if asset.OwnerStudentID != studentID {
		s.record(ctx, studentID, &asset.AssetID, operatorID, models.ResultBlocked, ReasonOwnershipMismatch)
		return &Decision{Status: models.ResultBlocked, Reason: ReasonOwnershipMismatch, Student: student}, nil
	}
	if asset.Status != models.AssetActive {
		reason := fmt.Sprintf("Asset %s", asset.Status)
		s.record(ctx, studentID, &asset.AssetID, operatorID, models.ResultBlocked, reason)
		return &Decision{Status: models.ResultBlocked, Reason: reason, Student: student, Asset: asset}, nil
	}

	s.record(ctx, studentID, &asset.AssetID, operatorID, models.ResultAllowed, ReasonExitVerified)
	return &Decision{Status: models.ResultAllowed, Reason: ReasonExitVerified, Student: student, Asset: asset}, nil
}

// ExitWithoutAsset is the phase-two path for students with no registered
// assets. The live re-count defends against an asset registered between the
// two calls: a token issued with expectsAsset=false does not excuse assets
// that exist now.
func (s *Service) ExitWithoutAsset(ctx context.Context, studentID, exitToken string, operatorID uint) (*Decision, error) {
	expects := false
	if !s.tokens.Verify(exitToken, studentID, operatorID, &expects) {
		s.record(ctx, studentID, nil, operatorID, models.ResultBlocked, ReasonInvalidToken)
		return &Decision{Status: models.ResultBlocked, Reason: ReasonInvalidToken}, nil
	}

	student, err := s.students.Find(ctx, studentID)
	if err != nil && err != repository.ErrNotFound {
		return nil, err
	}
	if student == nil || student.Status != models.StudentActive {
		s.record(ctx, studentID, nil, operatorID, models.ResultBlocked, ReasonStudentInvalid)
		return &Decision{Status: models.ResultBlocked, Reason: ReasonStudentInvalid}, nil
	}

	count, err := s.assets.CountActiveByOwner(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		s.record(ctx, studentID, nil, operatorID, models.ResultBlocked, ReasonAssetsPresent)
		return &Decision{Status: models.ResultBlocked, Reason: ReasonAssetsPresent, Student: student}, nil
	}

	s.record(ctx, studentID, nil, operatorID, models.ResultAllowed, ReasonExitWithoutAssets)
	return &Decision{Status: models.ResultAllowed, Reason: ReasonExitWithoutAssets, Student: student}, nil
}

// Logs returns the most recent terminal decisions, newest first.
func (s *Service) Logs(ctx context.Context, limit int) ([]models.ExitLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.exitLogs.Recent(ctx, limit)
}

// Statistics aggregates the audit trail and directory totals for reporting.
type Statistics struct {
	TotalStudents  int64 `json:"total_students"`
	ActiveStudents int64 `json:"active_students"`
	TotalAssets    int64 `json:"total_assets"`
	ActiveAssets   int64 `json:"active_assets"`
	repository.Stats
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	var st Statistics
	var err error
	if st.TotalStudents, err = s.students.Count(ctx); err != nil {
		return nil, err
	}
	if st.ActiveStudents, err = s.students.CountActive(ctx); err != nil {
		return nil, err
	}
	if st.TotalAssets, err = s.assets.Count(ctx); err != nil {
		return nil, err
	}
	if st.ActiveAssets, err = s.assets.CountActive(ctx); err != nil {
		return nil, err
	}
	if st.Stats, err = s.exitLogs.Aggregate(ctx); err != nil {
		return nil, err
	}
	return &st, nil
}
