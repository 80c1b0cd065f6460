// Package repository defines the directory interfaces the gate logic depends
// on, plus their gorm implementations. The interfaces keep the token and gate
// services testable against in-memory stubs.
package repository

import (
	"context"
	"errors"

	"dbugate/internal/models"
)

// ErrNotFound is returned by every Find* when no row matches. The gorm
// implementations translate gorm.ErrRecordNotFound so callers never depend on
// the driver.
var ErrNotFound = errors.New("record not found")

type StudentRepo interface {
	Find(ctx context.Context, studentID string) (*models.Student, error)
	Create(ctx context.Context, s *models.Student) error
	Save(ctx context.Context, s *models.Student) error
	List(ctx context.Context) ([]models.Student, error)
	Count(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

type AssetRepo interface {
	Find(ctx context.Context, assetID uint) (*models.Asset, error)
	FindBySerial(ctx context.Context, serial string) (*models.Asset, error)
	// CountActiveByOwner backs both the expects-asset flag at scan time and
	// the registered-assets re-check on the no-asset exit path.
	CountActiveByOwner(ctx context.Context, studentID string) (int64, error)
	Create(ctx context.Context, a *models.Asset) error
	Save(ctx context.Context, a *models.Asset) error
	Delete(ctx context.Context, assetID uint) error
	List(ctx context.Context) ([]models.Asset, error)
	Count(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

type OperatorRepo interface {
	Find(ctx context.Context, operatorID uint) (*models.Operator, error)
	FindByUsername(ctx context.Context, username string) (*models.Operator, error)
	Create(ctx context.Context, o *models.Operator) error
	Count(ctx context.Context) (int64, error)
}

// Stats is the reporting aggregate over the audit trail.
type Stats struct {
	TotalExits   int64 `json:"total_exits"`
	AllowedExits int64 `json:"allowed_exits"`
	BlockedExits int64 `json:"blocked_exits"`
	RecentExits  int64 `json:"recent_exits_24h"`
}

// ExitLogRepo is append-only: there is deliberately no update or delete.
type ExitLogRepo interface {
	Append(ctx context.Context, l *models.ExitLog) error
	Recent(ctx context.Context, limit int) ([]models.ExitLog, error)
	Aggregate(ctx context.Context) (Stats, error)
}
