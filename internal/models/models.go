package models

import "time"

// Status values are stored as plain strings so the audit trail stays
// readable without joins.
const (
	StudentActive  = "active"
	StudentBlocked = "blocked"

	AssetActive  = "active"
	AssetRevoked = "revoked"
	AssetStolen  = "stolen"

	RoleAdmin        = "admin"
	RoleGateOperator = "gate_operator"

	ResultAllowed = "ALLOWED"
	ResultBlocked = "BLOCKED"
)

type Student struct {
	StudentID string `gorm:"primaryKey;size:20" json:"student_id"`
	FullName  string `gorm:"size:100;not null" json:"full_name"`
	Status    string `gorm:"size:20;not null;default:active" json:"status"`
}

type Asset struct {
	AssetID        uint      `gorm:"primaryKey;autoIncrement" json:"asset_id"`
	OwnerStudentID string    `gorm:"size:20;index;not null" json:"owner_student_id"`
	SerialNumber   string    `gorm:"size:100;uniqueIndex;not null" json:"serial_number"`
	Brand          string    `gorm:"size:50" json:"brand,omitempty"`
	Color          string    `gorm:"size:30" json:"color,omitempty"`
	VisibleSpecs   string    `json:"visible_specs,omitempty"`
	Status         string    `gorm:"size:20;not null;default:active" json:"status"`
	QRSignature    string    `gorm:"size:500" json:"qr_signature,omitempty"`
	RegisteredAt   time.Time `json:"registered_at"`
}

type Operator struct {
	OperatorID   uint   `gorm:"primaryKey;autoIncrement" json:"operator_id"`
	Username     string `gorm:"size:50;uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"size:200;not null" json:"-"`
	Role         string `gorm:"size:20;not null;default:gate_operator" json:"role"`
}

// ExitLog rows are append-only. The repository exposes no update or delete,
// so the table alone reconstructs every gate decision ever made.
type ExitLog struct {
	LogID      uint      `gorm:"primaryKey;autoIncrement" json:"log_id"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
	StudentID  string    `gorm:"size:20;index;not null" json:"student_id"`
	AssetID    *uint     `json:"asset_id,omitempty"`
	OperatorID uint      `gorm:"not null" json:"operator_id"`
	Result     string    `gorm:"size:20;not null" json:"result"`
	Reason     string    `json:"reason"`
}
