package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"dbugate/internal/models"
)

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type gormStudents struct{ db *gorm.DB }

func NewStudentRepo(db *gorm.DB) StudentRepo { return &gormStudents{db: db} }

func (r *gormStudents) Find(ctx context.Context, studentID string) (*models.Student, error) {
	var s models.Student
	if err := r.db.WithContext(ctx).First(&s, "student_id = ?", studentID).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *gormStudents) Create(ctx context.Context, s *models.Student) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *gormStudents) Save(ctx context.Context, s *models.Student) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *gormStudents) List(ctx context.Context) ([]models.Student, error) {
	var out []models.Student
	err := r.db.WithContext(ctx).Order("student_id").Find(&out).Error
	return out, err
}

func (r *gormStudents) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).Count(&n).Error
	return n, err
}

func (r *gormStudents) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("status = ?", models.StudentActive).Count(&n).Error
	return n, err
}

type gormAssets struct{ db *gorm.DB }

func NewAssetRepo(db *gorm.DB) AssetRepo { return &gormAssets{db: db} }

func (r *gormAssets) Find(ctx context.Context, assetID uint) (*models.Asset, error) {
	var a models.Asset
	if err := r.db.WithContext(ctx).First(&a, "asset_id = ?", assetID).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *gormAssets) FindBySerial(ctx context.Context, serial string) (*models.Asset, error) {
	var a models.Asset
	if err := r.db.WithContext(ctx).First(&a, "serial_number = ?", serial).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *gormAssets) CountActiveByOwner(ctx context.Context, studentID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Asset{}).
		Where("owner_student_id = ? AND status = ?", studentID, models.AssetActive).
		Count(&n).Error
	return n, err
}

func (r *gormAssets) Create(ctx context.Context, a *models.Asset) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *gormAssets) Save(ctx context.Context, a *models.Asset) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *gormAssets) Delete(ctx context.Context, assetID uint) error {
	return r.db.WithContext(ctx).Delete(&models.Asset{}, "asset_id = ?", assetID).Error
}

func (r *gormAssets) List(ctx context.Context) ([]models.Asset, error) {
	var out []models.Asset
	err := r.db.WithContext(ctx).Order("registered_at desc").Find(&out).Error
	return out, err
}

func (r *gormAssets) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Asset{}).Count(&n).Error
	return n, err
}

func (r *gormAssets) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Asset{}).
		Where("status = ?", models.AssetActive).Count(&n).Error
	return n, err
}

type gormOperators struct{ db *gorm.DB }

func NewOperatorRepo(db *gorm.DB) OperatorRepo { return &gormOperators{db: db} }

func (r *gormOperators) Find(ctx context.Context, operatorID uint) (*models.Operator, error) {
	var o models.Operator
	if err := r.db.WithContext(ctx).First(&o, "operator_id = ?", operatorID).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *gormOperators) FindByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var o models.Operator
	if err := r.db.WithContext(ctx).First(&o, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *gormOperators) Create(ctx context.Context, o *models.Operator) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *gormOperators) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Operator{}).Count(&n).Error
	return n, err
}

type gormExitLogs struct{ db *gorm.DB }

func NewExitLogRepo(db *gorm.DB) ExitLogRepo { return &gormExitLogs{db: db} }

func (r *gormExitLogs) Append(ctx context.Context, l *models.ExitLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *gormExitLogs) Recent(ctx context.Context, limit int) ([]models.ExitLog, error) {
	var out []models.ExitLog
	err := r.db.WithContext(ctx).Order("timestamp desc, log_id desc").Limit(limit).Find(&out).Error
	return out, err
}

func (r *gormExitLogs) Aggregate(ctx context.Context) (Stats, error) {
	var st Stats
	if err := r.db.WithContext(ctx).Model(&models.ExitLog{}).Count(&st.TotalExits).Error; err != nil {
		return st, err
	}
	if err := r.db.WithContext(ctx).Model(&models.ExitLog{}).
		Where("result = ?", models.ResultAllowed).Count(&st.AllowedExits).Error; err != nil {
		return st, err
	}
	if err := r.db.WithContext(ctx).Model(&models.ExitLog{}).
		Where("result = ?", models.ResultBlocked).Count(&st.BlockedExits).Error; err != nil {
		return st, err
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	err := r.db.WithContext(ctx).Model(&models.ExitLog{}).
		Where("timestamp >= ?", cutoff).Count(&st.RecentExits).Error
	return st, err
}
