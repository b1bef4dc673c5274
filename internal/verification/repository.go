package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"land-registry/verification-portal/verification-portal-backend/internal/apperr"
	"land-registry/verification-portal/verification-portal-backend/internal/notifications"
)

// Repository persists verification aggregates. Every write carries the
// audit entries and notification intents produced by the operation and
// lands them in the same transaction: a failed mutation leaves nothing
// behind, a successful one is never missing its audit record.
type Repository interface {
	Create(ctx context.Context, v *Verification, entries []AuditEntry, intents []notifications.Intent) error
	GetByID(ctx context.Context, verificationID string) (*Verification, error)
	ListByRequester(ctx context.Context, requestedBy uuid.UUID) ([]Verification, error)
	// Save updates the aggregate iff its version is unchanged since
	// load, bumping it on success. Returns apperr.ErrVersionConflict
	// when a concurrent writer got there first.
	Save(ctx context.Context, v *Verification, entries []AuditEntry, intents []notifications.Intent) error
	// ListOpenWithDeadline returns non-terminal verifications that have
	// an expected completion date and no SLA verdict yet.
	ListOpenWithDeadline(ctx context.Context) ([]Verification, error)
}

var terminalStatuses = []Status{StatusCompleted, StatusDenied, StatusExpired, StatusCancelled}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a GORM-backed repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, v *Verification, entries []AuditEntry, intents []notifications.Intent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("AuditTrail").Create(v).Error; err != nil {
			return err
		}
		return appendOutbox(tx, entries, intents)
	})
}

func (r *gormRepository) GetByID(ctx context.Context, verificationID string) (*Verification, error) {
	var v Verification
	err := r.db.WithContext(ctx).
		Preload("AuditTrail", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&v, "verification_id = ?", verificationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("verification %s: %w", verificationID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *gormRepository) ListByRequester(ctx context.Context, requestedBy uuid.UUID) ([]Verification, error) {
	var list []Verification
	err := r.db.WithContext(ctx).
		Where("requested_by = ?", requestedBy).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *gormRepository) Save(ctx context.Context, v *Verification, entries []AuditEntry, intents []notifications.Intent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loadedVersion := v.Version
		v.Version = loadedVersion + 1

		res := tx.Model(&Verification{}).
			Where("verification_id = ? AND version = ?", v.VerificationID, loadedVersion).
			Select("*").
			Omit("verification_id", "created_at", "AuditTrail").
			Updates(v)
		if res.Error != nil {
			v.Version = loadedVersion
			return res.Error
		}
		if res.RowsAffected == 0 {
			v.Version = loadedVersion
			return fmt.Errorf("verification %s version %d: %w", v.VerificationID, loadedVersion, apperr.ErrVersionConflict)
		}
		return appendOutbox(tx, entries, intents)
	})
}

func (r *gormRepository) ListOpenWithDeadline(ctx context.Context) ([]Verification, error) {
	var list []Verification
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", terminalStatuses).
		Where("timeline ->> 'expected_completion_date' IS NOT NULL").
		Find(&list).Error
	return list, err
}

func appendOutbox(tx *gorm.DB, entries []AuditEntry, intents []notifications.Intent) error {
	if len(entries) > 0 {
		if err := tx.Create(&entries).Error; err != nil {
			return err
		}
	}
	if len(intents) > 0 {
		if err := tx.Create(&intents).Error; err != nil {
			return err
		}
	}
	return nil
}
