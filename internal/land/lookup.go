// Package land is the read-only boundary to the external land record
// store. The engine never owns this data's lifecycle; it only reads the
// minimal facts needed to open and score a verification.
package land

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"land-registry/verification-portal/verification-portal-backend/internal/apperr"
)

// Facts are the read-only facts the engine needs about a land record.
type Facts struct {
	LandID          string `json:"land_id"`
	Title           string `json:"title"`
	CurrentOwner    string `json:"current_owner"`
	OwnerRegistered bool   `json:"owner_registered"`
	HasEncumbrances bool   `json:"has_encumbrances"`
}

// Lookup resolves a landId to its facts.
type Lookup interface {
	Get(ctx context.Context, landID string) (*Facts, error)
}

// landRecord maps the external lands table. Master-data writes belong to
// the record store, not this service.
type landRecord struct {
	LandID          string `gorm:"column:land_id;primaryKey"`
	Title           string `gorm:"column:title"`
	CurrentOwner    string `gorm:"column:current_owner"`
	OwnerRegistered bool   `gorm:"column:owner_registered"`
	HasEncumbrances bool   `gorm:"column:has_encumbrances"`
}

func (landRecord) TableName() string { return "lands" }

type gormLookup struct {
	db *gorm.DB
}

// NewLookup creates a Lookup reading the shared lands table.
func NewLookup(db *gorm.DB) Lookup {
	return &gormLookup{db: db}
}

func (l *gormLookup) Get(ctx context.Context, landID string) (*Facts, error) {
	var rec landRecord
	err := l.db.WithContext(ctx).First(&rec, "land_id = ?", landID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("land %s: %w", landID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &Facts{
		LandID:          rec.LandID,
		Title:           rec.Title,
		CurrentOwner:    rec.CurrentOwner,
		OwnerRegistered: rec.OwnerRegistered,
		HasEncumbrances: rec.HasEncumbrances,
	}, nil
}
