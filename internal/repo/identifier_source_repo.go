// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// IdentifierSource model backing sequential patient identifier generation.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
)

// GetIdentifierSource fetches the identifier source record by its fixed
// configuration UUID. Returns ErrNotFound when the deployment has no such
// source; callers treat that as a soft failure and skip enhancement.
func GetIdentifierSource(ctx context.Context, db *gorm.DB, uuid string) (*domain.IdentifierSource, error) {
	var src domain.IdentifierSource
	err := db.WithContext(ctx).
		Where("uuid = ?", uuid).
		First(&src).Error
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// SaveSequenceValue persists a new sequence counter value for the source.
// Returns ErrNotFound when the source row no longer exists.
func SaveSequenceValue(ctx context.Context, db *gorm.DB, src *domain.IdentifierSource, value int64) error {
	res := db.WithContext(ctx).
		Model(&domain.IdentifierSource{}).
		Where("uuid = ?", src.UUID).
		Update("next_sequence_value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	src.NextSequenceValue = value
	return nil
}
