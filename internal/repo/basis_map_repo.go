// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// EntityBasisMap model, the generic entity to basis mapping store.
//
// The repository follows a "thin" approach: it performs persistence and
// simple query composition, leaving business rules (idempotent bind,
// orphan tolerance, current-location resolution) to the services package.
//
// Error semantics:
//   - Duplicate bindings (same entity/basis tuple) rely on the database
//     unique constraint and are returned as a raw DB error. The service
//     layer avoids them by checking HasBasisMap first.
//   - On other DB errors (connectivity, constraints, etc.), the raw gorm
//     error is propagated; nothing is swallowed here.
//
// Functions:
//
//   - UpsertBasisMap(ctx, db, m) -> error
//     Inserts or updates a binding row keyed by its UUID.
//
//   - FindBasisMaps(ctx, db, entityType, entityID, basisType, basisID) -> list
//     Returns bindings for one (entity, basis) pair.
//
//   - FindBasisMapsForBasis(ctx, db, entityType, basisType, basisID) -> list
//     Returns all bindings of one entity kind scoped to one basis.
//
//   - HasBasisMap(ctx, db, …) -> (bool, error)
//     Existence check for one (entity, basis) pair.
//
//   - DeleteBasisMap(ctx, db, m) -> error
//     Deletes a single binding row.
//
//   - DeleteBasisMaps(ctx, db, …) -> (int64, error)
//     Deletes every binding for one (entity, basis) pair, returning the
//     number of rows removed (0 is not an error).
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
)

// UpsertBasisMap persists a binding row. Rows are keyed by UUID; saving an
// existing row is an update, though in practice bindings are only ever
// created and deleted, never mutated.
func UpsertBasisMap(ctx context.Context, db *gorm.DB, m *domain.EntityBasisMap) error {
	return db.WithContext(ctx).Save(m).Error
}

// FindBasisMaps returns all bindings for one (entity, basis) pair. The
// unique index means the result has at most one element, but the slice
// shape keeps the contract generic.
func FindBasisMaps(ctx context.Context, db *gorm.DB, entityType, entityID, basisType, basisID string) ([]domain.EntityBasisMap, error) {
	var out []domain.EntityBasisMap
	err := db.WithContext(ctx).
		Where("entity_type = ? AND entity_identifier = ? AND basis_type = ? AND basis_identifier = ?",
			entityType, entityID, basisType, basisID).
		Find(&out).Error
	return out, err
}

// FindBasisMapsForBasis returns every binding of entityType scoped to one
// basis row, ordered by creation time ascending so callers see bindings in
// the order they were established.
func FindBasisMapsForBasis(ctx context.Context, db *gorm.DB, entityType, basisType, basisID string) ([]domain.EntityBasisMap, error) {
	var out []domain.EntityBasisMap
	err := db.WithContext(ctx).
		Where("entity_type = ? AND basis_type = ? AND basis_identifier = ?",
			entityType, basisType, basisID).
		Order("date_created asc").
		Find(&out).Error
	return out, err
}

// HasBasisMap reports whether a binding exists for the (entity, basis) pair.
func HasBasisMap(ctx context.Context, db *gorm.DB, entityType, entityID, basisType, basisID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.EntityBasisMap{}).
		Where("entity_type = ? AND entity_identifier = ? AND basis_type = ? AND basis_identifier = ?",
			entityType, entityID, basisType, basisID).
		Count(&n).Error
	return n > 0, err
}

// DeleteBasisMap removes a single binding row by UUID.
func DeleteBasisMap(ctx context.Context, db *gorm.DB, m *domain.EntityBasisMap) error {
	return db.WithContext(ctx).Delete(m).Error
}

// DeleteBasisMaps removes every binding for the (entity, basis) pair and
// returns the number of rows deleted. Deleting a pair with no bindings is
// a no-op, not an error.
func DeleteBasisMaps(ctx context.Context, db *gorm.DB, entityType, entityID, basisType, basisID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("entity_type = ? AND entity_identifier = ? AND basis_type = ? AND basis_identifier = ?",
			entityType, entityID, basisType, basisID).
		Delete(&domain.EntityBasisMap{})
	return res.RowsAffected, res.Error
}
