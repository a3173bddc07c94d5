// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the host
// platform records the module reads and writes: locations, users, forms,
// and patients.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported as ErrNotFound in db.go).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
)

// CreateLocation inserts a new location row. The integer identity is
// assigned by the database on insert.
func CreateLocation(ctx context.Context, db *gorm.DB, name string, isDefault bool) (*domain.Location, error) {
	loc := &domain.Location{
		Name:      name,
		IsDefault: isDefault,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(loc).Error; err != nil {
		return nil, err
	}
	return loc, nil
}

// GetLocation fetches a location by id, excluding retired rows. Returns
// ErrNotFound if missing.
func GetLocation(ctx context.Context, db *gorm.DB, id int) (*domain.Location, error) {
	var loc domain.Location
	err := db.WithContext(ctx).
		Where("id = ? AND retired = ?", id, false).
		First(&loc).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// GetDefaultLocation fetches the system default location, if one is
// configured. Returns ErrNotFound when no default exists.
func GetDefaultLocation(ctx context.Context, db *gorm.DB) (*domain.Location, error) {
	var loc domain.Location
	err := db.WithContext(ctx).
		Where("is_default = ? AND retired = ?", true, false).
		Order("id asc").
		First(&loc).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// CreateUser inserts a new user row.
func CreateUser(ctx context.Context, db *gorm.DB, username string, superUser bool) (*domain.User, error) {
	u := &domain.User{
		Username:  username,
		SuperUser: superUser,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by id, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, id int) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateForm inserts a form row, assigning its integer identity.
func CreateForm(ctx context.Context, db *gorm.DB, f *domain.Form) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(f).Error
}

// UpdateForm saves changes to an already persisted form.
func UpdateForm(ctx context.Context, db *gorm.DB, f *domain.Form) error {
	return db.WithContext(ctx).Save(f).Error
}

// GetForm fetches a form by id, or ErrNotFound if missing.
func GetForm(ctx context.Context, db *gorm.DB, id int) (*domain.Form, error) {
	var f domain.Form
	if err := db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// ListForms returns all forms ordered by name, with optional query scopes
// applied. The visibility filter contributes a scope here so that callers
// only see forms bound to their resolved location.
func ListForms(ctx context.Context, db *gorm.DB, scopes ...func(*gorm.DB) *gorm.DB) ([]domain.Form, error) {
	var out []domain.Form
	q := db.WithContext(ctx).Model(&domain.Form{})
	for _, s := range scopes {
		if s != nil {
			q = q.Scopes(s)
		}
	}
	err := q.Order("name asc").Find(&out).Error
	return out, err
}

// CreatePatient inserts a patient row together with its identifier
// association (cascade-saved by GORM). The patient's integer identity is
// assigned by the database on insert.
func CreatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(p).Error
}
