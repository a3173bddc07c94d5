// Package services – FormLocationService
//
// This file implements the FormLocationService, which manages the
// association of clinical forms with locations: binding a form to the
// caller's resolved location, unbinding it, listing the forms available at
// that location, and answering availability checks. Caller-context errors
// (session.ErrNoLocationConfigured, session.ErrNoAuthenticatedUser) and
// validation errors (ErrInvalidForm) are returned for predictable cases so
// handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/repo"
	"github.com/Paradgym/openmrs-module-paradygm/internal/session"
)

// FormLocationService implements the use-cases around form-to-location
// bindings. It resolves the caller's current location and user from the
// request context, validates the operation, and persists binding rows
// through the mapping-store repository. The service is context-aware and
// runs each mutating call inside a transaction.
type FormLocationService struct {
	// DB is the database handle used for all binding operations. It may be
	// a plain *gorm.DB or a transaction-bound handle, so a binding created
	// from inside a save hook shares the ambient save transaction.
	DB *gorm.DB

	// Locations resolves the caller's current location (session location
	// first, then system default).
	Locations session.LocationResolver

	// Users resolves the caller's authenticated user.
	Users session.UserResolver
}

// BindFormToCurrentLocation binds form to the caller's resolved location.
//
// Semantics and validation:
//   - form must be non-nil and already persisted; otherwise ErrInvalidForm.
//   - The current location must resolve; otherwise
//     session.ErrNoLocationConfigured.
//   - The caller must be authenticated; otherwise
//     session.ErrNoAuthenticatedUser.
//   - If a binding for (form, location) already exists the call is a no-op
//     and returns (nil, nil), not an error.
//
// On success it returns the created binding row (creator = current user,
// fresh UUID, UTC timestamp).
func (s *FormLocationService) BindFormToCurrentLocation(ctx context.Context, form *domain.Form) (*domain.EntityBasisMap, error) {
	if form == nil || form.ID == 0 {
		return nil, ErrInvalidForm
	}

	loc, err := s.Locations.Current(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.Users.Current(ctx)
	if err != nil {
		return nil, err
	}

	var created *domain.EntityBasisMap
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := repo.HasBasisMap(ctx, tx,
			domain.EntityKindForm, strconv.Itoa(form.ID),
			domain.BasisKindLocation, strconv.Itoa(loc.ID))
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		m := &domain.EntityBasisMap{
			UUID:             uuid.NewString(),
			EntityType:       domain.EntityKindForm,
			EntityIdentifier: strconv.Itoa(form.ID),
			BasisType:        domain.BasisKindLocation,
			BasisIdentifier:  strconv.Itoa(loc.ID),
			CreatorID:        user.ID,
			DateCreated:      time.Now().UTC(),
		}
		if err := repo.UpsertBasisMap(ctx, tx, m); err != nil {
			return err
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UnbindFormFromCurrentLocation removes every binding between form and the
// caller's resolved location. Unbinding a pair with no bindings is a no-op.
// Returns ErrInvalidForm for nil/unpersisted forms and the session
// sentinels when the caller context cannot be resolved.
func (s *FormLocationService) UnbindFormFromCurrentLocation(ctx context.Context, form *domain.Form) error {
	if form == nil || form.ID == 0 {
		return ErrInvalidForm
	}

	loc, err := s.Locations.Current(ctx)
	if err != nil {
		return err
	}
	if _, err := s.Users.Current(ctx); err != nil {
		return err
	}

	_, err = repo.DeleteBasisMaps(ctx, s.DB,
		domain.EntityKindForm, strconv.Itoa(form.ID),
		domain.BasisKindLocation, strconv.Itoa(loc.ID))
	return err
}

// FormsForCurrentLocation returns the forms bound to the caller's resolved
// location, in binding order. Bindings whose referenced form no longer
// exists are skipped with a warning: orphaned rows are tolerated, never
// fatal.
func (s *FormLocationService) FormsForCurrentLocation(ctx context.Context) ([]domain.Form, error) {
	loc, err := s.Locations.Current(ctx)
	if err != nil {
		return nil, err
	}

	maps, err := repo.FindBasisMapsForBasis(ctx, s.DB,
		domain.EntityKindForm, domain.BasisKindLocation, strconv.Itoa(loc.ID))
	if err != nil {
		return nil, err
	}

	forms := make([]domain.Form, 0, len(maps))
	for _, m := range maps {
		id, err := strconv.Atoi(m.EntityIdentifier)
		if err != nil {
			log.Warn().Str("binding", m.UUID).Str("entity_id", m.EntityIdentifier).
				Msg("skipping binding with non-numeric entity identifier")
			continue
		}
		form, err := repo.GetForm(ctx, s.DB, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				log.Warn().Str("binding", m.UUID).Int("form_id", id).
					Msg("skipping binding for deleted form")
				continue
			}
			return nil, err
		}
		forms = append(forms, *form)
	}
	return forms, nil
}

// IsFormAvailableInCurrentLocation reports whether form is bound to the
// caller's resolved location. It never returns an error: a nil or
// unpersisted form, an unresolvable location, or a storage failure all
// answer false.
func (s *FormLocationService) IsFormAvailableInCurrentLocation(ctx context.Context, form *domain.Form) bool {
	if form == nil || form.ID == 0 {
		return false
	}
	loc, err := s.Locations.Current(ctx)
	if err != nil {
		return false
	}
	ok, err := repo.HasBasisMap(ctx, s.DB,
		domain.EntityKindForm, strconv.Itoa(form.ID),
		domain.BasisKindLocation, strconv.Itoa(loc.ID))
	if err != nil {
		log.Warn().Err(err).Int("form_id", form.ID).Msg("availability check failed")
		return false
	}
	return ok
}
