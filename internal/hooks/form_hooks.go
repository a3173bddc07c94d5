// Package hooks – form save interception.
//
// A freshly created form has no identity until the persistence layer
// assigns one on first insert, so location binding splits across two
// hooks: the before-hook binds forms that already have an identity (the
// update path) and defers new forms; the after-hook binds forms that just
// received their identity from the save.
//
// Binding is a best-effort side effect, never a save precondition: both
// hooks swallow binding failures after logging them, so a location-binding
// problem cannot block the underlying form save.
package hooks

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/services"
)

const formWasNewKey = "formWasNew"

// RegisterFormHooks attaches the form-to-location binding hooks for the
// saveForm operation to bus.
func RegisterFormHooks(bus *Bus, svc *services.FormLocationService) {
	bus.RegisterBefore(OpSaveForm, func(ctx context.Context, inv *Invocation) error {
		form := formArg(inv.Args)
		if form == nil {
			return nil
		}

		if form.ID == 0 {
			// Insert path: no identity yet, bind after the save.
			log.Debug().Str("form", form.Name).Msg("new form detected, will bind after save")
			inv.Put(formWasNewKey, true)
			return nil
		}

		if _, err := svc.BindFormToCurrentLocation(ctx, form); err != nil {
			log.Error().Err(err).Int("form_id", form.ID).
				Msg("failed to bind form to location")
		}
		return nil
	})

	bus.RegisterAfter(OpSaveForm, func(ctx context.Context, inv *Invocation) error {
		wasNew, _ := inv.Get(formWasNewKey).(bool)
		if !wasNew {
			return nil
		}
		saved, _ := inv.Result.(*domain.Form)
		if saved == nil || saved.ID == 0 {
			return nil
		}

		log.Debug().Str("form", saved.Name).Int("form_id", saved.ID).
			Msg("binding new form to current location")
		if _, err := svc.BindFormToCurrentLocation(ctx, saved); err != nil {
			log.Error().Err(err).Int("form_id", saved.ID).
				Msg("failed to bind new form to location")
		}
		return nil
	})
}

func formArg(args []any) *domain.Form {
	if len(args) == 0 {
		return nil
	}
	f, _ := args[0].(*domain.Form)
	return f
}
