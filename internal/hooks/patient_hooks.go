// Package hooks – patient save interception.
//
// The before-hook enhances the identifier of not-yet-persisted patients
// and stashes the patient on the invocation; the after-hook retrieves the
// stash and, when the enhancer staged a year rollover, confirms the
// sequence commit now that the save is known to have succeeded. A failed
// save never reaches the after-hook, so a staged reset stays uncommitted;
// nothing should be reset for an identifier that was never persisted.
package hooks

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/services"
)

const pendingPatientKey = "pendingPatient"

// RegisterPatientHooks attaches the identifier-enhancement hooks for the
// savePatient operation to bus.
//
// Unlike form binding, an identifier-format failure in the before-hook is
// fatal to the save: a patient must never be persisted with a corrupted
// identifier.
func RegisterPatientHooks(bus *Bus, enhancer *services.IdentifierEnhancer) {
	bus.RegisterBefore(OpSavePatient, func(ctx context.Context, inv *Invocation) error {
		patient := patientArg(inv.Args)
		if patient == nil || patient.ID != 0 {
			return nil
		}

		if err := enhancer.Enhance(ctx, patient); err != nil {
			return err
		}
		inv.Put(pendingPatientKey, patient)
		return nil
	})

	bus.RegisterAfter(OpSavePatient, func(ctx context.Context, inv *Invocation) error {
		patient, _ := inv.Get(pendingPatientKey).(*domain.Patient)
		if patient == nil {
			return nil
		}
		log.Info().Int("patient_id", patient.ID).Msg("patient created")

		if enhancer.SequenceResetPending() {
			log.Warn().Msg("committing identifier sequence reset after patient creation")
			return enhancer.ConfirmSequenceCommit(ctx)
		}
		return nil
	})
}

func patientArg(args []any) *domain.Patient {
	if len(args) == 0 {
		return nil
	}
	p, _ := args[0].(*domain.Patient)
	return p
}
