package hooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/repo"
	"github.com/Paradgym/openmrs-module-paradygm/internal/services"
)

func newPatientHookBus(t *testing.T, db *gorm.DB, year int) (*Bus, *services.IdentifierEnhancer) {
	t.Helper()

	src := &domain.IdentifierSource{
		UUID:              uuid.NewString(),
		Name:              "patient ids",
		Prefix:            "PD",
		NextSequenceValue: 1,
	}
	if err := db.Create(src).Error; err != nil {
		t.Fatalf("seed source: %v", err)
	}

	enhancer := &services.IdentifierEnhancer{
		DB:       db,
		SourceID: src.UUID,
		Now:      func() time.Time { return time.Date(year, time.January, 1, 12, 0, 0, 0, time.UTC) },
	}
	bus := NewBus()
	RegisterPatientHooks(bus, enhancer)
	return bus, enhancer
}

func savePatient(db *gorm.DB, p *domain.Patient) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		if err := repo.CreatePatient(ctx, db, p); err != nil {
			return nil, err
		}
		return p, nil
	}
}

func TestPatientHooks_EnhancesIdentifierOnCreate(t *testing.T) {
	db := newHooksDB(t)
	bus, enhancer := newPatientHookBus(t, db, 2025)
	enhancer.SetLastRecordedYear(25)
	ctx := context.Background()

	p := &domain.Patient{
		GivenName:  "Amahle",
		FamilyName: "Dlamini",
		Identifier: &domain.PatientIdentifier{Identifier: "PD1", Preferred: true},
	}
	if _, err := bus.Around(ctx, OpSavePatient, []any{p}, savePatient(db, p)); err != nil {
		t.Fatalf("Around: %v", err)
	}

	if p.Identifier.Identifier != "PD25-000-001" {
		t.Fatalf("identifier = %q; want %q", p.Identifier.Identifier, "PD25-000-001")
	}
	var stored domain.PatientIdentifier
	if err := db.Where("patient_id = ?", p.ID).First(&stored).Error; err != nil {
		t.Fatalf("load identifier: %v", err)
	}
	if stored.Identifier != "PD25-000-001" {
		t.Fatalf("persisted identifier = %q", stored.Identifier)
	}
}

func TestPatientHooks_RolloverCommittedAfterSave(t *testing.T) {
	db := newHooksDB(t)
	bus, enhancer := newPatientHookBus(t, db, 2026)
	enhancer.SetLastRecordedYear(25)
	ctx := context.Background()

	p := &domain.Patient{
		GivenName:  "Amahle",
		FamilyName: "Dlamini",
		Identifier: &domain.PatientIdentifier{Identifier: "PD400", Preferred: true},
	}
	if _, err := bus.Around(ctx, OpSavePatient, []any{p}, savePatient(db, p)); err != nil {
		t.Fatalf("Around: %v", err)
	}

	if p.Identifier.Identifier != "PD26-000-001" {
		t.Fatalf("identifier = %q; want reset to %q", p.Identifier.Identifier, "PD26-000-001")
	}
	if enhancer.SequenceResetPending() {
		t.Fatal("reset should have been confirmed by the after-hook")
	}
	src, err := repo.GetIdentifierSource(ctx, db, enhancer.SourceID)
	if err != nil || src.NextSequenceValue != services.ResetSequenceValue+1 {
		t.Fatalf("counter = (%+v, %v); want %d", src, err, services.ResetSequenceValue+1)
	}
}

func TestPatientHooks_FailedSaveLeavesResetUncommitted(t *testing.T) {
	db := newHooksDB(t)
	bus, enhancer := newPatientHookBus(t, db, 2026)
	enhancer.SetLastRecordedYear(25)
	ctx := context.Background()

	p := &domain.Patient{
		GivenName:  "Amahle",
		FamilyName: "Dlamini",
		Identifier: &domain.PatientIdentifier{Identifier: "PD400", Preferred: true},
	}
	boom := errors.New("db down")
	if _, err := bus.Around(ctx, OpSavePatient, []any{p}, func(ctx context.Context) (any, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want save failure", err)
	}

	if !enhancer.SequenceResetPending() {
		t.Fatal("staged reset should survive a failed save")
	}
	src, err := repo.GetIdentifierSource(ctx, db, enhancer.SourceID)
	if err != nil || src.NextSequenceValue != 1 {
		t.Fatalf("counter = (%+v, %v); must stay at 1", src, err)
	}
}

func TestPatientHooks_InvalidIdentifierAbortsSave(t *testing.T) {
	db := newHooksDB(t)
	bus, _ := newPatientHookBus(t, db, 2025)
	ctx := context.Background()

	p := &domain.Patient{
		GivenName:  "Amahle",
		FamilyName: "Dlamini",
		Identifier: &domain.PatientIdentifier{Identifier: "PDoops", Preferred: true},
	}
	_, err := bus.Around(ctx, OpSavePatient, []any{p}, savePatient(db, p))
	if !errors.Is(err, services.ErrInvalidIdentifierFormat) {
		t.Fatalf("err = %v; want ErrInvalidIdentifierFormat", err)
	}

	var n int64
	if err := db.Model(&domain.Patient{}).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("patients persisted after aborted save: (%d, %v)", n, err)
	}
}

func TestPatientHooks_ExistingPatientUntouched(t *testing.T) {
	db := newHooksDB(t)
	bus, _ := newPatientHookBus(t, db, 2025)
	ctx := context.Background()

	p := &domain.Patient{
		ID:         7,
		GivenName:  "Amahle",
		FamilyName: "Dlamini",
		Identifier: &domain.PatientIdentifier{Identifier: "PD25-000-004", Preferred: true},
	}
	if _, err := bus.Around(ctx, OpSavePatient, []any{p}, func(ctx context.Context) (any, error) {
		return p, nil
	}); err != nil {
		t.Fatalf("Around: %v", err)
	}
	if p.Identifier.Identifier != "PD25-000-004" {
		t.Fatalf("existing identifier was rewritten: %q", p.Identifier.Identifier)
	}
}
