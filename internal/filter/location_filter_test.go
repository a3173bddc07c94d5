package filter

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/repo"
	"github.com/Paradgym/openmrs-module-paradygm/internal/session"
)

func newFilterDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("filter_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newListener(t *testing.T, db *gorm.DB, enabled bool) FormLocationListener {
	t.Helper()
	return FormLocationListener{
		Enabled:   enabled,
		Locations: session.LocationResolver{DB: db},
		Users:     session.UserResolver{DB: db},
	}
}

func bindForm(t *testing.T, db *gorm.DB, formID, locID int) {
	t.Helper()
	m := &domain.EntityBasisMap{
		UUID:             uuid.NewString(),
		EntityType:       domain.EntityKindForm,
		EntityIdentifier: strconv.Itoa(formID),
		BasisType:        domain.BasisKindLocation,
		BasisIdentifier:  strconv.Itoa(locID),
		DateCreated:      time.Now().UTC(),
	}
	if err := repo.UpsertBasisMap(context.Background(), db, m); err != nil {
		t.Fatalf("seed binding: %v", err)
	}
}

func TestListener_Supports(t *testing.T) {
	l := FormLocationListener{}
	if !l.Supports(FormLocationFilterName) {
		t.Fatal("must support the form location filter")
	}
	if l.Supports("someOtherFilter") {
		t.Fatal("must not support other filters")
	}
}

func TestListener_Policy(t *testing.T) {
	db := newFilterDB(t)
	ctx := context.Background()

	loc, err := repo.CreateLocation(ctx, db, "Main", true)
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	clerk, err := repo.CreateUser(ctx, db, "clerk", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	admin, err := repo.CreateUser(ctx, db, "admin", true)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	clerkCtx := session.NewContext(ctx, session.Session{UserID: clerk.ID})
	adminCtx := session.NewContext(ctx, session.Session{UserID: admin.ID})

	// Disabled toggle: never enforced.
	fc := NewContext(FormLocationFilterName)
	if newListener(t, db, false).OnActivate(clerkCtx, fc) {
		t.Fatal("disabled filter must not enforce")
	}

	// Anonymous caller: not enforced.
	fc = NewContext(FormLocationFilterName)
	if newListener(t, db, true).OnActivate(ctx, fc) {
		t.Fatal("anonymous caller must not be filtered")
	}

	// Superuser: bypass.
	fc = NewContext(FormLocationFilterName)
	if newListener(t, db, true).OnActivate(adminCtx, fc) {
		t.Fatal("superuser must bypass the filter")
	}

	// Regular user: enforced with the resolved location id.
	fc = NewContext(FormLocationFilterName)
	if !newListener(t, db, true).OnActivate(clerkCtx, fc) {
		t.Fatal("regular user must be filtered")
	}
	if got, ok := fc.Parameter(BasisIDsParameter); !ok || got != strconv.Itoa(loc.ID) {
		t.Fatalf("basisIds = (%q, %v); want %q", got, ok, strconv.Itoa(loc.ID))
	}
}

func TestListener_NoLocationUsesSentinel(t *testing.T) {
	db := newFilterDB(t)
	ctx := context.Background()

	// A user but no locations at all.
	clerk, err := repo.CreateUser(ctx, db, "clerk", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	clerkCtx := session.NewContext(ctx, session.Session{UserID: clerk.ID})

	fc := NewContext(FormLocationFilterName)
	if !newListener(t, db, true).OnActivate(clerkCtx, fc) {
		t.Fatal("filter must still enforce without a location")
	}
	if got, _ := fc.Parameter(BasisIDsParameter); got != NoMatchBasisID {
		t.Fatalf("basisIds = %q; want sentinel %q", got, NoMatchBasisID)
	}
}

func TestFormVisibilityScope_RestrictsQuery(t *testing.T) {
	db := newFilterDB(t)
	ctx := context.Background()

	here, err := repo.CreateLocation(ctx, db, "Main", true)
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	there, err := repo.CreateLocation(ctx, db, "Satellite", false)
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	clerk, err := repo.CreateUser(ctx, db, "clerk", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	visible := &domain.Form{Name: "Intake", Version: "1"}
	hidden := &domain.Form{Name: "Discharge", Version: "1"}
	for _, f := range []*domain.Form{visible, hidden} {
		if err := repo.CreateForm(ctx, db, f); err != nil {
			t.Fatalf("CreateForm: %v", err)
		}
	}
	bindForm(t, db, visible.ID, here.ID)
	bindForm(t, db, hidden.ID, there.ID)

	reg := NewRegistry(newListener(t, db, true))
	clerkCtx := session.NewContext(ctx, session.Session{UserID: clerk.ID})

	scope := FormVisibilityScope(clerkCtx, reg)
	if scope == nil {
		t.Fatal("expected an enforcing scope for a regular user")
	}
	forms, err := repo.ListForms(clerkCtx, db, scope)
	if err != nil {
		t.Fatalf("ListForms: %v", err)
	}
	if len(forms) != 1 || forms[0].ID != visible.ID {
		t.Fatalf("filtered forms = %+v; want only %q", forms, visible.Name)
	}

	// Unenforced (anonymous): nil scope, all forms visible.
	if scope := FormVisibilityScope(ctx, reg); scope != nil {
		t.Fatal("anonymous caller should get a nil scope")
	}
	forms, err = repo.ListForms(ctx, db, FormVisibilityScope(ctx, reg))
	if err != nil || len(forms) != 2 {
		t.Fatalf("unfiltered forms = (%d, %v); want 2", len(forms), err)
	}
}

func TestFormVisibilityScope_SentinelHidesEverything(t *testing.T) {
	db := newFilterDB(t)
	ctx := context.Background()

	clerk, err := repo.CreateUser(ctx, db, "clerk", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := repo.CreateForm(ctx, db, &domain.Form{Name: "Intake", Version: "1"}); err != nil {
		t.Fatalf("CreateForm: %v", err)
	}

	reg := NewRegistry(newListener(t, db, true))
	clerkCtx := session.NewContext(ctx, session.Session{UserID: clerk.ID})

	forms, err := repo.ListForms(clerkCtx, db, FormVisibilityScope(clerkCtx, reg))
	if err != nil || len(forms) != 0 {
		t.Fatalf("sentinel scope = (%d, %v); want empty", len(forms), err)
	}
}
