package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Paradgym/openmrs-module-paradygm/internal/config"
	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/http/middleware"
	"github.com/Paradgym/openmrs-module-paradygm/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newRouterDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("router_test_%d.db", time.Now().UnixNano()))
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

func testConfig() config.Config {
	return config.Config{
		APIBasePath:          "/api/v1",
		RateRPS:              1000,
		RateBurst:            1000,
		FormLocationFilter:   true,
		IdentifierSourceUUID: config.DefaultIdentifierSourceUUID,
		CORS:                 config.CORSConfig{AllowedOrigins: nil}, // AllowAllOrigins branch
		Security:             config.SecurityConfig{EnableHSTS: false},
		OTEL:                 config.OTELConfig{ServiceName: "test-svc"},
	}
}

// newTestRouter wires the full engine and seeds a default location plus a
// clerk and an admin, returning the engine and the seeded records.
func newTestRouter(t *testing.T, db *gorm.DB) (*gin.Engine, *domain.Location, *domain.User, *domain.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	RegisterRoutes(r, db, testConfig())

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
	return r, loc, clerk, admin
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, userID int) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set(middleware.HeaderUserID, strconv.Itoa(userID))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthAndFallbacks(t *testing.T) {
	db := newRouterDB(t)
	r, _, _, _ := newTestRouter(t, db)

	w := doJSON(t, r, http.MethodGet, "/health", nil, 0)
	if w.Code != http.StatusOK {
		t.Fatalf("/health = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/nowhere", nil, 0)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error envelope: %v (%s)", err, w.Body.String())
	}
	if resp["code"] != "not_found" {
		t.Fatalf("code = %v", resp["code"])
	}

	w = doJSON(t, r, http.MethodDelete, "/health", nil, 0)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("method fallback = %d", w.Code)
	}
}

func TestRouter_FormLifecycleAndVisibility(t *testing.T) {
	db := newRouterDB(t)
	r, _, clerk, admin := newTestRouter(t, db)

	// Create a form as the clerk; the after-save hook binds it to Main.
	w := doJSON(t, r, http.MethodPost, "/api/v1/forms",
		map[string]any{"name": "Intake", "version": "2"}, clerk.ID)
	if w.Code != http.StatusCreated {
		t.Fatalf("create form = %d (%s)", w.Code, w.Body.String())
	}
	var created domain.Form
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.ID == 0 {
		t.Fatalf("created form = %+v, %v", created, err)
	}

	// A second form created anonymously stays unbound.
	w = doJSON(t, r, http.MethodPost, "/api/v1/forms",
		map[string]any{"name": "Discharge"}, 0)
	if w.Code != http.StatusCreated {
		t.Fatalf("create unbound form = %d (%s)", w.Code, w.Body.String())
	}
	var unbound domain.Form
	if err := json.Unmarshal(w.Body.Bytes(), &unbound); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// The clerk only sees the bound form.
	w = doJSON(t, r, http.MethodGet, "/api/v1/forms", nil, clerk.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("list forms = %d", w.Code)
	}
	var visible []domain.Form
	if err := json.Unmarshal(w.Body.Bytes(), &visible); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != created.ID {
		t.Fatalf("clerk sees %+v; want only form %d", visible, created.ID)
	}

	// The admin bypasses the filter and sees both.
	w = doJSON(t, r, http.MethodGet, "/api/v1/forms", nil, admin.ID)
	if err := json.Unmarshal(w.Body.Bytes(), &visible); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("admin sees %d forms; want 2", len(visible))
	}

	// Availability endpoint agrees.
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/forms/%d/availability", created.ID), nil, clerk.ID)
	var avail map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &avail); err != nil || avail["available"] != true {
		t.Fatalf("availability = %v (%v)", avail, err)
	}

	// Explicitly bind the second form, then list the location's forms.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/forms/%d/bindings", unbound.ID), nil, clerk.ID)
	if w.Code != http.StatusCreated {
		t.Fatalf("bind = %d (%s)", w.Code, w.Body.String())
	}
	// Binding again is an idempotent no-op.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/forms/%d/bindings", unbound.ID), nil, clerk.ID)
	if w.Code != http.StatusNoContent {
		t.Fatalf("rebind = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/locations/current/forms", nil, clerk.ID)
	var atLocation []domain.Form
	if err := json.Unmarshal(w.Body.Bytes(), &atLocation); err != nil || len(atLocation) != 2 {
		t.Fatalf("location forms = %+v (%v); want 2", atLocation, err)
	}

	// Unbind the first form; only the second remains.
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/forms/%d/bindings", created.ID), nil, clerk.ID)
	if w.Code != http.StatusNoContent {
		t.Fatalf("unbind = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/locations/current/forms", nil, clerk.ID)
	if err := json.Unmarshal(w.Body.Bytes(), &atLocation); err != nil || len(atLocation) != 1 || atLocation[0].ID != unbound.ID {
		t.Fatalf("location forms after unbind = %+v (%v)", atLocation, err)
	}
}

func TestRouter_BindRequiresUser(t *testing.T) {
	db := newRouterDB(t)
	r, _, clerk, _ := newTestRouter(t, db)

	w := doJSON(t, r, http.MethodPost, "/api/v1/forms",
		map[string]any{"name": "Intake"}, clerk.ID)
	var created domain.Form
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/forms/%d/bindings", created.ID), nil, 0)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous bind = %d; want 401", w.Code)
	}
}

func TestRouter_CreateLocationTitleCasesName(t *testing.T) {
	db := newRouterDB(t)
	r, _, _, _ := newTestRouter(t, db)

	w := doJSON(t, r, http.MethodPost, "/api/v1/locations",
		map[string]any{"name": "eastern clinic"}, 0)
	if w.Code != http.StatusCreated {
		t.Fatalf("create location = %d (%s)", w.Code, w.Body.String())
	}
	var loc domain.Location
	if err := json.Unmarshal(w.Body.Bytes(), &loc); err != nil || loc.Name != "Eastern Clinic" {
		t.Fatalf("location = %+v (%v)", loc, err)
	}
}

func TestRouter_CreatePatientEnhancesIdentifier(t *testing.T) {
	db := newRouterDB(t)
	r, _, clerk, _ := newTestRouter(t, db)

	src := &domain.IdentifierSource{
		UUID:              config.DefaultIdentifierSourceUUID,
		Name:              "patient ids",
		Prefix:            "PD",
		NextSequenceValue: 1,
	}
	if err := db.Create(src).Error; err != nil {
		t.Fatalf("seed source: %v", err)
	}

	year := time.Now().Year() % 100
	w := doJSON(t, r, http.MethodPost, "/api/v1/patients",
		map[string]any{"given_name": "Amahle", "family_name": "Dlamini", "identifier": "PD1"}, clerk.ID)
	if w.Code != http.StatusCreated {
		t.Fatalf("create patient = %d (%s)", w.Code, w.Body.String())
	}
	var p domain.Patient
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil || p.Identifier == nil {
		t.Fatalf("patient = %+v (%v)", p, err)
	}
	want := fmt.Sprintf("PD%d-000-001", year)
	if p.Identifier.Identifier != want {
		t.Fatalf("identifier = %q; want %q", p.Identifier.Identifier, want)
	}

	// A garbled identifier is rejected before the save.
	w = doJSON(t, r, http.MethodPost, "/api/v1/patients",
		map[string]any{"given_name": "A", "family_name": "B", "identifier": "PDxyz"}, clerk.ID)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad identifier = %d; want 400", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp["code"] != "invalid_identifier_format" {
		t.Fatalf("error envelope = %v (%v)", resp, err)
	}
}

func TestRouter_MetricsAndCORS(t *testing.T) {
	db := newRouterDB(t)
	r, _, _, _ := newTestRouter(t, db)

	w := doJSON(t, r, http.MethodGet, "/metrics", nil, 0)
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("ACAO = %q; want *", got)
	}
}
