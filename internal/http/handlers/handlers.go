// Package handlers provides HTTP handler implementations for the module's
// host-facing API. Handlers are transport-thin: they validate input,
// delegate to application services (routing saves through the interception
// bus so the location-binding and identifier hooks fire), and translate
// domain errors into HTTP results.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Paradgym/openmrs-module-paradygm/internal/filter"
	"github.com/Paradgym/openmrs-module-paradygm/internal/hooks"
	"github.com/Paradgym/openmrs-module-paradygm/internal/services"
	"github.com/Paradgym/openmrs-module-paradygm/internal/session"
)

// Handlers bundles the dependencies shared by all endpoints.
type Handlers struct {
	db       *gorm.DB
	forms    *services.FormLocationService
	enhancer *services.IdentifierEnhancer
	bus      *hooks.Bus
	filters  *filter.Registry
}

// New constructs the handler set.
func New(db *gorm.DB, forms *services.FormLocationService, enhancer *services.IdentifierEnhancer, bus *hooks.Bus, filters *filter.Registry) *Handlers {
	return &Handlers{db: db, forms: forms, enhancer: enhancer, bus: bus, filters: filters}
}

// failDomain translates shared domain errors into HTTP results, returning
// true when it handled the error.
func failDomain(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, session.ErrNoAuthenticatedUser):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "no authenticated user")
	case errors.Is(err, session.ErrNoLocationConfigured):
		fail(c, http.StatusConflict, ErrCodeNoLocation, "no session location and no default location configured")
	case errors.Is(err, services.ErrInvalidForm):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "form must be saved before binding")
	case errors.Is(err, services.ErrInvalidIdentifierFormat):
		fail(c, http.StatusBadRequest, ErrCodeInvalidIdentifier, "invalid patient identifier format")
	default:
		return false
	}
	return true
}
