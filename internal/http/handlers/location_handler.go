// Location HTTP handlers.
//
// This file exposes the endpoint for creating locations:
//   - POST /locations
//
// Locations are host records; the module only needs enough of a surface to
// stand up sites and the system default in a deployment.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Paradgym/openmrs-module-paradygm/internal/repo"
)

// CreateLocationRequest is the JSON payload for creating a location.
type CreateLocationRequest struct {
	// Name is the display name; it is normalized to title case.
	Name string `json:"name" binding:"required" example:"eastern clinic"`
	// IsDefault marks the system default location used when a session
	// carries no explicit location.
	IsDefault bool `json:"is_default" example:"true"`
}

// CreateLocation godoc
// @ID          createLocation
// @Summary     Create a location
// @Tags        Locations
// @Accept      json
// @Produce     json
// @Param       body body handlers.CreateLocationRequest true "Location payload"
// @Success     201 {object} domain.Location
// @Failure     400 {object} handlers.ErrorResponse "Invalid payload"
// @Failure     500 {object} handlers.ErrorResponse "Internal server error"
// @Router      /locations [post]
func (h *Handlers) CreateLocation(c *gin.Context) {
	var req CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	name := cases.Title(language.English).String(req.Name)
	loc, err := repo.CreateLocation(c.Request.Context(), h.db, name, req.IsDefault)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, loc)
}
