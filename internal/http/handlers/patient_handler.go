// Patient HTTP handlers.
//
// This file exposes the endpoint for registering patients:
//   - POST /patients
//
// Patient saves are routed through the interception bus so the identifier
// enhancer runs before the insert and the sequence commit is confirmed
// after it.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/hooks"
	"github.com/Paradgym/openmrs-module-paradygm/internal/http/middleware"
	"github.com/Paradgym/openmrs-module-paradygm/internal/repo"
)

// CreatePatientRequest is the JSON payload for registering a patient.
type CreatePatientRequest struct {
	GivenName  string `json:"given_name"  binding:"required" example:"Amahle"`
	FamilyName string `json:"family_name" binding:"required" example:"Dlamini"`
	// Identifier is the raw templated identifier produced by the host's
	// generator, e.g. "PD1". The enhancer rewrites it before the save.
	Identifier string `json:"identifier" binding:"required" example:"PD1"`
}

// CreatePatient godoc
// @ID          createPatient
// @Summary     Register a patient
// @Tags        Patients
// @Accept      json
// @Produce     json
// @Param       body body handlers.CreatePatientRequest true "Patient payload"
// @Success     201 {object} domain.Patient
// @Failure     400 {object} handlers.ErrorResponse "Invalid payload or identifier"
// @Failure     500 {object} handlers.ErrorResponse "Internal server error"
// @Router      /patients [post]
func (h *Handlers) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "given_name, family_name and identifier are required")
		return
	}

	patient := &domain.Patient{
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		Identifier: &domain.PatientIdentifier{Identifier: req.Identifier, Preferred: true},
	}

	ctx := c.Request.Context()
	result, err := h.bus.Around(ctx, hooks.OpSavePatient, []any{patient}, func(ctx context.Context) (any, error) {
		if err := repo.CreatePatient(ctx, h.db, patient); err != nil {
			return nil, err
		}
		return patient, nil
	})
	if err != nil {
		if failDomain(c, err) {
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, err.Error())
		return
	}

	middleware.IdentifiersGenerated.Inc()
	ok(c, http.StatusCreated, result)
}
