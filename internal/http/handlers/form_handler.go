// Form HTTP handlers.
//
// This file exposes the endpoints around clinical forms and their
// location bindings:
//   - POST   /forms                     (create; auto-binds via save hooks)
//   - PUT    /forms/{id}                (update; auto-binds via save hooks)
//   - GET    /forms                     (list, location-visibility filtered)
//   - POST   /forms/{id}/bindings      (explicit bind to current location)
//   - DELETE /forms/{id}/bindings      (unbind from current location)
//   - GET    /forms/{id}/availability  (availability at current location)
//   - GET    /locations/current/forms  (forms bound to current location)
//
// Form saves are routed through the interception bus so the before/after
// save hooks fire exactly as they would for host-initiated saves.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/filter"
	"github.com/Paradgym/openmrs-module-paradygm/internal/hooks"
	"github.com/Paradgym/openmrs-module-paradygm/internal/http/middleware"
	"github.com/Paradgym/openmrs-module-paradygm/internal/repo"
	"github.com/Paradgym/openmrs-module-paradygm/internal/utils"
)

// SaveFormRequest is the JSON payload for creating or updating a form.
type SaveFormRequest struct {
	Name      string `json:"name" binding:"required" example:"Vitals"`
	Version   string `json:"version" example:"1"`
	Published bool   `json:"published" example:"true"`
}

// CreateForm persists a new form through the save-interception bus. The
// after-save hook binds the newly identified form to the caller's current
// location (best effort).
func (h *Handlers) CreateForm(c *gin.Context) {
	var req SaveFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	form := &domain.Form{Name: req.Name, Version: req.Version, Published: req.Published}
	if form.Version == "" {
		form.Version = "1"
	}

	ctx := c.Request.Context()
	result, err := h.bus.Around(ctx, hooks.OpSaveForm, []any{form}, func(ctx context.Context) (any, error) {
		if err := repo.CreateForm(ctx, h.db, form); err != nil {
			return nil, err
		}
		return form, nil
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, result)
}

// UpdateForm saves changes to an existing form through the interception
// bus; the before-save hook re-binds it to the current location.
func (h *Handlers) UpdateForm(c *gin.Context) {
	id := utils.AtoiDefault(c.Param("id"), 0)
	if id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid form id")
		return
	}

	var req SaveFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	ctx := c.Request.Context()
	form, err := repo.GetForm(ctx, h.db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "form not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	form.Name = req.Name
	if req.Version != "" {
		form.Version = req.Version
	}
	form.Published = req.Published

	result, err := h.bus.Around(ctx, hooks.OpSaveForm, []any{form}, func(ctx context.Context) (any, error) {
		if err := repo.UpdateForm(ctx, h.db, form); err != nil {
			return nil, err
		}
		return form, nil
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, result)
}

// ListForms returns the forms visible to the caller. The location
// visibility filter contributes a query scope: non-privileged callers only
// see forms bound to their resolved location.
func (h *Handlers) ListForms(c *gin.Context) {
	ctx := c.Request.Context()
	scope := filter.FormVisibilityScope(ctx, h.filters)
	forms, err := repo.ListForms(ctx, h.db, scope)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, forms)
}

// BindForm binds a form to the caller's resolved location. Binding an
// already-bound form answers 204 (idempotent no-op); a fresh binding
// answers 201 with the created record.
func (h *Handlers) BindForm(c *gin.Context) {
	form, done := h.formByParam(c)
	if done {
		return
	}

	created, err := h.forms.BindFormToCurrentLocation(c.Request.Context(), form)
	if err != nil {
		middleware.BindingOps.WithLabelValues("bind", "error").Inc()
		if !failDomain(c, err) {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	if created == nil {
		middleware.BindingOps.WithLabelValues("bind", "noop").Inc()
		noContent(c)
		return
	}
	middleware.BindingOps.WithLabelValues("bind", "created").Inc()
	ok(c, http.StatusCreated, created)
}

// UnbindForm removes the binding between a form and the caller's resolved
// location; unbinding a form that was never bound is a no-op.
func (h *Handlers) UnbindForm(c *gin.Context) {
	form, done := h.formByParam(c)
	if done {
		return
	}

	if err := h.forms.UnbindFormFromCurrentLocation(c.Request.Context(), form); err != nil {
		middleware.BindingOps.WithLabelValues("unbind", "error").Inc()
		if !failDomain(c, err) {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	middleware.BindingOps.WithLabelValues("unbind", "removed").Inc()
	noContent(c)
}

// FormAvailability reports whether the form is bound to the caller's
// resolved location. It always answers 200 with a boolean body.
func (h *Handlers) FormAvailability(c *gin.Context) {
	form, done := h.formByParam(c)
	if done {
		return
	}
	available := h.forms.IsFormAvailableInCurrentLocation(c.Request.Context(), form)
	ok(c, http.StatusOK, gin.H{"form_id": form.ID, "available": available})
}

// FormsForCurrentLocation lists forms bound to the caller's resolved
// location, in binding order.
func (h *Handlers) FormsForCurrentLocation(c *gin.Context) {
	forms, err := h.forms.FormsForCurrentLocation(c.Request.Context())
	if err != nil {
		if !failDomain(c, err) {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, forms)
}

// formByParam loads the form named by the :id path parameter, writing the
// error response itself; done is true when the caller should return.
func (h *Handlers) formByParam(c *gin.Context) (*domain.Form, bool) {
	id := utils.AtoiDefault(c.Param("id"), 0)
	if id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid form id")
		return nil, true
	}
	form, err := repo.GetForm(c.Request.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "form not found")
		} else {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return nil, true
	}
	return form, false
}
