// Package filter implements row-level visibility filtering for clinical
// forms. A filter is a named, per-query policy hook: listeners declare
// which filter names they support, and on activation decide whether the
// filter is enforced for this evaluation and which parameters (here, the
// allowed basis ids) the underlying query layer should restrict on.
//
// Only one filter instance lives in this module, the location-based form
// filter, but the registry keeps the listener contract generic, matching
// the shape of the host's data-filter framework.
package filter

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/session"
)

const (
	// FormLocationFilterName is the single filter name this module
	// recognizes.
	FormLocationFilterName = "paradygm_locationBasedFormFilter"

	// BasisIDsParameter is the filter parameter carrying the allowed
	// location id(s), comma-separated.
	BasisIDsParameter = "basisIds"

	// NoMatchBasisID is a sentinel guaranteed to match no real location,
	// yielding an empty result set when no location can be resolved.
	NoMatchBasisID = "0"
)

// Context is the per-evaluation state of one filter activation: the filter
// name plus the parameters listeners set for the query layer.
type Context struct {
	name   string
	params map[string]string
}

// NewContext returns an activation context for the named filter.
func NewContext(name string) *Context {
	return &Context{name: name, params: make(map[string]string)}
}

// FilterName returns the name of the filter being activated.
func (c *Context) FilterName() string { return c.name }

// SetParameter records a parameter for the query layer.
func (c *Context) SetParameter(key, value string) { c.params[key] = value }

// Parameter returns a previously set parameter and whether it was set.
func (c *Context) Parameter(key string) (string, bool) {
	v, ok := c.params[key]
	return v, ok
}

// Listener is the contract a filter implementation satisfies.
type Listener interface {
	// Supports reports whether this listener handles the named filter.
	Supports(filterName string) bool

	// OnActivate decides whether the filter is enforced for this
	// evaluation and sets any query parameters on fc. Returning false
	// means "allow all" for this caller.
	OnActivate(ctx context.Context, fc *Context) bool
}

// Registry evaluates registered listeners per query.
type Registry struct {
	listeners []Listener
}

// NewRegistry returns a registry over the given listeners.
func NewRegistry(ls ...Listener) *Registry {
	return &Registry{listeners: ls}
}

// Activate runs every listener supporting the named filter and returns the
// populated context plus whether any listener enforced the filter.
func (r *Registry) Activate(ctx context.Context, name string) (*Context, bool) {
	fc := NewContext(name)
	enforced := false
	for _, l := range r.listeners {
		if !l.Supports(name) {
			continue
		}
		if l.OnActivate(ctx, fc) {
			enforced = true
		}
	}
	return fc, enforced
}

// FormLocationListener restricts form visibility to the caller's resolved
// location.
//
// Policy, in order:
//  1. if the global toggle is disabled, do not enforce;
//  2. if the caller is unauthenticated, do not enforce;
//  3. if the caller holds super-user privilege, do not enforce;
//  4. otherwise restrict to the resolved current location, or to the
//     no-match sentinel when no location can be resolved.
type FormLocationListener struct {
	// Enabled is the deployment-wide toggle; disabled means allow all.
	Enabled bool

	// Locations resolves the caller's current location.
	Locations session.LocationResolver

	// Users resolves the caller's user for the privilege bypass.
	Users session.UserResolver
}

// Supports returns true exclusively for the location-based form filter.
func (l FormLocationListener) Supports(filterName string) bool {
	return filterName == FormLocationFilterName
}

// OnActivate applies the policy above and, when enforcing, sets the
// basis-ids parameter on fc.
func (l FormLocationListener) OnActivate(ctx context.Context, fc *Context) bool {
	if !l.Enabled {
		return false
	}

	user, err := l.Users.Current(ctx)
	if err != nil {
		return false
	}
	if l.Users.IsPrivileged(user) {
		log.Debug().Str("user", user.Username).Msg("skipping form location filter for superuser")
		return false
	}

	if fc.FilterName() == FormLocationFilterName {
		loc, err := l.Locations.Current(ctx)
		if err == nil {
			log.Debug().Str("location", loc.Name).Msg("setting form location filter")
			fc.SetParameter(BasisIDsParameter, strconv.Itoa(loc.ID))
		} else {
			log.Warn().Msg("no location found for user, restricting form access")
			fc.SetParameter(BasisIDsParameter, NoMatchBasisID)
		}
	}
	return true
}

// FormVisibilityScope activates the form location filter for the caller in
// ctx and translates the outcome into a GORM query scope over forms. A nil
// return means the filter is not enforced (all rows visible); otherwise
// the scope narrows forms to those with an active binding for one of the
// allowed basis ids.
func FormVisibilityScope(ctx context.Context, reg *Registry) func(*gorm.DB) *gorm.DB {
	fc, enforced := reg.Activate(ctx, FormLocationFilterName)
	if !enforced {
		return nil
	}
	ids, ok := fc.Parameter(BasisIDsParameter)
	if !ok {
		return nil
	}
	basisIDs := strings.Split(ids, ",")
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"forms.id IN (SELECT CAST(entity_identifier AS INTEGER) FROM entity_basis_maps"+
				" WHERE entity_type = ? AND basis_type = ? AND basis_identifier IN ?)",
			domain.EntityKindForm, domain.BasisKindLocation, basisIDs)
	}
}
