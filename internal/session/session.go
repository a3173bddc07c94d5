// Package session carries the host-authenticated caller context (current
// user, current session location) through context.Context, and resolves it
// against the database.
//
// The module never authenticates anybody itself: the host platform decides
// who the caller is and which location their session points at, and this
// package only threads that decision through the call chain and turns ids
// into records. Resolution order for the current location is always
// session location first, then the system default location; a deployment
// serving a single site typically has no session locations and rides on
// the default.
package session

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/repo"
)

// Sentinel errors for caller-context resolution. They are distinct from
// generic storage errors so callers can tell "misconfigured environment"
// apart from "database broke".
var (
	// ErrNoLocationConfigured is returned when neither a session location
	// nor a system default location can be resolved.
	ErrNoLocationConfigured = errors.New("no session location and no default location configured")

	// ErrNoAuthenticatedUser is returned when the context carries no
	// authenticated user.
	ErrNoAuthenticatedUser = errors.New("no authenticated user")
)

// Session is the caller context supplied by the host for one logical
// request. UserID zero means unauthenticated; LocationID zero means the
// session has no explicit location and resolution falls back to the
// system default.
type Session struct {
	UserID     int
	LocationID int
}

// Authenticated reports whether the session carries a user.
func (s Session) Authenticated() bool { return s.UserID != 0 }

type ctxKey struct{}

// NewContext returns a context carrying the given session.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext extracts the session from ctx. The zero Session (anonymous,
// no location) is returned when none was attached.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// LocationResolver resolves the caller's current location, preferring the
// explicit session location over the configured system default.
type LocationResolver struct {
	DB *gorm.DB
}

// Current resolves the current location for the session in ctx.
//
// Resolution order:
//  1. the session location, when the session names one that exists;
//  2. the system default location;
//  3. ErrNoLocationConfigured.
//
// A session location id pointing at a missing or retired row falls through
// to the default rather than failing, matching the "keep single-site
// deployments frictionless" stance.
func (r LocationResolver) Current(ctx context.Context) (*domain.Location, error) {
	s, _ := FromContext(ctx)

	if s.LocationID != 0 {
		loc, err := repo.GetLocation(ctx, r.DB, s.LocationID)
		if err == nil {
			return loc, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	loc, err := repo.GetDefaultLocation(ctx, r.DB)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoLocationConfigured
		}
		return nil, err
	}
	return loc, nil
}

// UserResolver resolves the caller's authenticated user and answers
// privilege checks.
type UserResolver struct {
	DB *gorm.DB
}

// Current resolves the authenticated user for the session in ctx, or
// ErrNoAuthenticatedUser when the session is anonymous or the user row is
// gone.
func (r UserResolver) Current(ctx context.Context) (*domain.User, error) {
	s, _ := FromContext(ctx)
	if !s.Authenticated() {
		return nil, ErrNoAuthenticatedUser
	}
	u, err := repo.GetUser(ctx, r.DB, s.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoAuthenticatedUser
		}
		return nil, err
	}
	return u, nil
}

// IsPrivileged reports whether the user bypasses row-level visibility
// filtering.
func (r UserResolver) IsPrivileged(u *domain.User) bool {
	return u != nil && u.SuperUser
}
