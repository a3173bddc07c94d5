// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file bridges host authentication into the module's session model.
// The host platform terminates authentication in front of this surface and
// forwards the caller identity and session location as trusted headers;
// this middleware turns them into a session.Session attached to the
// request context, where the resolvers, services, and the visibility
// filter pick them up.
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Paradgym/openmrs-module-paradygm/internal/session"
)

const (
	// HeaderUserID carries the host-authenticated user id.
	HeaderUserID = "X-User-ID"
	// HeaderLocationID carries the caller's session location id, if any.
	HeaderLocationID = "X-Location-ID"
)

// SessionFromHeaders attaches the caller context from trusted host headers.
// Absent or non-numeric headers yield an anonymous session with no
// location; downstream code treats that as "unauthenticated" and "fall
// back to the default location" respectively.
func SessionFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := session.Session{}
		if v, err := strconv.Atoi(c.GetHeader(HeaderUserID)); err == nil && v > 0 {
			s.UserID = v
		}
		if v, err := strconv.Atoi(c.GetHeader(HeaderLocationID)); err == nil && v > 0 {
			s.LocationID = v
		}

		// Expose the user id to the access log and rate limiter.
		if s.Authenticated() {
			c.Set("userID", strconv.Itoa(s.UserID))
		}

		c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), s))
		c.Next()
	}
}
