package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Paradgym/openmrs-module-paradygm/internal/session"
)

func TestSessionFromHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name     string
		user     string
		location string
		want     session.Session
	}{
		{"both headers", "4", "2", session.Session{UserID: 4, LocationID: 2}},
		{"user only", "4", "", session.Session{UserID: 4}},
		{"absent", "", "", session.Session{}},
		{"non-numeric", "bob", "here", session.Session{}},
		{"negative ignored", "-1", "-2", session.Session{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(SessionFromHeaders())

			var got session.Session
			r.GET("/", func(c *gin.Context) {
				got, _ = session.FromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.user != "" {
				req.Header.Set(HeaderUserID, tc.user)
			}
			if tc.location != "" {
				req.Header.Set(HeaderLocationID, tc.location)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if got != tc.want {
				t.Fatalf("session = %+v; want %+v", got, tc.want)
			}
		})
	}
}
