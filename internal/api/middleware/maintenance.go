package middleware

import (
	"net/http"

	"ctf_zone/internal/app/policy"
	"ctf_zone/internal/common"
)

// Maintenance answers 503 to everyone but admins while enabled reports
// true. The login route stays open so admins can sign in. It must run
// after Identify.
func Maintenance(enabled func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policy.IsMaintenanceBlocked(enabled(), ActorFromContext(r.Context()), r.URL.Path) {
				common.RespondWithError(w, http.StatusServiceUnavailable, "The site is under maintenance. Please check back later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
