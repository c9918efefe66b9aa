package middleware

import (
	"context"
	"net/http"
	"slices"

	authclient "github.com/cronos-bakery/authclient"
)

// RequireRole admits authenticated users holding at least one of roles. Anonymous
// users are redirected like RequireAuthenticated; signed-in users without a
// matching role get 403.
func RequireRole(src SessionSource, cfg authclient.GuardConfig, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := settled(r.Context(), src)
			d := Protected(st, r.URL.RequestURI(), cfg)
			if !d.Allow {
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}

			u, _ := st.User()
			if !slices.ContainsFunc(roles, u.HasRole) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), stateContextKey{}, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
