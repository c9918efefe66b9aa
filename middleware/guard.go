package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	authclient "github.com/cronos-bakery/authclient"
)

// Decision is the outcome of a route guard.
type Decision struct {
	Allow bool
	// Redirect is the path to send the user to when Allow is false.
	Redirect string
}

// Protected allows only an Authenticated session. Anyone else is sent to the login
// page, carrying requested as the return path when cfg.PreserveReturnPath is set.
//
// A Refreshing state is not Authenticated: callers that can wait should resolve it
// with Client.Settled first, as RequireAuthenticated does.
func Protected(state authclient.State, requested string, cfg authclient.GuardConfig) Decision {
	if state != nil && state.Kind() == authclient.StateAuthenticated {
		return Decision{Allow: true}
	}
	return Decision{Redirect: loginRedirect(requested, cfg)}
}

// GuestOnly allows only an Anonymous session, such as on the login page. A
// signed-in user is sent to the landing page.
func GuestOnly(state authclient.State, cfg authclient.GuardConfig) Decision {
	if state == nil || state.Kind() == authclient.StateAnonymous {
		return Decision{Allow: true}
	}
	return Decision{Redirect: cfg.LandingPath}
}

// SessionSource resolves the settled session state. *authclient.Client implements it.
type SessionSource interface {
	Settled(ctx context.Context) (authclient.State, error)
}

type stateContextKey struct{}

// StateFromContext returns the state the guard admitted the request with.
func StateFromContext(ctx context.Context) (authclient.State, bool) {
	st, ok := ctx.Value(stateContextKey{}).(authclient.State)
	return st, ok
}

// UserFromContext returns the identity admitted by RequireAuthenticated.
func UserFromContext(ctx context.Context) (authclient.User, bool) {
	st, ok := StateFromContext(ctx)
	if !ok {
		return authclient.User{}, false
	}
	return st.User()
}

// RequireAuthenticated redirects (302) requests without an authenticated session
// to the login page. It waits for an in-flight refresh before deciding.
func RequireAuthenticated(src SessionSource, cfg authclient.GuardConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := settled(r.Context(), src)
			d := Protected(st, r.URL.RequestURI(), cfg)
			if !d.Allow {
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}
			ctx := context.WithValue(r.Context(), stateContextKey{}, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGuest redirects (302) signed-in users to the landing page.
func RequireGuest(src SessionSource, cfg authclient.GuardConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := GuestOnly(settled(r.Context(), src), cfg)
			if !d.Allow {
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func settled(ctx context.Context, src SessionSource) authclient.State {
	if src == nil {
		return authclient.Anonymous{}
	}
	// on ctx expiry the last observed state is judged as-is
	st, _ := src.Settled(ctx)
	if st == nil {
		return authclient.Anonymous{}
	}
	return st
}

func loginRedirect(requested string, cfg authclient.GuardConfig) string {
	if !cfg.PreserveReturnPath || requested == "" || samePath(requested, cfg.LoginPath) {
		return cfg.LoginPath
	}
	param := cfg.ReturnParam
	if param == "" {
		param = "returnUrl"
	}
	sep := "?"
	if strings.Contains(cfg.LoginPath, "?") {
		sep = "&"
	}
	return cfg.LoginPath + sep + param + "=" + url.QueryEscape(requested)
}

func samePath(requested, path string) bool {
	p, _, _ := strings.Cut(requested, "?")
	return strings.TrimSuffix(p, "/") == strings.TrimSuffix(path, "/")
}
