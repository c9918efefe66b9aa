package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	authclient "github.com/cronos-bakery/authclient"
	"github.com/cronos-bakery/authclient/internal/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct {
	state authclient.State
	calls int
}

func (f *fixedSource) Settled(context.Context) (authclient.State, error) {
	f.calls++
	return f.state, nil
}

var baker = authclient.User{ID: 1, Username: "baker1", Roles: []string{"baker"}}

func TestProtected(t *testing.T) {
	cfg := authclient.DefaultConfig().Guard

	tests := []struct {
		name      string
		state     authclient.State
		requested string
		want      Decision
	}{
		{"authenticated", authclient.Authenticated{Identity: baker}, "/orders", Decision{Allow: true}},
		{"anonymous keeps return path", authclient.Anonymous{}, "/orders?page=2", Decision{Redirect: "/auth/login?returnUrl=%2Forders%3Fpage%3D2"}},
		{"refreshing is not authenticated", authclient.Refreshing{Identity: baker}, "/orders", Decision{Redirect: "/auth/login?returnUrl=%2Forders"}},
		{"nil state", nil, "/orders", Decision{Redirect: "/auth/login?returnUrl=%2Forders"}},
		{"login page has no return path", authclient.Anonymous{}, "/auth/login", Decision{Redirect: "/auth/login"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Protected(tt.state, tt.requested, cfg))
		})
	}
}

func TestProtectedWithoutReturnPath(t *testing.T) {
	cfg := authclient.DefaultConfig().Guard
	cfg.PreserveReturnPath = false

	assert.Equal(t, Decision{Redirect: "/auth/login"}, Protected(authclient.Anonymous{}, "/orders", cfg))
}

func TestGuestOnly(t *testing.T) {
	cfg := authclient.DefaultConfig().Guard

	assert.True(t, GuestOnly(authclient.Anonymous{}, cfg).Allow)
	assert.Equal(t, Decision{Redirect: "/dashboard"}, GuestOnly(authclient.Authenticated{Identity: baker}, cfg))
	assert.Equal(t, Decision{Redirect: "/dashboard"}, GuestOnly(authclient.Refreshing{Identity: baker}, cfg))
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := UserFromContext(r.Context()); ok {
			w.Header().Set("X-User", u.Username)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRequireAuthenticated(t *testing.T) {
	cfg := authclient.DefaultConfig().Guard

	t.Run("redirects anonymous", func(t *testing.T) {
		src := &fixedSource{state: authclient.Anonymous{}}
		rec := serve(RequireAuthenticated(src, cfg)(okHandler(t)), "/products/7")

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/auth/login?returnUrl=%2Fproducts%2F7", rec.Header().Get("Location"))
		assert.Equal(t, 1, src.calls)
	})

	t.Run("admits authenticated", func(t *testing.T) {
		src := &fixedSource{state: authclient.Authenticated{Identity: baker}}
		rec := serve(RequireAuthenticated(src, cfg)(okHandler(t)), "/products")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "baker1", rec.Header().Get("X-User"))
	})

	t.Run("nil source is anonymous", func(t *testing.T) {
		rec := serve(RequireAuthenticated(nil, cfg)(okHandler(t)), "/products")
		assert.Equal(t, http.StatusFound, rec.Code)
	})
}

func TestRequireGuest(t *testing.T) {
	cfg := authclient.DefaultConfig().Guard

	rec := serve(RequireGuest(&fixedSource{state: authclient.Authenticated{Identity: baker}}, cfg)(okHandler(t)), "/auth/login")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = serve(RequireGuest(&fixedSource{state: authclient.Anonymous{}}, cfg)(okHandler(t)), "/auth/login")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	cfg := authclient.DefaultConfig().Guard
	src := &fixedSource{state: authclient.Authenticated{Identity: baker}}

	rec := serve(RequireRole(src, cfg, "admin")(okHandler(t)), "/users")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(RequireRole(src, cfg, "admin", "baker")(okHandler(t)), "/users")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(RequireRole(&fixedSource{state: authclient.Anonymous{}}, cfg, "admin")(okHandler(t)), "/users")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestGuardsFollowClientSession(t *testing.T) {
	_, baseURL := backendtest.NewServer(t)
	cfg := authclient.DefaultConfig()
	cfg.API.BaseURL = baseURL

	c, err := authclient.New().WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	protected := RequireAuthenticated(c, cfg.Guard)(okHandler(t))
	login := RequireGuest(c, cfg.Guard)(okHandler(t))

	assert.Equal(t, http.StatusFound, serve(protected, "/dashboard").Code)
	assert.Equal(t, http.StatusOK, serve(login, "/auth/login").Code)

	_, err = c.Login(context.Background(), authclient.Credentials{Username: "baker1", Password: "secret"})
	require.NoError(t, err)

	rec := serve(protected, "/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "baker1", rec.Header().Get("X-User"))
	assert.Equal(t, http.StatusFound, serve(login, "/auth/login").Code)

	c.Logout(context.Background())
	assert.Equal(t, http.StatusFound, serve(protected, "/dashboard").Code)
}
