// Package backendtest is an in-process fake of the bakery backend's auth API.
//
// It issues real HS256 access tokens, tracks refresh tokens, counts calls per
// endpoint and exposes a small protected product API so client code can be
// exercised end to end with httptest.
package backendtest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cronos-bakery/authclient/internal/wire"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// APIPrefix is where the fake mounts its routes.
const APIPrefix = "/api/v1"

// Account is a user known to the fake.
type Account struct {
	ID        int64
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Roles     []string
	// TwoFactorCode, when non-zero, must accompany the password.
	TwoFactorCode int
	Locked        bool
}

// Product is the protected resource served by the fake.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Backend is the fake server state. Create it with New.
type Backend struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	rotate    bool

	mu           sync.Mutex
	accounts     map[string]*Account
	refresh      map[string]string // refresh token -> username
	issued       []string          // access token jti, in issue order
	revoked      map[string]bool
	resetTokens  map[string]string // reset token -> username
	products     []Product
	nextID       int64
	refreshFails bool
	refreshGate  chan struct{}

	logins    atomic.Int64
	refreshes atomic.Int64
	logouts   atomic.Int64
	protected atomic.Int64

	router chi.Router
}

// Option configures a Backend.
type Option func(*Backend)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.accessTTL = ttl }
}

// WithClock sets the time source used for issuing and checking tokens.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithRotation makes refresh answers carry a new refresh token.
func WithRotation() Option {
	return func(b *Backend) { b.rotate = true }
}

// WithAccount registers an account.
func WithAccount(a Account) Option {
	return func(b *Backend) { b.addAccount(a) }
}

// New returns a fake with the default bakery accounts: baker1/secret (baker) and
// admin/admin123 (admin, two-factor code 123456).
func New(opts ...Option) *Backend {
	b := &Backend{
		secret:      []byte(uuid.NewString()),
		accessTTL:   15 * time.Minute,
		now:         time.Now,
		accounts:    make(map[string]*Account),
		refresh:     make(map[string]string),
		revoked:     make(map[string]bool),
		resetTokens: make(map[string]string),
		products: []Product{
			{ID: 1, Name: "Sourdough", Price: 6.5},
			{ID: 2, Name: "Croissant", Price: 2.2},
		},
	}
	b.addAccount(Account{Username: "baker1", Password: "secret", Email: "baker1@bakery.test", FirstName: "Ada", LastName: "Baker", Roles: []string{"baker"}})
	b.addAccount(Account{Username: "admin", Password: "admin123", Email: "admin@bakery.test", FirstName: "Root", LastName: "Admin", Roles: []string{"admin", "baker"}, TwoFactorCode: 123456})
	for _, opt := range opts {
		opt(b)
	}
	b.router = b.routes()
	return b
}

// NewServer starts b behind an httptest server closed at test cleanup. The
// returned base URL already includes APIPrefix.
func NewServer(tb testing.TB, opts ...Option) (*Backend, string) {
	tb.Helper()
	b := New(opts...)
	srv := httptest.NewServer(b)
	tb.Cleanup(srv.Close)
	return b, srv.URL + APIPrefix
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

func (b *Backend) addAccount(a Account) {
	if a.ID == 0 {
		b.nextID++
		a.ID = b.nextID
	} else if a.ID > b.nextID {
		b.nextID = a.ID
	}
	acc := a
	b.accounts[a.Username] = &acc
}

/*
====================================
TEST CONTROLS
====================================
*/

// Logins returns how many login calls were received.
func (b *Backend) Logins() int64 { return b.logins.Load() }

// Refreshes returns how many refresh calls were received.
func (b *Backend) Refreshes() int64 { return b.refreshes.Load() }

// Logouts returns how many logout calls were received.
func (b *Backend) Logouts() int64 { return b.logouts.Load() }

// ProtectedCalls returns how many protected requests were received, accepted or not.
func (b *Backend) ProtectedCalls() int64 { return b.protected.Load() }

// RevokeAccessTokens makes every access token issued so far answer 401.
func (b *Backend) RevokeAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, jti := range b.issued {
		b.revoked[jti] = true
	}
}

// RejectRefresh makes the refresh endpoint answer 401.
func (b *Backend) RejectRefresh(reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshFails = reject
}

// HoldRefreshes blocks refresh calls until the returned release func is called.
func (b *Backend) HoldRefreshes() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.refreshGate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.refreshGate = nil
			b.mu.Unlock()
			close(gate)
		})
	}
}

// ResetTokenFor returns the reset token issued for email by forgot-password.
func (b *Backend) ResetTokenFor(email string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, username := range b.resetTokens {
		if acc := b.accounts[username]; acc != nil && acc.Email == email {
			return token, true
		}
	}
	return "", false
}

// IssueRefreshToken registers a refresh token for username, as if it came from an
// earlier login.
func (b *Backend) IssueRefreshToken(username string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := uuid.NewString()
	b.refresh[token] = username
	return token
}

// MintAccessToken signs an access token for username expiring at exp.
func (b *Backend) MintAccessToken(username string, exp time.Time) string {
	b.mu.Lock()
	acc := b.accounts[username]
	b.mu.Unlock()
	if acc == nil {
		acc = &Account{Username: username}
	}
	token, _ := b.sign(acc, exp)
	return token
}

/*
====================================
ROUTES
====================================
*/

func (b *Backend) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Post("/auth/login", b.handleLogin)
		r.Post("/auth/refresh", b.handleRefresh)
		r.Post("/auth/register", b.handleRegister)
		r.Post("/auth/forgot-password", b.handleForgotPassword)
		r.Post("/auth/reset-password", b.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(b.requireBearer)
			r.Post("/auth/logout", b.handleLogout)
			r.Get("/users/me", b.handleMe)
			r.Get("/products", b.handleListProducts)
			r.Post("/products", b.handleCreateProduct)
			r.Get("/products/{id}", b.handleGetProduct)
		})

		r.Get("/health/flaky", func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable", nil)
		})
	})
	return r
}

type loginBody struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	TwoFactorCode *int   `json:"twoFactorCode"`
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.logins.Add(1)

	var in loginBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request", nil)
		return
	}

	b.mu.Lock()
	acc := b.accounts[in.Username]
	b.mu.Unlock()

	if acc == nil || acc.Password != in.Password {
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}
	if acc.Locked {
		writeError(w, http.StatusForbidden, "Account is locked", nil)
		return
	}
	if acc.TwoFactorCode != 0 {
		if in.TwoFactorCode == nil {
			writeData(w, http.StatusOK, map[string]any{
				"requiresTwoFactor": true,
				"message":           "Two-factor authentication code required",
			}, "")
			return
		}
		if *in.TwoFactorCode != acc.TwoFactorCode {
			writeError(w, http.StatusUnauthorized, "Invalid two-factor code", nil)
			return
		}
	}

	access, err := b.sign(acc, b.now().Add(b.accessTTL))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", nil)
		return
	}
	refresh := uuid.NewString()
	b.mu.Lock()
	b.refresh[refresh] = acc.Username
	b.mu.Unlock()

	writeData(w, http.StatusOK, map[string]any{
		"accessToken":  access,
		"refreshToken": refresh,
		"tokenType":    "Bearer",
		"expiresIn":    int64(b.accessTTL / time.Second),
		"username":     acc.Username,
		"email":        acc.Email,
		"roles":        acc.Roles,
	}, "Login successful")
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshes.Add(1)

	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Refresh token is required", nil)
		return
	}

	b.mu.Lock()
	gate := b.refreshGate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	b.mu.Lock()
	username, ok := b.refresh[in.RefreshToken]
	fail := b.refreshFails
	acc := b.accounts[username]
	b.mu.Unlock()

	if !ok || fail || acc == nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token", nil)
		return
	}

	access, err := b.sign(acc, b.now().Add(b.accessTTL))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", nil)
		return
	}
	out := map[string]any{
		"accessToken": access,
		"tokenType":   "Bearer",
		"expiresIn":   int64(b.accessTTL / time.Second),
	}
	if b.rotate {
		next := uuid.NewString()
		b.mu.Lock()
		delete(b.refresh, in.RefreshToken)
		b.refresh[next] = username
		b.mu.Unlock()
		out["refreshToken"] = next
	}
	writeData(w, http.StatusOK, out, "Token refreshed")
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.logouts.Add(1)
	acc := accountFrom(r)

	b.mu.Lock()
	for token, username := range b.refresh {
		if username == acc.Username {
			delete(b.refresh, token)
		}
	}
	b.mu.Unlock()

	writeData(w, http.StatusOK, nil, "Logged out")
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username  string   `json:"username"`
		Email     string   `json:"email"`
		Password  string   `json:"password"`
		FirstName string   `json:"firstName"`
		LastName  string   `json:"lastName"`
		Phone     string   `json:"phoneNumber"`
		Roles     []string `json:"roles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request", nil)
		return
	}

	var fields []fieldError
	if strings.TrimSpace(in.Username) == "" {
		fields = append(fields, fieldError{Field: "username", Message: "Username is required"})
	}
	if !strings.Contains(in.Email, "@") {
		fields = append(fields, fieldError{Field: "email", Message: "Email must be valid"})
	}
	if len(in.Password) < 6 {
		fields = append(fields, fieldError{Field: "password", Message: "Password must be at least 6 characters"})
	}
	if len(fields) > 0 {
		writeError(w, http.StatusBadRequest, "Validation failed", fields)
		return
	}

	b.mu.Lock()
	if _, exists := b.accounts[in.Username]; exists {
		b.mu.Unlock()
		writeError(w, http.StatusConflict, "Username already exists", nil)
		return
	}
	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{"baker"}
	}
	b.addAccount(Account{
		Username:  in.Username,
		Password:  in.Password,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Roles:     roles,
	})
	acc := *b.accounts[in.Username]
	b.mu.Unlock()

	now := b.now().UTC()
	writeData(w, http.StatusCreated, map[string]any{
		"id":               acc.ID,
		"username":         acc.Username,
		"email":            acc.Email,
		"firstName":        acc.FirstName,
		"lastName":         acc.LastName,
		"phoneNumber":      in.Phone,
		"roles":            acc.Roles,
		"enabled":          true,
		"accountNonLocked": true,
		"createdAt":        now,
		"updatedAt":        now,
	}, "User registered")
}

func (b *Backend) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !strings.Contains(in.Email, "@") {
		writeError(w, http.StatusBadRequest, "Validation failed", []fieldError{{Field: "email", Message: "Email must be valid"}})
		return
	}

	b.mu.Lock()
	for _, acc := range b.accounts {
		if acc.Email == in.Email {
			b.resetTokens[uuid.NewString()] = acc.Username
		}
	}
	b.mu.Unlock()

	writeData(w, http.StatusOK, nil, "If the email exists, a reset link has been sent")
}

func (b *Backend) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request", nil)
		return
	}
	if len(in.NewPassword) < 6 {
		writeError(w, http.StatusBadRequest, "Validation failed", []fieldError{{Field: "newPassword", Message: "Password must be at least 6 characters"}})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	username, ok := b.resetTokens[in.Token]
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token", nil)
		return
	}
	delete(b.resetTokens, in.Token)
	b.accounts[username].Password = in.NewPassword

	writeData(w, http.StatusOK, nil, "Password has been reset")
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	acc := accountFrom(r)
	writeData(w, http.StatusOK, map[string]any{
		"id":        acc.ID,
		"username":  acc.Username,
		"email":     acc.Email,
		"firstName": acc.FirstName,
		"lastName":  acc.LastName,
		"roles":     acc.Roles,
	}, "")
}

func (b *Backend) handleListProducts(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	out := append([]Product(nil), b.products...)
	b.mu.Unlock()
	writeData(w, http.StatusOK, out, "")
}

func (b *Backend) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product id", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.products {
		if p.ID == id {
			writeData(w, http.StatusOK, p, "")
			return
		}
	}
	writeError(w, http.StatusNotFound, "", nil)
}

func (b *Backend) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in Product
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request", nil)
		return
	}

	fields := map[string][]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = []string{"Name is required"}
	}
	if in.Price <= 0 {
		fields["price"] = []string{"Price must be positive"}
	}
	if len(fields) > 0 {
		writeError(w, http.StatusUnprocessableEntity, "Validation failed", fields)
		return
	}

	b.mu.Lock()
	in.ID = int64(len(b.products) + 1)
	b.products = append(b.products, in)
	b.mu.Unlock()
	writeData(w, http.StatusCreated, in, "Product created")
}

/*
====================================
TOKENS
====================================
*/

type accessClaims struct {
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

func (b *Backend) sign(acc *Account, exp time.Time) (string, error) {
	now := b.now()
	jti := uuid.NewString()
	b.mu.Lock()
	b.issued = append(b.issued, jti)
	b.mu.Unlock()

	claims := accessClaims{
		Username: acc.Username,
		Email:    acc.Email,
		Roles:    acc.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(acc.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}

var errTokenRevoked = errors.New("token revoked")

func (b *Backend) verify(raw string) (*Account, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.now))
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revoked[claims.ID] {
		return nil, errTokenRevoked
	}
	acc := b.accounts[claims.Username]
	if acc == nil {
		return nil, errTokenRevoked
	}
	return acc, nil
}

type accountKey struct{}

func (b *Backend) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.protected.Add(1)
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		acc, err := b.verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, acc)))
	})
}

func accountFrom(r *http.Request) *Account {
	acc, _ := r.Context().Value(accountKey{}).(*Account)
	if acc == nil {
		return &Account{}
	}
	return acc
}

/*
====================================
RESPONSES
====================================
*/

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	env, err := wire.Wrap(data, message, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", nil)
		return
	}
	writeJSON(w, status, env)
}

func writeError(w http.ResponseWriter, status int, message string, errs any) {
	body := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
	}
	if message != "" {
		body["message"] = message
	}
	if errs != nil {
		body["errors"] = errs
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
