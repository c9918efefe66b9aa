package authclient

import (
	"slices"
	"time"
)

// User is the cached identity of the signed-in user.
type User struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Roles     []string `json:"roles"`
}

// HasRole reports whether role is in the user's role set.
func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

func (u User) isZero() bool {
	return u.ID == 0 && u.Username == "" && u.Email == "" && len(u.Roles) == 0
}

func (u User) clone() User {
	u.Roles = slices.Clone(u.Roles)
	return u
}

// Credentials are submitted to the login endpoint.
//
// TwoFactorCode is left empty on the first attempt and set to the one-time code
// after Login returned ErrTwoFactorRequired.
type Credentials struct {
	Username      string
	Password      string
	TwoFactorCode string
}

// LoginResult describes a completed or pending login.
type LoginResult struct {
	User User
	// RequiresTwoFactor is set when the backend wants a one-time code. No session
	// was established.
	RequiresTwoFactor bool
	Message           string
	// ExpiresIn is the access token lifetime reported by the backend.
	ExpiresIn time.Duration
}

// RegisterRequest creates a backend user account.
type RegisterRequest struct {
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	Roles       []string `json:"roles"`
}

// Account is the backend's view of a user account.
type Account struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	PhoneNumber      string    `json:"phoneNumber,omitempty"`
	Roles            []string  `json:"roles"`
	Enabled          bool      `json:"enabled"`
	AccountNonLocked bool      `json:"accountNonLocked"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type loginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	TwoFactorCode *int   `json:"twoFactorCode,omitempty"`
}

type loginResponse struct {
	AccessToken       string   `json:"accessToken"`
	RefreshToken      string   `json:"refreshToken"`
	TokenType         string   `json:"tokenType"`
	// seconds
	ExpiresIn         int64    `json:"expiresIn"`
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	Roles             []string `json:"roles"`
	RequiresTwoFactor bool     `json:"requiresTwoFactor"`
	Message           string   `json:"message"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	// RefreshToken is set only by backends that rotate refresh tokens.
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}
