package authclient

import "errors"

var (
	// ErrTwoFactorRequired is returned by Login when the backend asks for a one-time
	// code. The session stays anonymous; retry with Credentials.TwoFactorCode set.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrInvalidTwoFactorCode is returned when the one-time code is not numeric.
	ErrInvalidTwoFactorCode = errors.New("two-factor code must be numeric")
	// ErrInvalidCredentials is returned before any call when username or password is empty.
	ErrInvalidCredentials = errors.New("username and password are required")
	// ErrNoRefreshToken is returned by Refresh when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrMalformedTokenResponse is returned when the backend answers 2xx without tokens.
	ErrMalformedTokenResponse = errors.New("token response missing tokens")
	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrBuilderUsed is returned by a second Build on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)
