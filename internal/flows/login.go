package flows

import "github.com/cronos-bakery/authclient/apierror"

// LoginOutcome classifies a login exchange.
type LoginOutcome int

const (
	LoginEstablished LoginOutcome = iota
	LoginTwoFactor
	// LoginMalformed is a 2xx answer that carried no usable token pair.
	LoginMalformed
	LoginRejected
)

// LoginReply is the part of a login answer the classification needs.
type LoginReply struct {
	RequiresTwoFactor bool
	HasAccessToken    bool
	HasRefreshToken   bool
}

// ClassifyLogin decides what a login exchange produced. A non-nil err always means
// rejection; a two-factor demand wins over any tokens in the body.
func ClassifyLogin(reply LoginReply, err error) LoginOutcome {
	switch {
	case err != nil:
		return LoginRejected
	case reply.RequiresTwoFactor:
		return LoginTwoFactor
	case !reply.HasAccessToken || !reply.HasRefreshToken:
		return LoginMalformed
	default:
		return LoginEstablished
	}
}

// ReauthOutcome classifies a re-authentication attempt.
type ReauthOutcome int

const (
	// ReauthConfirmed keeps the session and records activity.
	ReauthConfirmed ReauthOutcome = iota
	// ReauthForceLogout ends the session: the credentials no longer hold.
	ReauthForceLogout
	// ReauthKeepSession returns the error but keeps the session, e.g. on network failure.
	ReauthKeepSession
)

// ClassifyReauth decides the effect of a re-authentication result. Credential
// rejections and two-factor demands end the session; everything else keeps it.
func ClassifyReauth(requiresTwoFactor bool, err error) ReauthOutcome {
	if err == nil {
		if requiresTwoFactor {
			return ReauthForceLogout
		}
		return ReauthConfirmed
	}
	if apierror.IsKind(err, apierror.KindAuthentication) || apierror.IsKind(err, apierror.KindAuthorization) {
		return ReauthForceLogout
	}
	return ReauthKeepSession
}
