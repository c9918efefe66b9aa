package flows

// RestoreInputs is what the client knows about persisted state at startup.
type RestoreInputs struct {
	HasRefreshToken bool
	HasAccessToken  bool
	// AccessDecodable is false when the stored access token is not a JWT.
	AccessDecodable bool
	AccessExpired   bool
	HasIdentity     bool
	// Fresh reports the activity record is inside the session window.
	Fresh bool
}

// RestoreAction is the verdict of DecideRestore.
type RestoreAction int

const (
	// RestoreNone leaves the session anonymous; there is nothing to restore.
	RestoreNone RestoreAction = iota
	// RestoreDiscard clears unusable persisted state and stays anonymous.
	RestoreDiscard
	// RestoreLocal re-establishes the session from storage without a network call.
	RestoreLocal
	// RestoreRefresh performs exactly one token refresh.
	RestoreRefresh
)

func (a RestoreAction) String() string {
	switch a {
	case RestoreDiscard:
		return "discard"
	case RestoreLocal:
		return "local"
	case RestoreRefresh:
		return "refresh"
	default:
		return "none"
	}
}

// DecideRestore picks the startup restore path.
//
// A session is restored locally only when every piece is present and trustworthy:
// an unexpired decodable access token, the cached identity and recent activity.
// An access token that does not decode means the stored state is corrupt.
func DecideRestore(in RestoreInputs) RestoreAction {
	if !in.HasRefreshToken {
		return RestoreNone
	}
	if in.HasAccessToken && !in.AccessDecodable {
		return RestoreDiscard
	}
	if in.HasAccessToken && !in.AccessExpired && in.HasIdentity && in.Fresh {
		return RestoreLocal
	}
	return RestoreRefresh
}
