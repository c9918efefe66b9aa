package authclient

// State is the session state. It is one of Anonymous, Authenticated or Refreshing.
type State interface {
	// Kind names the state.
	Kind() StateKind
	// User returns the identity held by the state, if any.
	User() (User, bool)
	isState()
}

// StateKind enumerates the session states.
type StateKind int

const (
	StateAnonymous StateKind = iota
	StateAuthenticated
	StateRefreshing
)

func (k StateKind) String() string {
	switch k {
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "anonymous"
	}
}

// Anonymous means no session is established.
type Anonymous struct{}

func (Anonymous) Kind() StateKind    { return StateAnonymous }
func (Anonymous) User() (User, bool) { return User{}, false }
func (Anonymous) isState()           {}

// Authenticated holds the signed-in user.
type Authenticated struct {
	Identity User
}

func (Authenticated) Kind() StateKind      { return StateAuthenticated }
func (a Authenticated) User() (User, bool) { return a.Identity.clone(), true }
func (Authenticated) isState()             {}

// Refreshing means an access token renewal is in flight. Identity is the user the
// session belonged to when the refresh started; it may be empty during startup
// restoration.
type Refreshing struct {
	Identity User
}

func (Refreshing) Kind() StateKind { return StateRefreshing }
func (r Refreshing) User() (User, bool) {
	if r.Identity.isZero() {
		return User{}, false
	}
	return r.Identity.clone(), true
}
func (Refreshing) isState() {}
