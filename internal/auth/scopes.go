package auth

// Scopes granted to session tokens.
const (
	ScopeWorkoutsWrite = "workouts:write"
	ScopeWorkoutsRead  = "workouts:read"
)

// SessionScopes are issued on login and signup.
var SessionScopes = []string{ScopeWorkoutsRead, ScopeWorkoutsWrite}
