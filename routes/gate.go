package routes

import (
	"strings"

	"github.com/admitware/admitsession"
	"github.com/admitware/admitsession/token"
)

// Portal route prefixes.
const (
	PathLogin          = "/login"
	PathRegister       = "/register"
	PathVerify         = "/verify"
	PathForgotPassword = "/forgot-password"
	PathResetPassword  = "/reset-password"
	PathApplicant      = "/applicant"
	PathBank           = "/bank"
	PathAdmin          = "/admin"
	PathRoot           = "/"
)

// Action defines a public type used by admitsession APIs.
type Action uint8

const (
	// ActionAllow lets the request through to the screen controller.
	ActionAllow Action = iota
	// ActionRedirect navigates to [Decision.Location].
	ActionRedirect
	// ActionPending means the session is still restoring; render a neutral
	// loading affordance and decide nothing yet.
	ActionPending
)

// Decision is the outcome of [Authorize].
type Decision struct {
	Action   Action
	Location string
}

func allow() Decision {
	return Decision{Action: ActionAllow}
}

func redirect(location string) Decision {
	return Decision{Action: ActionRedirect, Location: location}
}

// ResolveRedirect maps a user to their home area: applicants to /applicant,
// bank staff to /bank, the admin family (admin, registrar, principal, it,
// finance) to /admin. A nil user or an unrecognized role resolves to /login
// (fail-closed).
func ResolveRedirect(u *token.User) string {
	if u == nil {
		return PathLogin
	}
	switch {
	case u.Role == token.RoleApplicant:
		return PathApplicant
	case u.Role == token.RoleBank:
		return PathBank
	case u.Role.AdminFamily():
		return PathAdmin
	default:
		return PathLogin
	}
}

// guardedPrefixes maps each protected area to the predicate its user must
// satisfy.
var guardedPrefixes = []struct {
	prefix  string
	permits func(token.Role) bool
}{
	{PathApplicant, func(r token.Role) bool { return r == token.RoleApplicant }},
	{PathBank, func(r token.Role) bool { return r == token.RoleBank }},
	{PathAdmin, token.Role.AdminFamily},
}

var publicAuthPaths = []string{
	PathLogin,
	PathRegister,
	PathVerify,
	PathForgotPassword,
	PathResetPassword,
}

// Authorize decides routing for a requested path given the current session
// state.
//
// While the state is still loading no decision is made ([ActionPending]).
// Guarded prefixes (/applicant, /bank, /admin) redirect to /login when the
// session is unauthenticated or the role does not match the prefix. Public
// auth routes redirect authenticated users to [ResolveRedirect]. The root
// path redirects to the user's home area, or /login when anonymous. Paths
// outside the portal's route map are allowed through.
func Authorize(state admitsession.SessionState, path string) Decision {
	if state.Loading {
		return Decision{Action: ActionPending}
	}
	if state.User == nil {
		// Enforce the session invariant fail-closed: no user, no access.
		state.Authenticated = false
	}

	for _, guard := range guardedPrefixes {
		if !matchesPrefix(path, guard.prefix) {
			continue
		}
		if !state.Authenticated {
			return redirect(PathLogin)
		}
		if !guard.permits(state.User.Role) {
			return redirect(PathLogin)
		}
		return allow()
	}

	for _, public := range publicAuthPaths {
		if !matchesPrefix(path, public) {
			continue
		}
		if state.Authenticated {
			return redirect(ResolveRedirect(state.User))
		}
		return allow()
	}

	if path == PathRoot || path == "" {
		if state.Authenticated {
			return redirect(ResolveRedirect(state.User))
		}
		return redirect(PathLogin)
	}

	return allow()
}

// matchesPrefix reports whether path is prefix itself or a sub-path of it
// ("/bank" and "/bank/pins" match, "/bankrupt" does not).
func matchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
