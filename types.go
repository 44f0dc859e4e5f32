package admitsession

import (
	"github.com/admitware/admitsession/token"
)

// SessionState is a point-in-time snapshot of the process-wide session.
//
// Invariant: Authenticated == (User != nil). Loading is true only until the
// initial restore settles; consumers must render a neutral loading affordance
// and not assume User is populated while Loading is true.
type SessionState struct {
	Authenticated bool
	User          *token.User
	Loading       bool
}
