package admitsession

import (
	"errors"

	"github.com/admitware/admitsession/token"
)

var (
	// ErrStoreNotReady is returned when a Store method is called on a nil or
	// unbuilt store.
	ErrStoreNotReady = errors.New("session store not initialized")
	// ErrTokenPersistFailed wraps slot write failures during login. The
	// previous session state is left untouched when it is returned.
	ErrTokenPersistFailed = errors.New("token persist failed")

	// ErrMalformedToken is re-exported from the token package for callers
	// that only import the root API.
	ErrMalformedToken = token.ErrMalformedToken
	// ErrIncompleteToken is re-exported from the token package.
	ErrIncompleteToken = token.ErrIncompleteToken
	// ErrTokenExpired is re-exported from the token package.
	ErrTokenExpired = token.ErrTokenExpired
)
