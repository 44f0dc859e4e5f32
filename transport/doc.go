// Package transport provides the outbound HTTP client whose default
// Authorization header is owned by the session store.
//
// Screens must never write the header themselves; the store sets it on
// login/restore and clears it on logout.
package transport
