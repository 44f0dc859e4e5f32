// Package middleware provides the HTTP route guard that enforces the
// portal's routing decisions: unauthenticated requests to guarded areas are
// redirected to /login, authenticated users are kept out of the public auth
// pages, and role mismatches fail closed.
package middleware
