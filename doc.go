// Package admitsession is the client-side session core of the admissions
// portal: it owns the authoritative session state for a process, validates
// and persists session tokens, and feeds the role-based routing gate that
// every screen consults.
//
// The package is designed around three explicit state transitions — restore,
// login, logout — funneled through a single [Store] built via [Builder.Build].
// Store methods are safe to call from multiple goroutines; readers always
// observe a pre- or post-transition state, never a partial one.
//
// # Architecture boundaries
//
// admitsession is the public surface. It exposes [Store], [Builder],
// [Config], [SessionState], and the audit/metrics value types. Token decoding
// lives in the token package, the persisted token slot in storage, the
// authorized HTTP transport in transport, and routing decisions in routes.
//
// # What this package must NOT do
//
//   - Verify token signatures. The verification key never ships to clients;
//     the backend is the sole authority on signature integrity.
//   - Perform network login calls. Screens obtain the raw token from the
//     backend and hand it to [Store.Login].
//   - Let any collaborator write the token slot or the Authorization header
//     directly; both are mutated only by Store transitions.
package admitsession
