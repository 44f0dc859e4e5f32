// Package token decodes the admissions portal's three-segment session tokens
// into validated payloads and answers expiry questions.
//
// Decoding deliberately skips signature verification: the verification key is
// never shipped to clients, and the issuing backend is the sole authority on
// signature integrity. This package only defends the client against tokens
// that are structurally broken, incomplete, or expired.
package token
