// Package routes maps session state and requested paths to routing
// decisions: allow, redirect, or pending while the session is still
// restoring.
//
// Decisions are pure functions of their inputs. Role checks fail closed to
// /login and never redirect a mismatched user to their own area, which would
// otherwise produce redirect loops between guarded prefixes.
package routes
