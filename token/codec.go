package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role classifies which area of the portal a user may enter.
//
// Role instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Role string

const (
	// RoleApplicant is issued to admission applicants.
	RoleApplicant Role = "applicant"
	// RoleBank is issued to bank staff operating the payment/PIN console.
	RoleBank Role = "bank"
	// RoleAdmin is issued to portal administrators.
	RoleAdmin Role = "admin"
	// RoleRegistrar is an admin-family role for the registrar's office.
	RoleRegistrar Role = "registrar"
	// RolePrincipal is an admin-family role for the school principal.
	RolePrincipal Role = "principal"
	// RoleIT is an admin-family role for IT staff.
	RoleIT Role = "it"
	// RoleFinance is an admin-family role for the finance office.
	RoleFinance Role = "finance"
)

// AdminFamily reports whether the role belongs to the admin console group
// (admin, registrar, principal, it, finance).
func (r Role) AdminFamily() bool {
	switch r {
	case RoleAdmin, RoleRegistrar, RolePrincipal, RoleIT, RoleFinance:
		return true
	default:
		return false
	}
}

// Known reports whether the role is one of the seven roles the portal issues.
func (r Role) Known() bool {
	return r == RoleApplicant || r == RoleBank || r.AdminFamily()
}

var (
	// ErrMalformedToken is returned for tokens that are structurally broken:
	// wrong segment count, invalid payload encoding, or invalid payload JSON.
	ErrMalformedToken = errors.New("malformed token")
	// ErrIncompleteToken is returned for tokens whose payload parses but is
	// missing a required claim (id, email, role, or exp).
	ErrIncompleteToken = errors.New("incomplete token")
	// ErrTokenExpired is returned when a token's exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
)

// Payload is the decoded middle segment of a session token.
//
// Payload instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Payload struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// User is the in-memory projection of a [Payload] minus its expiry claim.
// It is owned by the session store and never persisted beyond the raw token.
type User struct {
	ID          int64
	Email       string
	Role        Role
	Permissions []string
}

// Decode transforms a raw token string into a validated [Payload].
//
// The token must split into exactly three dot-separated segments and the
// middle segment must base64url-decode to JSON, otherwise Decode fails with
// [ErrMalformedToken]. The payload must carry a non-zero id, non-empty email
// and role, and a numeric exp claim, otherwise Decode fails with
// [ErrIncompleteToken]. The signature segment is ignored; see the package
// documentation for the trust boundary.
//
// Decode is a pure function with no side effects.
func Decode(raw string) (*Payload, error) {
	payload := &Payload{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if payload.ID == 0 || payload.Email == "" || payload.Role == "" {
		return nil, ErrIncompleteToken
	}
	if payload.ExpiresAt == nil {
		return nil, ErrIncompleteToken
	}
	if payload.Permissions == nil {
		payload.Permissions = []string{}
	}
	return payload, nil
}

// ExpiredAt reports whether the payload's exp claim, carried in Unix seconds
// by the issuing backend, is at or before now when compared in milliseconds.
func (p *Payload) ExpiredAt(now time.Time) bool {
	if p == nil || p.ExpiresAt == nil {
		return true
	}
	return p.ExpiresAt.Time.UnixMilli() <= now.UnixMilli()
}

// User projects the payload into the in-memory [User] representation.
// The permissions slice is copied so the payload stays immutable.
func (p *Payload) User() *User {
	if p == nil {
		return nil
	}
	perms := make([]string, len(p.Permissions))
	copy(perms, p.Permissions)
	return &User{
		ID:          p.ID,
		Email:       p.Email,
		Role:        p.Role,
		Permissions: perms,
	}
}

// Clone returns a deep copy of the user, or nil for a nil receiver.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	perms := make([]string, len(u.Permissions))
	copy(perms, u.Permissions)
	clone := *u
	clone.Permissions = perms
	return &clone
}
