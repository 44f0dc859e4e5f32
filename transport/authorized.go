package transport

import (
	"net/http"
	"sync"
)

// Authorized is an [http.RoundTripper] that injects a bearer Authorization
// header into every outbound request while a token is set. The token is a
// process-wide singleton mutated only by the session store.
type Authorized struct {
	base http.RoundTripper

	mu    sync.RWMutex
	token string
}

// NewAuthorized wraps the given base transport. A nil base falls back to
// [http.DefaultTransport].
func NewAuthorized(base http.RoundTripper) *Authorized {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Authorized{base: base}
}

// SetToken installs the bearer token carried by subsequent requests.
func (a *Authorized) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

// ClearToken removes the bearer token. Subsequent requests carry no
// Authorization header.
func (a *Authorized) ClearToken() {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}

// Token returns the currently installed token, or empty.
func (a *Authorized) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// RoundTrip clones the request and attaches the Authorization header when a
// token is set. The original request is never mutated.
func (a *Authorized) RoundTrip(req *http.Request) (*http.Response, error) {
	a.mu.RLock()
	token := a.token
	a.mu.RUnlock()

	if token == "" {
		return a.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return a.base.RoundTrip(clone)
}

// Client returns an [http.Client] using this transport.
func (a *Authorized) Client() *http.Client {
	return &http.Client{Transport: a}
}
