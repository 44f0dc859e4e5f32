package middleware

import (
	"context"
	"net/http"

	"github.com/admitware/admitsession"
	"github.com/admitware/admitsession/routes"
	"github.com/admitware/admitsession/token"
)

type userContextKey struct{}

// UserFromContext returns the authenticated user attached by [Guard], if any.
func UserFromContext(ctx context.Context) (*token.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*token.User)
	return u, ok
}

// Guard returns a middleware that resolves the session (triggering the
// one-time restore when the store is still loading) and applies
// [routes.Authorize] to the request path. Redirect decisions become 302
// responses; allowed requests carry the user in the request context.
func Guard(store *admitsession.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				http.Redirect(w, r, routes.PathLogin, http.StatusFound)
				return
			}

			state := store.State()
			if state.Loading {
				state = store.Restore(r.Context())
			}

			decision := routes.Authorize(state, r.URL.Path)
			switch decision.Action {
			case routes.ActionRedirect:
				http.Redirect(w, r, decision.Location, http.StatusFound)
			case routes.ActionPending:
				// Restore settles synchronously above, so pending only
				// survives a nil store race; answer with a retriable status.
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session restoring", http.StatusServiceUnavailable)
			default:
				if state.User != nil {
					ctx := context.WithValue(r.Context(), userContextKey{}, state.User)
					r = r.WithContext(ctx)
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}
