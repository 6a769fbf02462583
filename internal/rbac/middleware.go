package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lumora-sms/lumora/internal/shared"
)

// CapabilityChecker answers whether a user holds a capability. Satisfied by
// *Service.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, userID int64, capability string) (bool, error)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Service CapabilityChecker
	Logger  *slog.Logger
}

// RequireUser ensures the request carries an authenticated actor. Capability
// checks live in the services themselves; this guard only rejects anonymous
// callers early.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := shared.ActorFromContext(r.Context())
		if !actor.Known() {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapability rejects callers lacking the named capability. Used for
// routes whose handlers do not go through a capability-checking service.
func (m Middleware) RequireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if !actor.Known() {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			granted, err := m.Service.HasCapability(r.Context(), actor.UserID, capability)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac capability check", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !granted {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
