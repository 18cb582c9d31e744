package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "stazy/pkg/errors"
	httputil "stazy/pkg/http"

	"github.com/julienschmidt/httprouter"
)

// The gateway authenticates callers and forwards the identity in these
// headers. They are trusted as is.
const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"

	RoleAdmin = "admin"

	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

// Identity copies the forwarded identity into the request context.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
				ctx = context.WithValue(ctx, UserIDKey, id)
			}
			if role := strings.TrimSpace(r.Header.Get(UserRoleHeader)); role != "" {
				ctx = context.WithValue(ctx, UserRoleKey, strings.ToLower(role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

func IsAdmin(ctx context.Context) bool {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role == RoleAdmin
}

// RequireUser answers 401 when the request carries no identity.
func RequireUser(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if UserID(r.Context()) == "" {
			_ = httputil.WriteError(w, apperrors.Unauthorized("Missing "+UserIDHeader+" header"))
			return
		}
		next(w, r, ps)
	}
}

// RequireAdmin answers 403 unless the caller has the admin role.
func RequireAdmin(next httprouter.Handle) httprouter.Handle {
	return RequireUser(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !IsAdmin(r.Context()) {
			_ = httputil.WriteError(w, apperrors.Forbidden("Admin role required"))
			return
		}
		next(w, r, ps)
	})
}
