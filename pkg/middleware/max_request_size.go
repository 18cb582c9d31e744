package middleware

import (
	"net/http"

	apperrors "stazy/pkg/errors"
	httputil "stazy/pkg/http"
)

// MaxRequestSize rejects bodies declared larger than limit and caps reads of
// undeclared ones, so a decoder fails instead of buffering an unbounded body.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				_ = httputil.WriteError(w, apperrors.PayloadTooLarge())
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
