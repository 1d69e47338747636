package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/hlog"
)

// Recovery turns a handler panic into a 500. A panic in the middle of a batch
// leaves the database transaction to roll back on its own.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			event := hlog.FromRequest(r).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("method", r.Method).
				Str("path", r.URL.Path)
			if userID, ok := UserIDFromContext(r.Context()); ok {
				event = event.Str("user_id", userID)
			}
			event.Msg("panic recovered")

			writeJSONError(w, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
