package http

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mkrupp/pantry/internal/infra/logging"
)

// RescueingMiddleware recovers panics raised by handlers, logs them with the
// stack trace and answers 500 Internal Server Error.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func RescueingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}

			if p == http.ErrAbortHandler { //nolint:errorlint,goerr113
				panic(p)
			}

			log.ErrorContext(r.Context(), "request panic", slog.Group("http",
				"uri", r.RequestURI,
				"method", r.Method,
			), slog.Group("error",
				"panic", p,
				"stack", string(debug.Stack()),
			))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
