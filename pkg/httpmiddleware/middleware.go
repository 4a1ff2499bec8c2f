// Package httpmiddleware contains the HTTP middleware chain shared by the
// storefront servers.
package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Middleware wraps an http.Handler. It has the same shape as chi middleware,
// so values can be passed to chi.Router.Use directly.
type Middleware = func(http.Handler) http.Handler

// WriteError writes the JSON error body used across the API:
// {"code": <status>, "message": <msg>}.
func WriteError(w http.ResponseWriter, code int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
