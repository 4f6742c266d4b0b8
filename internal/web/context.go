package web

import (
	"net/http"

	"github.com/JonMunkholm/labliq/internal/core"
)

// requestContext records the client address and User-Agent for the service
// layer's change log. RemoteAddr is already the client IP once
// TrustedRealIP has run.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithClient(r.Context(), r.RemoteAddr, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
