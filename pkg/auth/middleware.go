package auth

import (
	"net/http"
	"strings"

	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/logging"

	"go.uber.org/zap"
)

// DefaultCookieName carries the session token in browsers.
const DefaultCookieName = "portal_session"

// Middleware resolves the session token of each request into an
// identity.Identity on the request context. Requests without a valid token
// continue as identity.Anonymous; handlers decide what anonymous may do.
func Middleware(tokens *Tokens, cookieName string, logger *logging.Logger) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	logger = logger.Named("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r, cookieName)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := tokens.Parse(raw)
			if err != nil {
				logger.Debug("rejected session token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

// tokenFromRequest prefers the session cookie and falls back to a bearer
// Authorization header.
func tokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
