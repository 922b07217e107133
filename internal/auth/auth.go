// Package auth implements the shared-secret authentication check guarding
// every mutating coordinator endpoint (spec.md §4.5), adapted from the
// teacher's Bearer-token middleware to a single static secret rather than
// per-user JWT claims.
package auth

import (
	"net/http"
	"strings"

	"github.com/vaultcrack/recoverd/internal/apperr"
	"github.com/vaultcrack/recoverd/internal/httputil"
)

// tokenHeader is the dedicated single-token header accepted identically to
// an Authorization: Bearer header, per spec.md §4.5.
const tokenHeader = "X-API-Token"

// Checker validates the shared secret configured out of band.
type Checker struct {
	token string
}

// New builds a Checker for the configured token. An empty token means the
// coordinator was started without one, which fail-closes every mutating
// request per spec.md §4.5.
func New(token string) *Checker {
	return &Checker{token: token}
}

// Configured reports whether a token was set at startup.
func (c *Checker) Configured() bool { return c.token != "" }

// extract pulls the presented token out of either accepted header form.
func extract(r *http.Request) string {
	if v := r.Header.Get(tokenHeader); v != "" {
		return v
	}
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
		return strings.TrimPrefix(v, "Bearer ")
	}
	return ""
}

// Require wraps next with a check that the request carries the configured
// shared secret. Fails closed: if no token is configured, every call is
// rejected with a diagnostic explaining why, rather than silently allowing
// unauthenticated mutation.
func (c *Checker) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.Configured() {
			httputil.WriteError(w, apperr.AuthError(http.StatusUnauthorized, "token required but not configured"))
			return
		}
		presented := extract(r)
		if presented == "" || presented != c.token {
			httputil.WriteError(w, apperr.AuthError(http.StatusForbidden, "invalid token"))
			return
		}
		next(w, r)
	}
}
