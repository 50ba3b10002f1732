package rbac

import (
	"encoding/json"
	"net/http"
	"strings"
)

var Default = NewChecker(nil)

func forbid(w http.ResponseWriter, perms []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(http.StatusForbidden),
		"message": "missing permission " + strings.Join(perms, " or "),
	})
}

// Require enforces a single permission.
func (c *Checker) Require(perm string) func(http.Handler) http.Handler {
	return c.RequireAny(perm)
}

// RequireAny enforces that the role has at least one of the permissions.
func (c *Checker) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !c.Any(role, perms...) {
				forbid(w, perms)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require enforces perm with the default policy.
func Require(perm string) func(http.Handler) http.Handler { return Default.Require(perm) }

// RequireAny enforces perms with the default policy.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return Default.RequireAny(perms...)
}
