package middleware

import (
	"net/http"
	"strings"

	"media-converter/internal/logging"

	"golang.org/x/crypto/bcrypt"
)

// BearerAuth rejects requests whose bearer token does not match the bcrypt
// hash. An empty hash disables the check. Paths listed in exempt are
// always let through.
func BearerAuth(hash string, exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
				logging.Debug("Rejected unauthenticated request to %s from %s", r.URL.Path, getClientIP(r))
				w.Header().Set("WWW-Authenticate", `Bearer realm="media-converter"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
