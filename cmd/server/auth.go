package main

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const adminKeyHeader = "X-Admin-Key"

// adminKeyMiddleware rejects requests whose X-Admin-Key does not match the
// configured key. An unset key rejects everything.
func (s *server) adminKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validAdminKey(s.adminKey, r.Header.Get(adminKeyHeader)) {
			errorResponse(w, http.StatusUnauthorized, "missing or invalid admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validAdminKey(expected, provided string) bool {
	provided = strings.TrimSpace(provided)
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
