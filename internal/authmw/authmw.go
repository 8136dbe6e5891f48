// Package authmw provides HTTP middleware for bearer token authentication
// on the incident API.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const scheme = "Bearer "

// BearerToken returns middleware that rejects requests whose Authorization
// header does not carry the expected bearer token. The comparison is
// constant-time so response timing leaks nothing about the token.
func BearerToken(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerFrom(r)
			if !ok {
				unauthorized(w, "missing or malformed authorization header")
				return
			}
			if subtle.ConstantTimeCompare(got, want) != 1 {
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerFrom(r *http.Request) ([]byte, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, scheme) {
		return nil, false
	}
	return []byte(auth[len(scheme):]), true
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
