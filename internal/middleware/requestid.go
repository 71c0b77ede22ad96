package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey struct{}

const (
	RequestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
)

// RequestID tags each request with an id, reusing a well-formed X-Request-ID
// from the caller, and echoes it on the response.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get(RequestIDHeader)
			if !validRequestID(rid) {
				rid = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, rid)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, rid)))
		})
	}
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

func GetRequestID(r *http.Request) string {
	rid, _ := r.Context().Value(ctxKey{}).(string)
	return rid
}
