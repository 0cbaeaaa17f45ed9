package server

import (
	"net/http"
)

// apiHeaders are set on every response. Snapshots change with every poll so
// nothing may be cached.
var apiHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Cache-Control":          "no-store",
}

func withAPIHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range apiHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
