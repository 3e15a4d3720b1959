package main

import "net/http"

// corsMiddleware wraps an http.Handler and sets CORS headers on ALL responses,
// including error responses. This prevents CORB (Cross-Origin Read Blocking) in
// browsers when a frontend served from another port talks to the backend.
//
// With no configured origins every origin is allowed. With a configured list
// only listed origins are echoed back; other origins get no CORS headers and
// the browser blocks the response.
func corsMiddleware(allowedOrigins []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := allowOrigin(allowedOrigins, r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allowOrigin picks the Access-Control-Allow-Origin value for a request
// origin, or empty when the origin is not allowed.
func allowOrigin(allowed []string, origin string) string {
	if len(allowed) == 0 {
		return "*"
	}
	for _, a := range allowed {
		if a == "*" {
			return "*"
		}
		if a == origin && origin != "" {
			return origin
		}
	}
	return ""
}
