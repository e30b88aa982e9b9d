// Package httputil provides JSON response helpers, context keys, and the
// middleware function type used across the HTTP surface.
package httputil

import "net/http"

// Middleware defines a function type that represents a middleware. Middleware functions wrap an
// http.Handler to modify or enhance its behavior.
type Middleware func(http.Handler) http.Handler
