package middlewares

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// CorsOptions lets browser dashboards on the given origins read device
// state and send commands.  Nothing else is allowed cross-origin.
func CorsOptions(allowedOrigins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", TxnIDHeader, CorrelationIDHeader, RequestIDHeader},
		ExposedHeaders: []string{TxnIDHeader, CorrelationIDHeader, RequestIDHeader},
		MaxAge:         600,
	}
}

// NewCorsMw answers preflights before any other middleware sees them, so
// it belongs first in the chain
func NewCorsMw(opts cors.Options) mux.MiddlewareFunc {
	return cors.New(opts).Handler
}
