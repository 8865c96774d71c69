package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// WithCORS wraps the engine so preflight requests are answered before gin
// routing. A "*" entry in allowedOrigins allows any origin.
func WithCORS(next http.Handler, allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	return c.Handler(next)
}
