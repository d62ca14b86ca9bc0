// Package api implements the chatnotes HTTP API using chi.
package api

import (
	"net/http"

	"github.com/go-chi/cors"
)

// corsHandler allows the browser extension to call the API. "*" in origins
// allows every origin.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	})
}
