// Package httpserver constructs the worker's operational HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the ops server. Write timeout is generous because forced
// training runs synchronously inside the request.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}
}
