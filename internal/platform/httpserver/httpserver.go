package httpserver

import (
	"net/http"

	"dealflow/internal/platform/config"
)

// New builds the HTTP server for the given handler with connection
// deadlines taken from config. Every timeout is set: a slow-header client,
// a dribbling body, and an idle keep-alive connection all get a hard bound.
func New(addr string, handler http.Handler, timeouts config.HTTPTimeouts) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
		ReadTimeout:       timeouts.Read,
		WriteTimeout:      timeouts.Write,
		IdleTimeout:       timeouts.Idle,
	}
}
