package httpserver

import (
	"net/http"
	"time"

	"docverify/internal/platform/config"
)

// New builds an HTTP server with the configured timeouts. WriteTimeout must
// cover a full synchronous verification run.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}
