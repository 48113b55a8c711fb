package api

import (
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// NewServer wraps handler in an http.Server bound to the configured port.
// PORT, when set by the platform, wins over the config value.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
