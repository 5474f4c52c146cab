package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"planktovision/internal/config"
	"planktovision/internal/server"
)

// handleHTTPServer configures and starts the HTTP server. It shuts the
// server down gracefully when the context is canceled.
func handleHTTPServer(ctx context.Context, s *server.Server, cfg *config.Config,
	wg *sync.WaitGroup, errc chan error, logger *log.Logger, debug bool) {

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 60 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		go func() {
			logger.Printf("HTTP server listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()

		<-ctx.Done()
		logger.Printf("shutting down HTTP server at %s", srv.Addr)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("failed to shutdown: %v", err)
			if err := srv.Close(); err != nil {
				logger.Printf("failed to stop: %v", err)
			}
		}
	}()
}
