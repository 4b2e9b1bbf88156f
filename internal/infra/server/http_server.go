package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	"go.uber.org/zap"
)

// StartHTTPServer обслуживает REST API до отмены ctx, затем выполняет graceful shutdown.
func StartHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", cfg.HTTPAddress)
	if err != nil {
		return err
	}
	return ServeHTTP(ctx, lis, cfg, handler, logger)
}

func ServeHTTP(ctx context.Context, lis net.Listener, cfg *config.Config, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: shutdownTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", lis.Addr().String()),
			zap.Bool("tls", cfg.TLSEnabled()),
		)
		var err error
		if cfg.TLSEnabled() {
			err = srv.ServeTLS(lis, cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		} else {
			err = srv.Serve(lis)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
		return srv.Close()
	}
	logger.Info("HTTP server stopped")
	return nil
}
