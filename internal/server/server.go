// internal/server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/config"
	"github.com/signalnine/hostwatch/internal/logclass"
	"github.com/signalnine/hostwatch/internal/logging"
)

// Server exposes health, metrics, alert counters and on-demand classification
type Server struct {
	cfg    config.HTTPConfig
	server *http.Server
	logger *zap.Logger
}

// New wires the HTTP routes. Either store may be nil.
func New(cfg config.HTTPConfig, c *logclass.Classifier, store LineStore, anomalies AnomalyStore, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)

	mux := http.NewServeMux()
	mux.Handle("/classify", NewClassifyHandler(c, store, cfg.APIKey, cfg.MaxPayloadBytes, logger))
	mux.Handle("/alerts", NewAlertsHandler(store, logger))
	mux.Handle("/anomalies", NewAnomaliesHandler(anomalies, logger))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled. TLS is used when a certificate is configured.
func (s *Server) Run(ctx context.Context) error {
	useTLS := s.cfg.TLSCert != ""
	if useTLS {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCert, s.cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert: %w", err)
		}
		s.server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	s.logger.Info("http server starting", zap.String("addr", s.cfg.ListenAddr), zap.Bool("tls", useTLS))

	errCh := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			err = s.server.ListenAndServeTLS("", "")
		} else {
			err = s.server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
