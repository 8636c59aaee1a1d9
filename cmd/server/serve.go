package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Brownie44l1/ningapi/internal/handlers"
	"github.com/Brownie44l1/ningapi/internal/logging"
	"github.com/Brownie44l1/ningapi/internal/session"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	go svc.warmUp(context.Background())

	registry := session.NewRegistry(svc.deps(nil))
	var history handlers.History
	if svc.journal != nil {
		history = svc.journal
	}
	maxUpload := int64(cfg.Server.MaxUploadMB) << 20
	handler := handlers.NewHandler(svc.engine, registry, history, logger, maxUpload)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = maxUpload
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	logger.Info("server starting",
		zap.String("addr", server.Addr),
		zap.String("model", cfg.Model.Path),
		zap.String("speech_engine", cfg.Speech.Engine),
		zap.String("locale", cfg.Speech.Locale))
	logger.Info("endpoints",
		zap.Strings("routes", []string{
			"GET /health",
			"POST /predict/image",
			"GET /history",
			"POST /sessions",
			"GET|DELETE /sessions/:id",
			"POST /sessions/:id/{capture,capture/abort,image,repeat,rescan,cancel}",
		}))

	err = serveHTTPServer(server, shutdownTimeout, logger)
	registry.CancelAll()
	handler.Wait()
	return err
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
