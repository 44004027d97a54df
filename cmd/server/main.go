package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/linechat/internal/logging"
	"github.com/Tyrowin/linechat/internal/server"
	"go.uber.org/zap"
)

func main() {
	cfg := server.NewConfigFromEnv()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "linechat: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *server.Config, logger *zap.Logger) error {
	logger.Info("starting program")

	chat := server.New(*cfg, logger)
	if err := chat.Start(cfg.Address, cfg.Port); err != nil {
		return err
	}

	var httpServer *http.Server
	gatewayErr := make(chan error, 1)
	if cfg.HTTPPort != "" {
		httpServer = server.CreateServer(cfg.HTTPPort, server.SetupRoutes(server.NewGateway(chat)))
		go func() {
			gatewayErr <- server.StartServer(httpServer, logger)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("stopping the server", zap.String("signal", sig.String()))
	case err := <-gatewayErr:
		if err != nil {
			logger.Error("gateway failed, stopping the server", zap.Error(err))
		}
	}

	if httpServer != nil {
		_ = server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return chat.Shutdown(ctx)
}
