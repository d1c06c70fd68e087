package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/suteetoe/thing-service/internal/app"
	"github.com/suteetoe/thing-service/pkg/config"
	"github.com/suteetoe/thing-service/pkg/logger"
	"go.uber.org/zap"
)

const serviceName = "thing-service"

func main() {
	// Load configuration (.env is read if present)
	appConfig, err := config.Load(serviceName)
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Log.Level,
		Environment: appConfig.Server.Env,
		ServiceName: serviceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting "+serviceName, appConfig.LogConfig()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
	log.Info("Server stopped")
}
