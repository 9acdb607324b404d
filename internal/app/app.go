package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/floodfreq/internal/gateway"
	"github.com/chrissnell/floodfreq/internal/log"
	"github.com/chrissnell/floodfreq/internal/managers"
	"github.com/chrissnell/floodfreq/internal/pipeline"
	"github.com/chrissnell/floodfreq/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config: cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	storageManager, err := managers.NewStorageManager(a.config.Sessions, a.config.Server.CookieMaxAge, log.Named("sessions"))
	if err != nil {
		return err
	}
	defer func() {
		if err := storageManager.Close(); err != nil {
			log.Errorf("error closing session store: %v", err)
		}
	}()
	storageManager.StartJanitor(ctx, &wg, a.config.Sessions.PurgeInterval)

	client := gateway.NewClient(a.config.Gateway.URL, log.Named("gateway"))
	service := pipeline.NewService(
		gateway.WithTimeout(client, a.config.Gateway.Timeout),
		gateway.RendererWithTimeout(client, a.config.Gateway.Timeout),
		a.config.Analysis.Workers,
		log.Named("pipeline"),
	)

	cm, err := managers.NewControllerManager(ctx, &wg, a.config, storageManager.Store, service, a.logger)
	if err != nil {
		return err
	}
	err = cm.StartControllers()
	if err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
