// Command apiserver runs the fleet map and query service.  The config file
// is watched; log level and map tunables reload without a restart.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/TRAXX-Intelligence/internal/app"
	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
)

const defaultConfigPath = "configs/config.yaml"

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	cfg, watch, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	logger.Info("starting TRAXX fleet service",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port),
		logging.String("ingestion", cfg.Ingestion.Source),
	)

	a, err := app.New(cfg, logger, app.WithVersion(version))
	if err != nil {
		logger.Fatal("assembly failed", logging.Err(err))
	}
	if watch {
		if err := a.Watch(*configPath); err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("service stopped with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("service stopped")
}

// loadConfig reads path when it exists and falls back to the environment.
// watch reports whether there is a file to watch.
func loadConfig(path string) (cfg *config.Config, watch bool, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		cfg, err = config.LoadFromEnv()
		return cfg, false, err
	}
	cfg, err = config.Load(path)
	return cfg, err == nil, err
}

//Personal.AI order the ending
