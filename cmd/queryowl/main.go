// queryowl is the backend core of a desktop PostgreSQL client. The desktop
// shell talks to it over a loopback HTTP bridge; `queryowl serve` runs that
// bridge in the foreground.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/queryowl/queryowl/internal/config"
	"github.com/queryowl/queryowl/internal/connections"
	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/favorites"
	"github.com/queryowl/queryowl/internal/history"
	"github.com/queryowl/queryowl/internal/logger"
	"github.com/queryowl/queryowl/internal/secret"
	"github.com/queryowl/queryowl/internal/server"
)

// version is set by ldflags at release time.
var version = "dev"

var (
	flagAddr     string
	flagLogLevel string
	flagLogFile  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "queryowl",
		Short:   "PostgreSQL client backend",
		Long:    "queryowl runs the query execution, schema introspection and export backend\nthat the desktop shell invokes over a loopback HTTP bridge.",
		Version: version,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the command bridge in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	serveCmd.Flags().StringVar(&flagLogFile, "log-file", "", "log file path")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagLogFile != "" {
		cfg.Log.File = flagLogFile
	}

	logger.InitLogger(cfg.Log.Level, cfg.Log.File)
	defer logger.Close()

	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}

	keeper, err := secret.NewKeeper(dataDir)
	if err != nil {
		return fmt.Errorf("initializing secret keeper: %w", err)
	}
	if keeper.IsUsingFallback() {
		logger.Warn("no OS keyring available, master key stored on disk", "dir", dataDir)
	}

	store, err := connections.NewStore(dataDir, keeper)
	if err != nil {
		return fmt.Errorf("opening connection store: %w", err)
	}

	favs, err := favorites.NewManager(dataDir)
	if err != nil {
		return fmt.Errorf("opening favorites: %w", err)
	}

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.NewStore(filepath.Join(dataDir, "history.db"), cfg.History.MaxEntries)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
	}

	manager := connection.NewManager(connection.PoolLimits{
		MaxConns: cfg.Pool.MaxConns,
		MinConns: cfg.Pool.MinConns,
	})

	srv := server.New(server.Deps{
		Config:    cfg,
		Store:     store,
		Manager:   manager,
		History:   hist,
		Favorites: favs,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("queryowl starting", "version", version, "data_dir", dataDir)
	start := time.Now()
	err = srv.Serve(ctx)
	logger.Info("queryowl stopped", "uptime", time.Since(start).Round(time.Second).String())
	return err
}
