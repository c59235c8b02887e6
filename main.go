package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wfunc/gamehub/config"
	"github.com/wfunc/gamehub/logger"
	"github.com/wfunc/gamehub/persistence"
	"github.com/wfunc/gamehub/server"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gamehub",
		Short:        "Real-time blackjack room server",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newServeCmd() *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the WebSocket game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configDir)
		},
	}
	cmd.Flags().StringVarP(&configDir, "config", "c", ".", "directory containing config.yaml")
	return cmd
}

func serve(configDir string) error {
	// Load configuration
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Development)
	defer logger.Sync()

	// Initialize Database
	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}

	gameServer := server.NewGameServer(cfg, db)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gameServer.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	case s := <-sig:
		logger.Log.Infof("Received %s, shutting down", s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return gameServer.Shutdown(ctx)
}

// openDatabase returns nil for the "none" driver; round history then stays in memory.
func openDatabase(cfg config.DatabaseConfig) (persistence.Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "none":
		logger.Log.Info("No database configured, round history kept in memory.")
		return nil, nil
	case "gorm":
		db, err := persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Log.Info("Database connection successful.")
		return db, nil
	case "postgres":
		db, err := persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Log.Info("Database connection successful.")
		return db, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
