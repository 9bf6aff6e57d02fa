package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/characterverse/character-facade/internal/api"
	"github.com/characterverse/character-facade/internal/config"
	"github.com/characterverse/character-facade/internal/core"
	"github.com/characterverse/character-facade/internal/engine/mindsdb"
	"github.com/characterverse/character-facade/internal/logger"
	"github.com/characterverse/character-facade/internal/store"
)

const serviceName = "character-facade"

// queryEngine is what the process holds open for its whole lifetime.
type queryEngine interface {
	core.Engine
	Close() error
}

func main() {
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "HTTP facade over the character knowledge base and models",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a Markdown table of characters into the local SQLite engine and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			return runSeed(file)
		},
	}
	seedCmd.Flags().StringP("file", "f", "data.md", "Markdown file with | character_name | genre | media_type | description |")
	rootCmd.AddCommand(seedCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check the configured engine once and print the status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth()
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, dotenv, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.New(serviceName, cfg.LogLevel)
	if !dotenv {
		log.Info().Msg("No .env file found, relying on environment variables")
	}
	log.Info().
		Str("engine_driver", cfg.EngineDriver).
		Str("mindsdb_url", cfg.MindsDBURL).
		Str("mindsdb_project", cfg.MindsDBProject).
		Str("http_port", cfg.HTTPPort).
		Str("kb_table", cfg.KnowledgeBase).
		Str("chat_model", cfg.ChatModel).
		Str("insights_model", cfg.InsightsModel).
		Msg("Configuration loaded")
	return cfg, log, nil
}

// openEngine connects to the configured backend. Failure is fatal to the caller.
func openEngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (queryEngine, error) {
	switch cfg.EngineDriver {
	case config.DriverSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath, cfg.Resources(), log)
	default:
		return mindsdb.Connect(ctx, mindsdb.Options{
			URL:      cfg.MindsDBURL,
			Project:  cfg.MindsDBProject,
			Username: cfg.MindsDBUser,
			Password: cfg.MindsDBPassword,
			Timeout:  cfg.EngineTimeout,
		}, log)
	}
}

func runServe() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	eng, err := openEngine(context.Background(), cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to connect to query engine")
		return fmt.Errorf("failed to connect to query engine: %w", err)
	}
	defer eng.Close()

	characterService, err := core.NewCharacterService(eng, cfg.Resources(), log)
	if err != nil {
		return err
	}

	apiHandler := api.NewAPIHandler(characterService, log)
	router := api.NewRouter(apiHandler, api.RouterOptions{AllowedOrigins: cfg.CORSAllowedOrigins}, log)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: engine calls are not bounded on the client side.
		IdleTimeout: 120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", serverAddr).Msg("Starting server. Press Ctrl+C to quit.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting gracefully")
	return nil
}

func runSeed(file string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if cfg.EngineDriver != config.DriverSQLite {
		return fmt.Errorf("seed requires ENGINE_DRIVER=%s", config.DriverSQLite)
	}

	s, err := store.NewSQLiteStore(cfg.SQLitePath, cfg.Resources(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer s.Close()

	log.Info().Str("file", file).Msg("Starting data ingestion")
	n, err := s.IngestFile(context.Background(), file)
	if err != nil {
		return fmt.Errorf("data ingestion failed: %w", err)
	}
	log.Info().Int("count", n).Msg("Data ingestion complete")
	return nil
}

func runHealth() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx := context.Background()
	var status core.HealthStatus
	eng, err := openEngine(ctx, cfg, log)
	if err != nil {
		status = core.HealthStatus{Status: "unhealthy", Error: err.Error()}
	} else {
		defer eng.Close()
		svc, err := core.NewCharacterService(eng, cfg.Resources(), log)
		if err != nil {
			return err
		}
		status = svc.HealthCheck(ctx)
	}

	if err := json.NewEncoder(os.Stdout).Encode(status); err != nil {
		return err
	}
	if !status.EngineConnected {
		return errors.New("engine unreachable")
	}
	return nil
}
