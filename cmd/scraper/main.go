package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-tools-go/internal/coingecko"
	"market-tools-go/internal/config"
	"market-tools-go/internal/database"
	"market-tools-go/internal/logger"
	"market-tools-go/internal/scraper"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "scraper",
	Short: "Poll CoinGecko market data into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, _ := cmd.Flags().GetString("config")
		envFile, _ := cmd.Flags().GetString("env-file")
		once, _ := cmd.Flags().GetBool("once")
		return run(configDir, envFile, once)
	},
}

func init() {
	rootCmd.Flags().String("config", "./configs", "directory holding config.yml")
	rootCmd.Flags().String("env-file", ".env", "dotenv file with the CoinGecko API key")
	rootCmd.Flags().Bool("once", false, "run a single collection cycle and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configDir, envFile string, once bool) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	// Load application configuration
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		return fmt.Errorf("could not load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return fmt.Errorf("could not initialize logger: %w", err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return err
	}
	log.Info("Database connection successful and schema migrated.", zap.String("driver", cfg.Database.Driver))

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	restClient := coingecko.NewRestClient(&cfg.CoinGecko, log)
	if err := restClient.Ping(ctx); err != nil {
		log.Error("Failed to connect to CoinGecko API", zap.Error(err))
		return err
	}
	log.Info("Successfully connected to CoinGecko API.")

	s := scraper.NewScraper(log, &cfg.Scraper, restClient, db)
	if once {
		rows, err := s.Collect(ctx)
		if err != nil {
			return err
		}
		log.Info("Saved market data", zap.Int("rows", s.Save(ctx, rows)))
		return nil
	}

	s.Run(ctx)
	log.Info("Scraper has been shut down.")
	return nil
}
