package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-tools-go/internal/backtest"
	"market-tools-go/internal/config"
	"market-tools-go/internal/database"
	"market-tools-go/internal/indicator"
	"market-tools-go/internal/logger"
	"market-tools-go/internal/pricedata"
	"market-tools-go/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// snapshotWindow is the EMA and deviation window of the market context table.
const snapshotWindow = 60

var rootCmd = &cobra.Command{
	Use:   "simulator [data-file]",
	Short: "Backtest the Williams fractal strategy on an OHLCV file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, _ := cmd.Flags().GetString("config")
		envFile, _ := cmd.Flags().GetString("env-file")

		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return fmt.Errorf("could not load config: %w", err)
		}
		if len(args) == 1 {
			cfg.Simulator.DataFile = args[0]
		}
		if cmd.Flags().Changed("export") {
			cfg.Simulator.ExportPath, _ = cmd.Flags().GetString("export")
		}
		if cmd.Flags().Changed("persist") {
			cfg.Simulator.Persist, _ = cmd.Flags().GetBool("persist")
		}
		if cmd.Flags().Changed("sides") {
			cfg.Simulator.Sides, _ = cmd.Flags().GetString("sides")
		}
		if cmd.Flags().Changed("trades") {
			showTrades, _ = cmd.Flags().GetBool("trades")
		}
		return run(&cfg)
	},
}

var showTrades bool

func init() {
	rootCmd.Flags().String("config", "./configs", "directory holding config.yml")
	rootCmd.Flags().String("env-file", ".env", "dotenv file loaded before the config")
	rootCmd.Flags().String("export", "", "write the closed trades to this CSV file")
	rootCmd.Flags().Bool("persist", false, "store the run and its trades in the database")
	rootCmd.Flags().String("sides", "long", "directions to trade: long, short or both")
	rootCmd.Flags().Bool("trades", false, "print every closed trade")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return fmt.Errorf("could not initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc := &cfg.Simulator
	bars, err := pricedata.Load(sc.DataFile)
	if err != nil {
		log.Error("Failed to load price data", zap.String("file", sc.DataFile), zap.Error(err))
		return err
	}
	log.Info("Loaded price data", zap.String("file", sc.DataFile), zap.Int("bars", len(bars)))

	var store *backtest.Store
	if sc.Persist {
		db, err := database.NewDatabase(&cfg.Database)
		if err != nil {
			log.Error("Failed to connect to database", zap.Error(err))
			return err
		}
		store = backtest.NewStore(db)
	}

	runner, err := backtest.NewRunner(sc, store, log)
	if err != nil {
		return err
	}
	out, err := runner.Run(ctx, bars)
	if err != nil {
		log.Error("Simulation failed", zap.Error(err))
		return err
	}

	var snap *indicator.Snapshot
	if s, err := indicator.TakeSnapshot(bars, snapshotWindow); err != nil {
		log.Warn("Could not compute market snapshot", zap.Error(err))
	} else {
		snap = &s
	}

	params := report.Params{
		DataFile:     sc.DataFile,
		Bars:         out.Bars,
		From:         bars[0].Time,
		To:           bars[len(bars)-1].Time,
		Neighborhood: sc.Neighborhood,
		TargetRatio:  sc.TargetRatio,
		Sides:        out.Sides.String(),
		TrendFilter:  sc.TrendFilter,
		Unclosed:     out.Result.Unclosed != nil,
	}
	if err := report.Write(os.Stdout, params, out.Summary, snap); err != nil {
		return err
	}
	if showTrades {
		if err := report.WriteTrades(os.Stdout, out.Result.Trades); err != nil {
			return err
		}
	}

	if sc.ExportPath != "" {
		if err := report.ExportTrades(sc.ExportPath, out.Result.Trades); err != nil {
			log.Error("Failed to export trades", zap.String("path", sc.ExportPath), zap.Error(err))
			return err
		}
		log.Info("Exported trades", zap.String("path", sc.ExportPath), zap.Int("trades", len(out.Result.Trades)))
	}
	if out.RunID != "" {
		fmt.Fprintf(os.Stdout, "Run ID: %s\n", out.RunID)
	}
	return nil
}
