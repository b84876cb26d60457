// Package backtest wires the fractal detector, the simulator and the
// performance aggregator into one run and optionally stores the outcome.
package backtest

import (
	"context"
	"fmt"

	"market-tools-go/internal/config"
	"market-tools-go/internal/fractal"
	"market-tools-go/internal/models"
	"market-tools-go/internal/performance"
	"market-tools-go/internal/pricedata"
	"market-tools-go/internal/simulator"

	"go.uber.org/zap"
)

// Outcome is everything one run produced.
type Outcome struct {
	// RunID is empty unless the run was persisted.
	RunID   string
	Bars    int
	Sides   simulator.Sides
	Warmup  int
	Result  *simulator.Result
	Summary performance.Summary
}

// Runner executes the Williams fractal backtest.
type Runner struct {
	cfg    config.Simulator
	sides  simulator.Sides
	store  *Store
	logger *zap.Logger
}

// NewRunner creates a Runner. A nil store disables persistence.
func NewRunner(cfg *config.Simulator, store *Store, logger *zap.Logger) (*Runner, error) {
	sides, err := simulator.ParseSides(cfg.Sides)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: *cfg, sides: sides, store: store, logger: logger.Named("backtest")}, nil
}

// warmup returns the first fractal index allowed to trade. With the trend
// filter on, fractals before the slow EMA has settled are skipped.
func (r *Runner) warmup() int {
	if r.cfg.TrendFilter && r.cfg.Warmup < r.cfg.SlowEMA {
		return r.cfg.SlowEMA
	}
	return r.cfg.Warmup
}

// Run simulates bars and aggregates the closed trades.
func (r *Runner) Run(ctx context.Context, bars pricedata.Series) (*Outcome, error) {
	if err := pricedata.Validate(bars); err != nil {
		return nil, err
	}

	var filter simulator.TrendFilter
	if r.cfg.TrendFilter {
		bands, err := simulator.NewEMABands(bars, r.cfg.FastEMA, r.cfg.MidEMA, r.cfg.SlowEMA)
		if err != nil {
			return nil, fmt.Errorf("failed to compute trend filter: %w", err)
		}
		filter = bands
	}

	signals, err := fractal.Detect(bars, r.cfg.Neighborhood)
	if err != nil {
		return nil, err
	}

	sim, err := simulator.New(simulator.Config{
		Neighborhood:         r.cfg.Neighborhood,
		TargetRatio:          r.cfg.TargetRatio,
		Warmup:               r.warmup(),
		Sides:                r.sides,
		ExitOnOppositeSignal: r.cfg.ExitOnOppositeSignal,
	}, r.logger)
	if err != nil {
		return nil, err
	}

	result, err := sim.Run(bars, signals, filter)
	if err != nil {
		return nil, err
	}

	balance := r.cfg.StartingBalance
	if balance <= 0 {
		balance = performance.DefaultStartingBalance
	}
	out := &Outcome{
		Bars:    len(bars),
		Sides:   r.sides,
		Warmup:  r.warmup(),
		Result:  result,
		Summary: performance.AggregateFrom(result.Trades, balance),
	}
	r.logger.Info("Simulation finished",
		zap.Int("bars", out.Bars),
		zap.Int("trades", out.Summary.Trades),
		zap.Float64("win_rate", out.Summary.WinRate),
		zap.Float64("total_pnl", out.Summary.TotalPnL),
		zap.Bool("unclosed", result.Unclosed != nil),
	)

	if r.cfg.Persist && r.store != nil {
		run := r.newRun(out)
		if err := r.store.SaveRun(ctx, run); err != nil {
			return nil, err
		}
		out.RunID = run.RunID
		r.logger.Info("Saved backtest run", zap.String("run_id", run.RunID))
	}
	return out, nil
}

func (r *Runner) newRun(out *Outcome) *models.BacktestRun {
	s := out.Summary
	run := &models.BacktestRun{
		DataFile:       r.cfg.DataFile,
		Bars:           out.Bars,
		Neighborhood:   r.cfg.Neighborhood,
		TargetRatio:    r.cfg.TargetRatio,
		Sides:          out.Sides.String(),
		TrendFilter:    r.cfg.TrendFilter,
		Trades:         s.Trades,
		Wins:           s.Wins,
		Losses:         s.Losses,
		WinRate:        s.WinRate,
		TotalPnL:       s.TotalPnL,
		AveragePnL:     s.AveragePnL,
		EndPortfolio:   s.EndingBalance,
		PercentageGain: s.PercentageGain,
	}
	run.SimulatedTrades = make([]models.SimulatedTrade, 0, len(out.Result.Trades))
	for _, t := range out.Result.Trades {
		run.SimulatedTrades = append(run.SimulatedTrades, models.SimulatedTrade{
			Direction:  t.Direction.String(),
			EntryTime:  t.EntryTime,
			EntryPrice: t.EntryPrice,
			ExitTime:   t.ExitTime,
			ExitPrice:  t.ExitPrice,
			StopLoss:   t.StopLoss,
			TakeProfit: t.TakeProfit,
			ExitReason: string(t.ExitReason),
			Profit:     t.PnL,
		})
	}
	return run
}
