// Package simulator replays a price series against fractal signals and
// produces the trades a single-position strategy would have taken.
package simulator

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"market-tools-go/internal/fractal"
	"market-tools-go/internal/pricedata"

	"go.uber.org/zap"
)

// DefaultTargetRatio is the take-profit distance as a multiple of the
// stop distance.
const DefaultTargetRatio = 1.5

// Config holds the simulation parameters.
type Config struct {
	// Neighborhood is the fractal k; a fractal at i is known at bar i+k.
	Neighborhood int
	// TargetRatio sets take profit at entry ± |entry - stop| * TargetRatio.
	TargetRatio float64
	// Warmup is the first fractal index eligible for an entry.
	Warmup int
	Sides  Sides
	// ExitOnOppositeSignal closes a trade on the close of the bar that
	// confirms a fractal of the opposite kind.
	ExitOnOppositeSignal bool
}

// Simulator runs the two-state (flat / in trade) fractal strategy.
type Simulator struct {
	cfg    Config
	logger *zap.Logger
}

// New validates cfg and creates a Simulator.
func New(cfg Config, logger *zap.Logger) (*Simulator, error) {
	if cfg.Neighborhood < 1 {
		return nil, fmt.Errorf("%w: got %d", fractal.ErrInvalidNeighborhood, cfg.Neighborhood)
	}
	if cfg.TargetRatio <= 0 || math.IsNaN(cfg.TargetRatio) || math.IsInf(cfg.TargetRatio, 0) {
		return nil, fmt.Errorf("target ratio must be a positive number, got %v", cfg.TargetRatio)
	}
	if cfg.Warmup < 0 {
		return nil, fmt.Errorf("warmup must not be negative, got %d", cfg.Warmup)
	}
	if cfg.Sides&SidesBoth == 0 {
		return nil, errors.New("at least one side must be enabled")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{cfg: cfg, logger: logger.Named("simulator")}, nil
}

// Run walks bars in order. A nil filter accepts every fractal and puts the
// stop at the fractal's own extreme.
//
// On each bar of an open trade the exits are checked in a fixed order:
// stop-loss, then take-profit, then opposite signal. The first one that
// holds closes the trade and no new trade opens on that bar.
func (s *Simulator) Run(bars pricedata.Series, signals iter.Seq[fractal.Signal], filter TrendFilter) (*Result, error) {
	if len(bars) == 0 {
		return nil, pricedata.ErrEmptySeries
	}
	k := s.cfg.Neighborhood
	if len(bars) < 2*k+1 {
		return nil, fmt.Errorf("%w: need %d, have %d", fractal.ErrInsufficientBars, 2*k+1, len(bars))
	}
	if signals == nil {
		return nil, errors.New("fractal signal sequence is nil")
	}
	markers, err := fractal.Mark(signals, len(bars))
	if err != nil {
		return nil, err
	}

	result := &Result{}
	var open *Trade

	for c := range bars {
		if open != nil {
			if s.checkExit(open, bars, markers, c) {
				s.logger.Debug("Closed trade",
					zap.Stringer("direction", open.Direction),
					zap.Int("bar", c),
					zap.String("reason", string(open.ExitReason)),
					zap.Float64("exit_price", open.ExitPrice),
					zap.Float64("pnl", open.PnL),
				)
				result.Trades = append(result.Trades, *open)
				open = nil
			}
			continue
		}

		if t := s.tryEnter(bars, markers, c, filter); t != nil {
			s.logger.Debug("Opened trade",
				zap.Stringer("direction", t.Direction),
				zap.Int("bar", c),
				zap.Float64("entry_price", t.EntryPrice),
				zap.Float64("stop_loss", t.StopLoss),
				zap.Float64("take_profit", t.TakeProfit),
			)
			open = t
		}
	}

	if open != nil {
		s.logger.Info("Trade still open at end of data, excluded from results",
			zap.Stringer("direction", open.Direction),
			zap.Int("entry_bar", open.EntryIndex),
		)
		result.Unclosed = open
	}
	return result, nil
}

// tryEnter opens a trade at bar c on the fractal confirmed there, if any.
// Longs are tried before shorts.
func (s *Simulator) tryEnter(bars pricedata.Series, markers []fractal.Marker, c int, filter TrendFilter) *Trade {
	f := c - s.cfg.Neighborhood
	if f < 0 || f < s.cfg.Warmup {
		return nil
	}

	for _, dir := range [...]Direction{Long, Short} {
		if !s.cfg.Sides.Allows(dir) {
			continue
		}
		kind, level := fractal.Low, bars[f].Low
		if dir == Short {
			kind, level = fractal.High, bars[f].High
		}
		if !markers[f].Has(kind) {
			continue
		}

		stop := level
		if filter != nil {
			var ok bool
			if stop, ok = filter.Stop(dir, f, c, level); !ok {
				continue
			}
		}

		entry := bars[c].Close
		if (dir == Long && stop >= entry) || (dir == Short && stop <= entry) {
			s.logger.Debug("Skipping entry with stop on the wrong side of price",
				zap.Stringer("direction", dir),
				zap.Int("bar", c),
				zap.Float64("entry_price", entry),
				zap.Float64("stop_loss", stop),
			)
			continue
		}

		diff := math.Abs(entry - stop)
		target := entry + diff*s.cfg.TargetRatio
		if dir == Short {
			target = entry - diff*s.cfg.TargetRatio
		}
		return &Trade{
			Direction:  dir,
			EntryIndex: c,
			EntryTime:  bars[c].Time,
			EntryPrice: entry,
			ExitIndex:  -1,
			StopLoss:   stop,
			TakeProfit: target,
		}
	}
	return nil
}

// checkExit closes t at bar c when an exit condition holds. Stops and
// targets fill at their level, or at the open when the bar gapped past it.
func (s *Simulator) checkExit(t *Trade, bars pricedata.Series, markers []fractal.Marker, c int) bool {
	if c <= t.EntryIndex {
		return false
	}
	bar := bars[c]

	if t.Direction == Long {
		if bar.Low < t.StopLoss {
			t.close(c, bar.Time, math.Min(t.StopLoss, bar.Open), ExitStopLoss)
			return true
		}
		if bar.High >= t.TakeProfit {
			t.close(c, bar.Time, math.Max(t.TakeProfit, bar.Open), ExitTakeProfit)
			return true
		}
	} else {
		if bar.High > t.StopLoss {
			t.close(c, bar.Time, math.Max(t.StopLoss, bar.Open), ExitStopLoss)
			return true
		}
		if bar.Low <= t.TakeProfit {
			t.close(c, bar.Time, math.Min(t.TakeProfit, bar.Open), ExitTakeProfit)
			return true
		}
	}

	if s.cfg.ExitOnOppositeSignal {
		f := c - s.cfg.Neighborhood
		opposite := fractal.High
		if t.Direction == Short {
			opposite = fractal.Low
		}
		if f >= 0 && markers[f].Has(opposite) {
			t.close(c, bar.Time, bar.Close, ExitOppositeSignal)
			return true
		}
	}
	return false
}
