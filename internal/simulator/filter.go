package simulator

import (
	"fmt"

	"market-tools-go/internal/indicator"
	"market-tools-go/internal/pricedata"
)

// TrendFilter confirms a fractal entry and places its stop-loss.
type TrendFilter interface {
	// Stop returns the stop-loss for a dir trade on the fractal at
	// fractalIdx (whose extreme is level) entered at confirmIdx, or false
	// when the trend disagrees.
	Stop(dir Direction, fractalIdx, confirmIdx int, level float64) (float64, bool)
}

// EMABands is the Williams fractal trend filter. Longs need the fast EMA
// above the mid above the slow, with the bullish fractal sitting in one of
// the two bands; the stop goes on the band's lower EMA. Shorts mirror it.
type EMABands struct {
	Fast []float64
	Mid  []float64
	Slow []float64
}

var _ TrendFilter = (*EMABands)(nil)

// NewEMABands computes the three close-price EMAs for bars.
func NewEMABands(bars pricedata.Series, fast, mid, slow int) (*EMABands, error) {
	if fast < 1 || fast >= mid || mid >= slow {
		return nil, fmt.Errorf("ema periods must satisfy 0 < fast < mid < slow, got %d/%d/%d", fast, mid, slow)
	}
	closes := bars.Closes()
	f, err := indicator.EMA(closes, fast)
	if err != nil {
		return nil, err
	}
	m, err := indicator.EMA(closes, mid)
	if err != nil {
		return nil, err
	}
	s, err := indicator.EMA(closes, slow)
	if err != nil {
		return nil, err
	}
	return &EMABands{Fast: f, Mid: m, Slow: s}, nil
}

// Stop implements TrendFilter.
func (b *EMABands) Stop(dir Direction, fractalIdx, confirmIdx int, level float64) (float64, bool) {
	n := len(b.Slow)
	if fractalIdx < 0 || confirmIdx >= n || len(b.Fast) != n || len(b.Mid) != n {
		return 0, false
	}
	fast, mid, slow := b.Fast[fractalIdx], b.Mid[fractalIdx], b.Slow[fractalIdx]

	switch dir {
	case Long:
		if !(fast > mid && mid > slow) {
			return 0, false
		}
		switch {
		case level <= fast && level > mid:
			return b.Mid[confirmIdx], true
		case level <= mid && level > slow:
			return b.Slow[confirmIdx], true
		}
	case Short:
		if !(fast < mid && mid < slow) {
			return 0, false
		}
		switch {
		case level >= fast && level < mid:
			return b.Mid[confirmIdx], true
		case level >= mid && level < slow:
			return b.Slow[confirmIdx], true
		}
	}
	return 0, false
}
