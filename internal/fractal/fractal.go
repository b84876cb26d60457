// Package fractal detects Williams fractals: bars whose high (or low) is a
// strict extreme of the k bars on either side.
package fractal

import (
	"errors"
	"fmt"
	"iter"

	"market-tools-go/internal/pricedata"
)

// DefaultNeighborhood is the classic five-bar fractal: two bars each side.
const DefaultNeighborhood = 2

var (
	ErrInvalidNeighborhood = errors.New("fractal neighborhood must be at least 1")
	ErrInsufficientBars    = errors.New("not enough bars for fractal detection")
)

// Kind tells a swing high from a swing low.
type Kind int

const (
	// High marks a bar whose high tops its neighbors (bearish fractal).
	High Kind = iota + 1
	// Low marks a bar whose low undercuts its neighbors (bullish fractal).
	Low
)

func (k Kind) String() string {
	switch k {
	case High:
		return "high"
	case Low:
		return "low"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Opposite returns the other kind.
func (k Kind) Opposite() Kind {
	if k == High {
		return Low
	}
	return High
}

// Signal is a fractal found at bar Index.
type Signal struct {
	Index int
	Kind  Kind
}

// Detect returns a lazy sequence of the fractals in bars for a neighborhood
// of k bars on each side. Signals come in index order; a bar that is both a
// swing high and a swing low yields High before Low. Bars within k of either
// end are never reported.
func Detect(bars []pricedata.Bar, k int) (iter.Seq[Signal], error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidNeighborhood, k)
	}
	if len(bars) < 2*k+1 {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientBars, 2*k+1, len(bars))
	}

	return func(yield func(Signal) bool) {
		for i := k; i < len(bars)-k; i++ {
			if isHigh(bars, i, k) && !yield(Signal{Index: i, Kind: High}) {
				return
			}
			if isLow(bars, i, k) && !yield(Signal{Index: i, Kind: Low}) {
				return
			}
		}
	}, nil
}

func isHigh(bars []pricedata.Bar, i, k int) bool {
	h := bars[i].High
	for j := i - k; j <= i+k; j++ {
		if j != i && bars[j].High >= h {
			return false
		}
	}
	return true
}

func isLow(bars []pricedata.Bar, i, k int) bool {
	l := bars[i].Low
	for j := i - k; j <= i+k; j++ {
		if j != i && bars[j].Low <= l {
			return false
		}
	}
	return true
}

// Marker holds the fractal flags of one bar.
type Marker struct {
	High bool
	Low  bool
}

// Has reports whether the marker carries the given kind.
func (m Marker) Has(kind Kind) bool {
	switch kind {
	case High:
		return m.High
	case Low:
		return m.Low
	}
	return false
}

// Mark collects a signal sequence into per-bar flags for n bars.
func Mark(signals iter.Seq[Signal], n int) ([]Marker, error) {
	markers := make([]Marker, n)
	for s := range signals {
		if s.Index < 0 || s.Index >= n {
			return nil, fmt.Errorf("fractal signal index %d out of range [0, %d)", s.Index, n)
		}
		switch s.Kind {
		case High:
			markers[s.Index].High = true
		case Low:
			markers[s.Index].Low = true
		default:
			return nil, fmt.Errorf("fractal signal at %d has unknown kind %v", s.Index, s.Kind)
		}
	}
	return markers, nil
}
