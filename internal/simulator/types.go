package simulator

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the side of a position.
type Direction int

const (
	Long Direction = iota + 1
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Sides selects which directions the simulator may trade.
type Sides int

const (
	SidesLong  Sides = 1 << iota
	SidesShort
	SidesBoth = SidesLong | SidesShort
)

// ParseSides parses "long", "short" or "both".
func ParseSides(s string) (Sides, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "long":
		return SidesLong, nil
	case "short":
		return SidesShort, nil
	case "both":
		return SidesBoth, nil
	default:
		return 0, fmt.Errorf("unknown sides %q, want long, short or both", s)
	}
}

// Allows reports whether d may be traded.
func (s Sides) Allows(d Direction) bool {
	switch d {
	case Long:
		return s&SidesLong != 0
	case Short:
		return s&SidesShort != 0
	}
	return false
}

func (s Sides) String() string {
	switch s {
	case SidesLong:
		return "long"
	case SidesShort:
		return "short"
	case SidesBoth:
		return "both"
	default:
		return fmt.Sprintf("Sides(%d)", int(s))
	}
}

// ExitReason records which condition closed a trade.
type ExitReason string

const (
	ExitStopLoss       ExitReason = "stop_loss"
	ExitTakeProfit     ExitReason = "take_profit"
	ExitOppositeSignal ExitReason = "opposite_signal"
)

// Trade is one simulated position. ExitIndex is -1 while it is open.
type Trade struct {
	Direction  Direction
	EntryIndex int
	EntryTime  time.Time
	EntryPrice float64
	ExitIndex  int
	ExitTime   time.Time
	ExitPrice  float64
	StopLoss   float64
	TakeProfit float64
	ExitReason ExitReason
	PnL        float64 // price units, positive when profitable for Direction
	PnLPercent float64 // PnL relative to EntryPrice
}

// Closed reports whether the trade has an exit.
func (t Trade) Closed() bool {
	return t.ExitIndex >= 0
}

// HoldingTime is the time between entry and exit bars.
func (t Trade) HoldingTime() time.Duration {
	if !t.Closed() {
		return 0
	}
	return t.ExitTime.Sub(t.EntryTime)
}

func (t *Trade) close(index int, at time.Time, price float64, reason ExitReason) {
	t.ExitIndex = index
	t.ExitTime = at
	t.ExitPrice = price
	t.ExitReason = reason
	if t.Direction == Long {
		t.PnL = price - t.EntryPrice
	} else {
		t.PnL = t.EntryPrice - price
	}
	t.PnLPercent = t.PnL / t.EntryPrice
}

// Result is the outcome of a simulation run.
type Result struct {
	Trades []Trade
	// Unclosed is the position still open on the last bar, if any. It is
	// not part of Trades and does not count towards performance.
	Unclosed *Trade
}
