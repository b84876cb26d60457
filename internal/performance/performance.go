package performance

import (
	"time"

	"market-tools-go/internal/simulator"

	"github.com/montanaflynn/stats"
)

// DefaultStartingBalance is the notional portfolio the compounding
// metrics start from.
const DefaultStartingBalance = 100.0

// Summary aggregates a run's closed trades. With no trades every rate and
// average is 0; check NoTrades before reading them.
type Summary struct {
	Trades     int
	Wins       int
	Losses     int
	WinRate    float64
	LossRate   float64
	TotalPnL   float64
	AveragePnL float64
	BestPnL    float64
	WorstPnL   float64

	// Compounding portfolio that commits its whole balance to every trade.
	StartingBalance    float64
	EndingBalance      float64
	PercentageGain     float64
	AveragePercentPnL  float64
	StdDevPercentPnL   float64
	AverageHoldingTime time.Duration
}

// NoTrades reports whether the summary covers zero closed trades.
func (s Summary) NoTrades() bool {
	return s.Trades == 0
}

// Aggregate summarizes trades against DefaultStartingBalance.
func Aggregate(trades []simulator.Trade) Summary {
	return AggregateFrom(trades, DefaultStartingBalance)
}

// AggregateFrom summarizes trades, compounding from startingBalance.
// A trade wins when its PnL is not negative, so break-even is a win.
func AggregateFrom(trades []simulator.Trade, startingBalance float64) Summary {
	s := Summary{
		StartingBalance: startingBalance,
		EndingBalance:   startingBalance,
	}
	if len(trades) == 0 {
		return s
	}

	pnls := make(stats.Float64Data, 0, len(trades))
	percents := make(stats.Float64Data, 0, len(trades))
	holds := make(stats.Float64Data, 0, len(trades))
	balance := startingBalance

	for _, t := range trades {
		s.Trades++
		if t.PnL >= 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		s.TotalPnL += t.PnL
		balance *= 1 + t.PnLPercent

		pnls = append(pnls, t.PnL)
		percents = append(percents, t.PnLPercent)
		holds = append(holds, float64(t.HoldingTime()))
	}

	s.WinRate = float64(s.Wins) / float64(s.Trades)
	s.LossRate = float64(s.Losses) / float64(s.Trades)
	s.AveragePnL = s.TotalPnL / float64(s.Trades)
	s.BestPnL, _ = pnls.Max()
	s.WorstPnL, _ = pnls.Min()

	s.EndingBalance = balance
	if startingBalance != 0 {
		s.PercentageGain = (balance - startingBalance) / startingBalance
	}
	s.AveragePercentPnL, _ = percents.Mean()
	s.StdDevPercentPnL, _ = percents.StandardDeviationPopulation()
	meanHold, _ := holds.Mean()
	s.AverageHoldingTime = time.Duration(meanHold)

	return s
}
