package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"market-tools-go/internal/indicator"
	"market-tools-go/internal/performance"
	"market-tools-go/internal/simulator"

	"github.com/olekukonko/tablewriter"
)

// NoTradesMessage is printed in place of the statistics of an empty run.
const NoTradesMessage = "no trades"

// Params describes the run being reported.
type Params struct {
	DataFile     string
	Bars         int
	From         time.Time
	To           time.Time
	Neighborhood int
	TargetRatio  float64
	Sides        string
	TrendFilter  bool
	Unclosed     bool
}

// Write renders the run parameters, market context and summary.
// snap may be nil.
func Write(w io.Writer, p Params, s performance.Summary, snap *indicator.Snapshot) error {
	display := &strings.Builder{}

	display.WriteString("Run:\n")
	params := newTable(display)
	params.Append([]string{"data file", p.DataFile})
	params.Append([]string{"bars", strconv.Itoa(p.Bars)})
	params.Append([]string{"period", fmt.Sprintf("%s - %s", p.From.Format(time.RFC3339), p.To.Format(time.RFC3339))})
	params.Append([]string{"fractal neighborhood", strconv.Itoa(p.Neighborhood)})
	params.Append([]string{"target ratio", formatFloat(p.TargetRatio, 2)})
	params.Append([]string{"sides", p.Sides})
	params.Append([]string{"trend filter", strconv.FormatBool(p.TrendFilter)})
	params.Render()

	if snap != nil {
		display.WriteString("\nMarket at last bar:\n")
		market := newTable(display)
		market.Append([]string{"time", snap.Time.Format(time.RFC3339)})
		market.Append([]string{"close", formatFloat(snap.Close, 2)})
		market.Append([]string{"1h change", formatPercent(snap.Change1h)})
		market.Append([]string{"24h change", formatPercent(snap.Change24h)})
		market.Append([]string{"7d change", formatPercent(snap.Change7d)})
		market.Append([]string{"24h volume", formatFloat(snap.Volume24h, 2)})
		market.Append([]string{fmt.Sprintf("ema(%d)", snap.WindowBars), formatFloat(snap.EMA, 2)})
		market.Append([]string{fmt.Sprintf("std(%d)", snap.WindowBars), formatFloat(snap.Std, 4)})
		market.Render()
	}

	display.WriteString("\nPerformance:\n")
	if s.NoTrades() {
		display.WriteString(NoTradesMessage + "\n")
	} else {
		perf := newTable(display)
		perf.Append([]string{"trades", strconv.Itoa(s.Trades)})
		perf.Append([]string{"wins", strconv.Itoa(s.Wins)})
		perf.Append([]string{"losses", strconv.Itoa(s.Losses)})
		perf.Append([]string{"win rate", formatPercent(s.WinRate)})
		perf.Append([]string{"loss rate", formatPercent(s.LossRate)})
		perf.Append([]string{"total pnl", formatFloat(s.TotalPnL, 4)})
		perf.Append([]string{"average pnl", formatFloat(s.AveragePnL, 4)})
		perf.Append([]string{"best / worst pnl", formatFloat(s.BestPnL, 4) + " / " + formatFloat(s.WorstPnL, 4)})
		perf.Append([]string{"portfolio", formatFloat(s.StartingBalance, 2) + " -> " + formatFloat(s.EndingBalance, 2)})
		perf.Append([]string{"portfolio gain", formatPercent(s.PercentageGain)})
		perf.Append([]string{"average % per trade", formatPercent(s.AveragePercentPnL)})
		perf.Append([]string{"average holding time", s.AverageHoldingTime.String()})
		perf.Render()
	}
	if p.Unclosed {
		display.WriteString("one trade was still open at the end of the data and is not counted\n")
	}

	_, err := io.WriteString(w, display.String())
	return err
}

// WriteTrades renders one row per closed trade.
func WriteTrades(w io.Writer, trades []simulator.Trade) error {
	display := &strings.Builder{}
	table := tablewriter.NewWriter(display)
	table.SetHeader([]string{"#", "side", "entry time", "entry", "exit time", "exit", "reason", "pnl"})
	table.SetAutoFormatHeaders(false)
	for i, t := range trades {
		table.Append([]string{
			strconv.Itoa(i + 1),
			t.Direction.String(),
			t.EntryTime.Format(time.RFC3339),
			formatFloat(t.EntryPrice, 4),
			t.ExitTime.Format(time.RFC3339),
			formatFloat(t.ExitPrice, 4),
			string(t.ExitReason),
			formatFloat(t.PnL, 4),
		})
	}
	table.Render()

	_, err := io.WriteString(w, display.String())
	return err
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnSeparator("")
	table.SetBorder(false)
	return table
}

func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
}
