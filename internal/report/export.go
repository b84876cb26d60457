package report

import (
	"fmt"
	"os"
	"time"

	"market-tools-go/internal/simulator"

	"github.com/gocarina/gocsv"
)

type tradeRow struct {
	Direction  string  `csv:"direction"`
	EntryTime  string  `csv:"entry_time"`
	EntryPrice float64 `csv:"entry_price"`
	ExitTime   string  `csv:"exit_time"`
	ExitPrice  float64 `csv:"exit_price"`
	StopLoss   float64 `csv:"stop_loss"`
	TakeProfit float64 `csv:"take_profit"`
	ExitReason string  `csv:"exit_reason"`
	PnL        float64 `csv:"pnl"`
	PnLPercent float64 `csv:"pnl_percent"`
}

// ExportTrades writes the closed trades to a CSV file at path.
func ExportTrades(path string, trades []simulator.Trade) error {
	rows := make([]*tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, &tradeRow{
			Direction:  t.Direction.String(),
			EntryTime:  t.EntryTime.Format(time.RFC3339),
			EntryPrice: t.EntryPrice,
			ExitTime:   t.ExitTime.Format(time.RFC3339),
			ExitPrice:  t.ExitPrice,
			StopLoss:   t.StopLoss,
			TakeProfit: t.TakeProfit,
			ExitReason: string(t.ExitReason),
			PnL:        t.PnL,
			PnLPercent: t.PnLPercent,
		})
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write trades to %s: %w", path, err)
	}
	return nil
}
