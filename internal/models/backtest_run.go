package models

import (
	"time"

	"gorm.io/gorm"
)

// BacktestRun is a persisted fractal simulation together with its summary.
type BacktestRun struct {
	gorm.Model
	RunID          string  `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	DataFile       string  `json:"data_file"`
	Bars           int     `json:"bars"`
	Neighborhood   int     `json:"neighborhood"`
	TargetRatio    float64 `json:"target_ratio"`
	Sides          string  `json:"sides"`
	TrendFilter    bool    `json:"trend_filter"`
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	TotalPnL       float64 `json:"total_pnl"`
	AveragePnL     float64 `json:"average_pnl"`
	EndPortfolio   float64 `json:"end_portfolio"`
	PercentageGain float64 `json:"percentage_gain"`

	SimulatedTrades []SimulatedTrade `gorm:"foreignKey:RunID;references:RunID" json:"trades,omitempty"`
}

// SimulatedTrade is one closed trade of a BacktestRun.
type SimulatedTrade struct {
	gorm.Model
	RunID      string    `gorm:"size:36;index;not null" json:"run_id"`
	Direction  string    `json:"direction"` // "LONG" or "SHORT"
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	ExitReason string    `json:"exit_reason"`
	Profit     float64   `json:"profit"`
}
