package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is one scraped snapshot of a coin's market state.
// Rows are only ever appended; the poller never updates them.
type MarketData struct {
	ID                      uint            `gorm:"primaryKey" json:"id"`
	CoinID                  string          `gorm:"size:255;not null;index" json:"coin_id"`
	Name                    string          `gorm:"size:255;not null" json:"name"`
	Symbol                  string          `gorm:"size:255;not null" json:"symbol"`
	CurrentPrice            decimal.Decimal `gorm:"type:decimal(20,11);not null" json:"current_price"`
	MarketCap               decimal.Decimal `gorm:"type:decimal(25,11);not null" json:"market_cap"`
	VolumeOneDay            decimal.Decimal `gorm:"type:decimal(25,11);not null" json:"volume_one_day"`
	PercentageChangeOneHour decimal.Decimal `gorm:"type:decimal(20,11);not null" json:"percentage_change_one_hour"`
	PercentageChangeOneDay  decimal.Decimal `gorm:"type:decimal(20,11);not null" json:"percentage_change_one_day"`
	PercentageChangeOneWeek decimal.Decimal `gorm:"type:decimal(20,11);not null" json:"percentage_change_one_week"`
	Timestamp               time.Time       `gorm:"not null;autoCreateTime" json:"timestamp"`
}

// TableName keeps the table name used by the existing MySQL deployments.
func (MarketData) TableName() string {
	return "marketData"
}
