package pricedata

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptySeries       = errors.New("price series is empty")
	ErrMissingColumn     = errors.New("required column missing")
	ErrInvalidBar        = errors.New("invalid price bar")
	ErrUnsupportedFormat = errors.New("unsupported price data format")
)

// Column names of the serialized price table.
const (
	ColumnTime   = "Time"
	ColumnOpen   = "Open"
	ColumnHigh   = "High"
	ColumnLow    = "Low"
	ColumnClose  = "Close"
	ColumnVolume = "Volume"
)

// RequiredColumns lists every column a price file must carry.
var RequiredColumns = []string{ColumnTime, ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume}

// Bar is one OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is a chronologically ordered run of bars.
type Series []Bar

// Closes returns the close prices in series order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the traded volumes in series order.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// Validate checks that the series is non-empty and strictly increasing in
// time. Every bar must hold finite positive prices with High >= Low and a
// non-negative volume.
func Validate(s Series) error {
	if len(s) == 0 {
		return ErrEmptySeries
	}
	for i, b := range s {
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: bar %d at %s has a non-finite value", ErrInvalidBar, i, b.Time.Format(time.RFC3339))
			}
		}
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
			if v <= 0 {
				return fmt.Errorf("%w: bar %d at %s has non-positive price %v", ErrInvalidBar, i, b.Time.Format(time.RFC3339), v)
			}
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: bar %d at %s has negative volume %v", ErrInvalidBar, i, b.Time.Format(time.RFC3339), b.Volume)
		}
		if b.High < b.Low {
			return fmt.Errorf("%w: bar %d at %s has high %v below low %v", ErrInvalidBar, i, b.Time.Format(time.RFC3339), b.High, b.Low)
		}
		if i > 0 && !b.Time.After(s[i-1].Time) {
			return fmt.Errorf("%w: bar %d at %s is not after the previous bar", ErrInvalidBar, i, b.Time.Format(time.RFC3339))
		}
	}
	return nil
}

// FromMillis converts a unix millisecond timestamp to UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
