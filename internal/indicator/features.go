package indicator

import (
	"fmt"
	"math"
	"time"

	"market-tools-go/internal/pricedata"

	"github.com/montanaflynn/stats"
)

// Lags for one-minute bars.
const (
	BarsPerHour = 60
	BarsPerDay  = 60 * 24
	BarsPerWeek = 60 * 24 * 7
)

// PercentChange returns (v[i] - v[i-lag]) / v[i-lag]. The first lag
// positions are NaN.
func PercentChange(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if lag < 1 || i < lag {
			out[i] = math.NaN()
			continue
		}
		prev := values[i-lag]
		out[i] = (values[i] - prev) / prev
	}
	return out
}

// HourlyChange is the close-to-close change over the last hour of minute bars.
func HourlyChange(s pricedata.Series) []float64 { return PercentChange(s.Closes(), BarsPerHour) }

// DailyChange is the close-to-close change over the last 24 hours.
func DailyChange(s pricedata.Series) []float64 { return PercentChange(s.Closes(), BarsPerDay) }

// WeeklyChange is the close-to-close change over the last 7 days.
func WeeklyChange(s pricedata.Series) []float64 { return PercentChange(s.Closes(), BarsPerWeek) }

// DailyVolume returns, for each bar, the volume accumulated since the most
// recent bar stamped at UTC midnight. The midnight bar itself reads 0 and
// bars before the first midnight are NaN.
func DailyVolume(s pricedata.Series) []float64 {
	out := make([]float64, len(s))
	var cumulative float64
	offset := math.NaN()
	for i, b := range s {
		cumulative += b.Volume
		t := b.Time.UTC()
		if t.Hour() == 0 && t.Minute() == 0 {
			offset = cumulative
		}
		out[i] = cumulative - offset
	}
	return out
}

// RollingStd returns the sample standard deviation over a trailing window.
// Positions before the window fills are NaN.
func RollingStd(values []float64, window int) ([]float64, error) {
	if window < 1 {
		return nil, fmt.Errorf("rolling window must be at least 1, got %d", window)
	}
	out := make([]float64, len(values))
	for i := range values {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		sd, err := stats.StandardDeviationSample(stats.Float64Data(values[i-window+1 : i+1]))
		if err != nil {
			sd = math.NaN()
		}
		out[i] = sd
	}
	return out, nil
}

// Snapshot is the market context at the last bar of a series.
type Snapshot struct {
	Time       time.Time
	Close      float64
	Change1h   float64
	Change24h  float64
	Change7d   float64
	Volume24h  float64
	EMA        float64
	Std        float64
	WindowBars int
}

// TakeSnapshot summarizes the last bar of s using a window-bar EMA and
// standard deviation. Values that cannot be computed yet are NaN.
func TakeSnapshot(s pricedata.Series, window int) (Snapshot, error) {
	if len(s) == 0 {
		return Snapshot{}, pricedata.ErrEmptySeries
	}
	last := len(s) - 1
	closes := s.Closes()

	ema, err := EMA(closes, window)
	if err != nil {
		return Snapshot{}, err
	}
	// Only the tail matters for the last value.
	from := len(closes) - window
	if from < 0 {
		from = 0
	}
	std, err := RollingStd(closes[from:], window)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Time:       s[last].Time,
		Close:      s[last].Close,
		Change1h:   HourlyChange(s)[last],
		Change24h:  DailyChange(s)[last],
		Change7d:   WeeklyChange(s)[last],
		Volume24h:  DailyVolume(s)[last],
		EMA:        ema[last],
		Std:        std[len(std)-1],
		WindowBars: window,
	}, nil
}
