package indicator

import (
	"math"
	"testing"
	"time"

	"market-tools-go/internal/pricedata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMA(t *testing.T) {
	// pandas: pd.Series([1, 2, 3, 4]).ewm(span=3).mean()
	got, err := EMA([]float64{1, 2, 3, 4}, 3)
	require.NoError(t, err)
	want := []float64{1.0, 1.6666666666666667, 2.4285714285714284, 3.2666666666666666}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "index %d", i)
	}

	flat, err := EMA([]float64{5, 5, 5}, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 5}, flat)

	_, err = EMA([]float64{1}, 0)
	assert.Error(t, err)
}

func TestPercentChange(t *testing.T) {
	got := PercentChange([]float64{100, 110, 121, 60.5}, 1)
	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 0.1, got[1], 1e-12)
	assert.InDelta(t, 0.1, got[2], 1e-12)
	assert.InDelta(t, -0.5, got[3], 1e-12)

	lagged := PercentChange([]float64{100, 110, 120}, 2)
	assert.True(t, math.IsNaN(lagged[1]))
	assert.InDelta(t, 0.2, lagged[2], 1e-12)
}

func TestDailyVolume(t *testing.T) {
	start := time.Date(2024, 3, 1, 23, 58, 0, 0, time.UTC)
	var s pricedata.Series
	for i := 0; i < 5; i++ {
		s = append(s, pricedata.Bar{Time: start.Add(time.Duration(i) * time.Minute), Volume: float64(i + 1)})
	}

	got := DailyVolume(s)
	// 23:58 and 23:59 precede the first midnight.
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	// 00:00 is the offset bar, then volume accumulates.
	assert.Equal(t, 0.0, got[2])
	assert.Equal(t, 4.0, got[3])
	assert.Equal(t, 9.0, got[4])
}

func TestRollingStd(t *testing.T) {
	got, err := RollingStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		assert.True(t, math.IsNaN(got[i]))
	}
	assert.InDelta(t, 2.138089935299395, got[7], 1e-12)

	_, err = RollingStd(nil, 0)
	assert.Error(t, err)
}

func TestTakeSnapshot(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var s pricedata.Series
	for i := 0; i < BarsPerHour+1; i++ {
		price := 100 + float64(i)
		s = append(s, pricedata.Bar{
			Time: start.Add(time.Duration(i) * time.Minute), Open: price, High: price, Low: price, Close: price, Volume: 1,
		})
	}

	snap, err := TakeSnapshot(s, 10)
	require.NoError(t, err)
	assert.Equal(t, 160.0, snap.Close)
	assert.InDelta(t, 0.6, snap.Change1h, 1e-12)
	assert.True(t, math.IsNaN(snap.Change24h))
	assert.Equal(t, 60.0, snap.Volume24h)
	assert.Less(t, snap.EMA, 160.0)
	assert.Greater(t, snap.Std, 0.0)

	_, err = TakeSnapshot(nil, 10)
	assert.ErrorIs(t, err, pricedata.ErrEmptySeries)
}
