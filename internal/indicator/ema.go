package indicator

import "fmt"

// EMA returns the exponentially weighted moving average of values with
// the given span, weighted like pandas ewm(span=span, adjust=True).
// Every position gets a value; early ones average over fewer samples.
func EMA(values []float64, span int) ([]float64, error) {
	if span < 1 {
		return nil, fmt.Errorf("ema span must be at least 1, got %d", span)
	}
	alpha := 2.0 / (float64(span) + 1.0)
	decay := 1 - alpha

	out := make([]float64, len(values))
	var num, den float64
	for i, v := range values {
		num = v + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out, nil
}
