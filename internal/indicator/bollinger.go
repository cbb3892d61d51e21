// Package indicator computes rolling technical indicators over bar series.
package indicator

import (
	"math"

	"bandtest/internal/domain"
)

// Bollinger computes Bollinger bands over the closing prices of bars using a
// trailing window of size window and a standard-deviation multiplier k. The
// standard deviation is the population one (divisor window). Bars before the
// first full window have HasBands=false.
func Bollinger(bars []domain.Bar, window int, k float64) ([]domain.BandedBar, error) {
	if window < 1 {
		return nil, domain.NewFieldError(domain.ErrInvalidParameters, "bollinger_period", window)
	}
	if !(k > 0) || math.IsInf(k, 0) {
		return nil, domain.NewFieldError(domain.ErrInvalidParameters, "bollinger_multiplier", k)
	}

	out := make([]domain.BandedBar, len(bars))
	for i, b := range bars {
		out[i] = domain.BandedBar{Bar: b}
		if i < window-1 {
			continue
		}
		mid, std := meanStd(bars[i-window+1 : i+1])
		out[i].Mid = mid
		out[i].Upper = mid + k*std
		out[i].Lower = mid - k*std
		out[i].HasBands = true
	}
	return out, nil
}

// meanStd returns the mean and population standard deviation of the closes.
func meanStd(window []domain.Bar) (mean, std float64) {
	n := float64(len(window))
	sum := 0.0
	for _, b := range window {
		sum += b.Close
	}
	mean = sum / n

	sq := 0.0
	for _, b := range window {
		d := b.Close - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}
