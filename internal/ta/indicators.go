// Package ta computes the technical indicators exposed on the intelligence
// endpoint. All functions are pure and tolerate short input series.
package ta

import "math"

// SMA returns the simple moving average of the last period values, or the
// average of everything when the series is shorter than period.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period > len(values) {
		period = len(values)
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMASeries returns the exponential moving average series for values.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMA returns the latest exponential moving average value.
func EMA(values []float64, period int) float64 {
	s := EMASeries(values, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// RSI returns the latest Wilder-smoothed relative strength index, or 50 when
// the series is too short to compute one.
func RSI(closes []float64, period int) float64 {
	if len(closes) <= period || period < 1 {
		return 50
	}
	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		avgGain = (avgGain*float64(period-1) + math.Max(delta, 0)) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + math.Max(-delta, 0)) / float64(period)
	}
	return rsiFromAvg(avgGain, avgLoss)
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Summary condenses a close series into the indicator set the intelligence
// endpoint serves.
type Summary struct {
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	SMA20     float64 `json:"sma_20"`
	EMA12     float64 `json:"ema_12"`
	EMA26     float64 `json:"ema_26"`
	RSI14     float64 `json:"rsi_14"`
	Trend     string  `json:"trend"`    // "bullish" | "bearish" | "neutral"
	Momentum  string  `json:"momentum"` // "overbought" | "oversold" | "neutral"
}

// Summarize computes the indicator summary over a close series.
func Summarize(closes []float64) Summary {
	s := Summary{Trend: "neutral", Momentum: "neutral"}
	if len(closes) == 0 {
		return s
	}
	s.Price = closes[len(closes)-1]
	if closes[0] != 0 {
		s.ChangePct = (s.Price - closes[0]) / closes[0] * 100
	}
	s.SMA20 = SMA(closes, 20)
	s.EMA12 = EMA(closes, 12)
	s.EMA26 = EMA(closes, 26)
	s.RSI14 = RSI(closes, 14)

	// Price above the 20-period average with the fast EMA over the slow one
	// reads as an uptrend; the mirror image as a downtrend.
	switch {
	case s.Price > s.SMA20 && s.EMA12 > s.EMA26:
		s.Trend = "bullish"
	case s.Price < s.SMA20 && s.EMA12 < s.EMA26:
		s.Trend = "bearish"
	}
	switch {
	case s.RSI14 >= 70:
		s.Momentum = "overbought"
	case s.RSI14 <= 30:
		s.Momentum = "oversold"
	}
	return s
}
