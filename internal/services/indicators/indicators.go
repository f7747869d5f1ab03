package indicators

import (
	"math"

	"marketpulse/internal/domain/market"
)

// Trend labels the moving-average alignment of a price series
type Trend string

const (
	TrendUp      Trend = "UPTREND"
	TrendDown    Trend = "DOWNTREND"
	TrendNeutral Trend = "NEUTRAL"
)

// MACD holds the convergence/divergence line, its signal line and histogram
type MACD struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Set is the full indicator panel derived from one price-history series.
// Stateless: recomputed per request.
type Set struct {
	RSI        float64 `json:"rsi"`
	MACD       MACD    `json:"macd"`
	MA20       float64 `json:"ma20"`
	MA50       float64 `json:"ma50"`
	MA200      float64 `json:"ma200"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
	Trend      Trend   `json:"trend"`
	Volatility float64 `json:"volatility"`
	Momentum   float64 `json:"momentum"`
}

const minClosesForFullSet = 20

// Compute derives the indicator panel from an ordered (oldest-first)
// price-history series. With fewer than 20 usable closes it returns a
// degraded neutral set instead of failing.
func Compute(history []market.PricePoint) Set {
	closes := make([]float64, 0, len(history))
	for _, p := range history {
		if p.Close > 0 {
			closes = append(closes, p.Close)
		}
	}

	if len(closes) == 0 {
		return Set{RSI: 50, Trend: TrendNeutral}
	}

	if len(closes) < minClosesForFullSet {
		last := closes[len(closes)-1]
		return Set{
			RSI:        50,
			MA20:       last,
			MA50:       last,
			MA200:      last,
			Support:    minOf(closes),
			Resistance: maxOf(closes),
			Trend:      TrendNeutral,
		}
	}

	ma20 := SMA(closes, 20)
	ma50 := SMA(closes, minInt(50, len(closes)))
	ma200 := SMA(closes, minInt(200, len(closes)))

	currentPrice := closes[len(closes)-1]
	trend := TrendNeutral
	if currentPrice > ma20 && ma20 > ma50 {
		trend = TrendUp
	} else if currentPrice < ma20 && ma20 < ma50 {
		trend = TrendDown
	}

	momentumBack := len(closes) - 5
	if momentumBack < 0 {
		momentumBack = 0
	}

	return Set{
		RSI:        RSI(closes, 14),
		MACD:       ComputeMACD(closes),
		MA20:       ma20,
		MA50:       ma50,
		MA200:      ma200,
		Support:    minOf(closes),
		Resistance: maxOf(closes),
		Trend:      trend,
		Volatility: Volatility(closes),
		Momentum:   currentPrice - closes[momentumBack],
	}
}

// SMA is the simple moving average over the trailing period.
// Shorter inputs average whatever is available.
func SMA(data []float64, period int) float64 {
	if len(data) == 0 {
		return 0
	}
	if len(data) < period {
		period = len(data)
	}
	subset := data[len(data)-period:]
	sum := 0.0
	for _, v := range subset {
		sum += v
	}
	return sum / float64(period)
}

// RSI computes a Wilder-style single-pass relative strength index over the
// first `period` deltas. A zero average loss yields 100, not a divide fault.
func RSI(data []float64, period int) float64 {
	if len(data) < period+1 {
		return 50
	}

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		delta := data[i] - data[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses += -delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	rs := math.Inf(1)
	if avgLoss != 0 {
		rs = avgGain / avgLoss
	}
	return 100 - (100 / (1 + rs))
}

// ComputeMACD computes EMA-12 minus EMA-26 with a 9-period EMA of the MACD
// series as the signal line
func ComputeMACD(data []float64) MACD {
	line := ema(data, 12) - ema(data, 26)

	macdSeries := make([]float64, len(data))
	for i := range data {
		macdSeries[i] = emaAt(data, i, 12) - emaAt(data, i, 26)
	}
	signal := emaAt(macdSeries, len(macdSeries)-1, 9)

	return MACD{
		Line:      line,
		Signal:    signal,
		Histogram: line - signal,
	}
}

// Volatility is the population standard deviation of the closes
func Volatility(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	variance := 0.0
	for _, v := range data {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(data))

	return math.Sqrt(variance)
}

// ema runs an exponential moving average over the whole series, seeded at
// the first value
func ema(data []float64, period int) float64 {
	if len(data) == 0 {
		return 0
	}
	k := 2.0 / (float64(period) + 1)
	result := data[0]
	for i := 1; i < len(data); i++ {
		result = data[i]*k + result*(1-k)
	}
	return result
}

// emaAt evaluates the EMA at a specific index, seeded with the SMA of the
// first period values once enough data exists
func emaAt(data []float64, index, period int) float64 {
	if index < period {
		sum := 0.0
		for i := 0; i <= index; i++ {
			sum += data[i]
		}
		return sum / float64(index+1)
	}

	k := 2.0 / (float64(period) + 1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += data[i]
	}
	result := seed / float64(period)

	for i := period; i <= index; i++ {
		result = data[i]*k + result*(1-k)
	}
	return result
}

func minOf(data []float64) float64 {
	m := data[0]
	for _, v := range data[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(data []float64) float64 {
	m := data[0]
	for _, v := range data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
