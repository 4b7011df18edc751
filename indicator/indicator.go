// Package indicator implements technical indicators as pure functions over
// ordered candlestick windows. All computations run in float64 with a fixed
// oldest-to-newest summation order so identical input yields identical output.
package indicator

import (
	"fmt"
	"math"

	"github.com/rsowell/replay/shared"
)

const (
	// DefaultRSIPeriod is the default lookback period for the RSI.
	DefaultRSIPeriod = 14
	// DefaultMACDFast is the default fast EMA period for the MACD.
	DefaultMACDFast = 12
	// DefaultMACDSlow is the default slow EMA period for the MACD.
	DefaultMACDSlow = 26
	// DefaultMACDSignal is the default signal EMA period for the MACD.
	DefaultMACDSignal = 9
	// DefaultBollingerPeriod is the default lookback period for bollinger bands.
	DefaultBollingerPeriod = 20
	// DefaultBollingerK is the default standard deviation multiplier for
	// bollinger bands.
	DefaultBollingerK = 2
)

// Snapshot represents the full set of indicator values computed for the
// newest candle of a window. Snapshots are ephemeral and recomputed per tick.
type Snapshot struct {
	RSI           float64
	SMA           float64
	EMA           float64
	MACDLine      float64
	MACDSignal    float64
	MACDHistogram float64
	BBUpper       float64
	BBMiddle      float64
	BBLower       float64
}

// Config represents the indicator computation parameters.
type Config struct {
	// RSIPeriod is the RSI lookback period.
	RSIPeriod int
	// MACDFast is the fast EMA period for the MACD.
	MACDFast int
	// MACDSlow is the slow EMA period for the MACD.
	MACDSlow int
	// MACDSignal is the signal EMA period for the MACD.
	MACDSignal int
	// BollingerPeriod is the bollinger bands lookback period.
	BollingerPeriod int
	// BollingerK is the bollinger bands standard deviation multiplier.
	BollingerK float64
	// MovingAveragePeriod is the SMA/EMA lookback period for the snapshot.
	MovingAveragePeriod int
}

// DefaultConfig returns the default indicator configuration.
func DefaultConfig() *Config {
	return &Config{
		RSIPeriod:           DefaultRSIPeriod,
		MACDFast:            DefaultMACDFast,
		MACDSlow:            DefaultMACDSlow,
		MACDSignal:          DefaultMACDSignal,
		BollingerPeriod:     DefaultBollingerPeriod,
		BollingerK:          DefaultBollingerK,
		MovingAveragePeriod: DefaultBollingerPeriod,
	}
}

// Validate asserts the config has sane inputs.
func (cfg *Config) Validate() error {
	if cfg.RSIPeriod <= 0 {
		return fmt.Errorf("%w: rsi period must be positive, got %d", shared.ErrConfig, cfg.RSIPeriod)
	}
	if cfg.MACDFast <= 0 || cfg.MACDSlow <= 0 || cfg.MACDSignal <= 0 {
		return fmt.Errorf("%w: macd periods must be positive, got (%d,%d,%d)",
			shared.ErrConfig, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	}
	if cfg.MACDFast >= cfg.MACDSlow {
		return fmt.Errorf("%w: macd fast period %d must be below slow period %d",
			shared.ErrConfig, cfg.MACDFast, cfg.MACDSlow)
	}
	if cfg.BollingerPeriod <= 0 {
		return fmt.Errorf("%w: bollinger period must be positive, got %d",
			shared.ErrConfig, cfg.BollingerPeriod)
	}
	if cfg.BollingerK <= 0 {
		return fmt.Errorf("%w: bollinger multiplier must be positive, got %f",
			shared.ErrConfig, cfg.BollingerK)
	}
	if cfg.MovingAveragePeriod <= 0 {
		return fmt.Errorf("%w: moving average period must be positive, got %d",
			shared.ErrConfig, cfg.MovingAveragePeriod)
	}

	return nil
}

// closes extracts the close series of the provided candles, oldest to newest.
func closes(candles []shared.Candlestick) []float64 {
	set := make([]float64, len(candles))
	for idx := range candles {
		set[idx] = candles[idx].Close
	}

	return set
}

// SMA computes the simple moving average of the last period entries of the
// provided close series.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("%w: sma period must be positive, got %d", shared.ErrConfig, period)
	}
	if len(closes) < period {
		return 0, fmt.Errorf("%w: sma requires %d closes, got %d",
			shared.ErrInsufficientData, period, len(closes))
	}

	var sum float64
	window := closes[len(closes)-period:]
	for idx := range window {
		sum += window[idx]
	}

	return sum / float64(period), nil
}

// emaSeries computes the exponential moving average series of the provided
// close series. The first value is seeded with the simple average of the
// first period closes, so the returned series has len(closes)-period+1
// entries aligned to closes[period-1:].
func emaSeries(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: ema period must be positive, got %d", shared.ErrConfig, period)
	}
	if len(closes) < period {
		return nil, fmt.Errorf("%w: ema requires %d closes, got %d",
			shared.ErrInsufficientData, period, len(closes))
	}

	var seed float64
	for idx := range closes[:period] {
		seed += closes[idx]
	}
	seed /= float64(period)

	multiplier := 2 / float64(period+1)
	series := make([]float64, 0, len(closes)-period+1)
	series = append(series, seed)

	prev := seed
	for idx := period; idx < len(closes); idx++ {
		next := (closes[idx]-prev)*multiplier + prev
		series = append(series, next)
		prev = next
	}

	return series, nil
}

// EMA computes the exponential moving average of the provided close series,
// seeded with the simple average of the first period closes.
func EMA(closes []float64, period int) (float64, error) {
	series, err := emaSeries(closes, period)
	if err != nil {
		return 0, err
	}

	return series[len(series)-1], nil
}

// RSI computes the relative strength index of the provided candles using
// Wilder's smoothing: a simple-average seed over the first period deltas,
// then an exponential factor of 1/period. Output is in [0, 100].
func RSI(candles []shared.Candlestick, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("%w: rsi period must be positive, got %d", shared.ErrConfig, period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("%w: rsi requires %d candles, got %d",
			shared.ErrInsufficientData, period+1, len(candles))
	}

	var avgGain, avgLoss float64
	for idx := 1; idx <= period; idx++ {
		delta := candles[idx].Close - candles[idx-1].Close
		switch {
		case delta > 0:
			avgGain += delta
		case delta < 0:
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for idx := period + 1; idx < len(candles); idx++ {
		delta := candles[idx].Close - candles[idx-1].Close

		var gain, loss float64
		switch {
		case delta > 0:
			gain = delta
		case delta < 0:
			loss = -delta
		}

		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	switch {
	case avgLoss == 0 && avgGain == 0:
		// A flat series carries no directional strength.
		return 50, nil
	case avgLoss == 0:
		return 100, nil
	default:
		rs := avgGain / avgLoss
		return 100 - 100/(1+rs), nil
	}
}

// MACD computes the moving average convergence divergence of the provided
// candles, returning the macd line, signal line and histogram for the newest
// candle.
func MACD(candles []shared.Candlestick, fast int, slow int, signal int) (float64, float64, float64, error) {
	if len(candles) < slow+signal {
		return 0, 0, 0, fmt.Errorf("%w: macd requires %d candles, got %d",
			shared.ErrInsufficientData, slow+signal, len(candles))
	}

	set := closes(candles)
	fastSeries, err := emaSeries(set, fast)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("macd fast ema: %w", err)
	}
	slowSeries, err := emaSeries(set, slow)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("macd slow ema: %w", err)
	}

	// The slow series starts slow-fast entries later than the fast series.
	// Align both to the slow series before differencing.
	offset := len(fastSeries) - len(slowSeries)
	line := make([]float64, len(slowSeries))
	for idx := range slowSeries {
		line[idx] = fastSeries[idx+offset] - slowSeries[idx]
	}

	signalSeries, err := emaSeries(line, signal)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("macd signal ema: %w", err)
	}

	macdLine := line[len(line)-1]
	signalLine := signalSeries[len(signalSeries)-1]

	return macdLine, signalLine, macdLine - signalLine, nil
}

// BollingerBands computes the bollinger bands of the provided candles,
// returning the upper, middle and lower bands for the newest candle. The
// bands sit k population standard deviations either side of the middle SMA.
func BollingerBands(candles []shared.Candlestick, period int, k float64) (float64, float64, float64, error) {
	if period <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: bollinger period must be positive, got %d",
			shared.ErrConfig, period)
	}
	if len(candles) < period {
		return 0, 0, 0, fmt.Errorf("%w: bollinger bands require %d candles, got %d",
			shared.ErrInsufficientData, period, len(candles))
	}

	set := closes(candles)
	middle, err := SMA(set, period)
	if err != nil {
		return 0, 0, 0, err
	}

	var variance float64
	window := set[len(set)-period:]
	for idx := range window {
		diff := window[idx] - middle
		variance += diff * diff
	}
	variance /= float64(period)

	stddev := math.Sqrt(variance)
	return middle + k*stddev, middle, middle - k*stddev, nil
}

// CalculateAll aggregates all indicators into one snapshot for the newest
// candle of the provided window, short-circuiting on the first indicator
// short of data.
func CalculateAll(candles []shared.Candlestick, cfg *Config) (*Snapshot, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	rsi, err := RSI(candles, cfg.RSIPeriod)
	if err != nil {
		return nil, err
	}

	set := closes(candles)
	sma, err := SMA(set, cfg.MovingAveragePeriod)
	if err != nil {
		return nil, err
	}

	ema, err := EMA(set, cfg.MovingAveragePeriod)
	if err != nil {
		return nil, err
	}

	macdLine, macdSignal, macdHistogram, err := MACD(candles, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	if err != nil {
		return nil, err
	}

	upper, middle, lower, err := BollingerBands(candles, cfg.BollingerPeriod, cfg.BollingerK)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		RSI:           rsi,
		SMA:           sma,
		EMA:           ema,
		MACDLine:      macdLine,
		MACDSignal:    macdSignal,
		MACDHistogram: macdHistogram,
		BBUpper:       upper,
		BBMiddle:      middle,
		BBLower:       lower,
	}

	return snapshot, nil
}
