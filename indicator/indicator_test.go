package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rsowell/replay/shared"
)

// makeCandles builds an hourly candle series from the provided closes.
func makeCandles(closes []float64) []shared.Candlestick {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]shared.Candlestick, len(closes))
	for idx := range closes {
		candles[idx] = shared.Candlestick{
			Open:      closes[idx],
			High:      closes[idx] + 1,
			Low:       closes[idx] - 1,
			Close:     closes[idx],
			Volume:    1,
			Date:      start.Add(time.Hour * time.Duration(idx)),
			Timeframe: shared.OneHour,
		}
	}

	return candles
}

// risingCloses builds a strictly rising close series starting at the
// provided base.
func risingCloses(base float64, n int) []float64 {
	closes := make([]float64, n)
	for idx := range closes {
		closes[idx] = base + float64(idx)
	}

	return closes
}

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}

	// Ensure the sma of the last period closes is computed.
	sma, err := SMA(closes, 3)
	assert.NoError(t, err)
	assert.Equal(t, sma, 4.0)

	// Ensure the sma over the whole series is computed.
	sma, err = SMA(closes, 5)
	assert.NoError(t, err)
	assert.Equal(t, sma, 3.0)

	// Ensure a non-positive period is rejected.
	_, err = SMA(closes, 0)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConfig))

	// Ensure a series shorter than the period is rejected.
	_, err = SMA(closes, 6)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientData))
}

func TestEMA(t *testing.T) {
	// Ensure the ema of a constant series equals the constant.
	constant := []float64{7, 7, 7, 7, 7, 7}
	ema, err := EMA(constant, 3)
	assert.NoError(t, err)
	assert.Equal(t, ema, 7.0)

	// Ensure the ema is seeded with the simple average of the first period
	// closes and smoothed with 2/(period+1).
	closes := []float64{1, 2, 3, 4}
	ema, err = EMA(closes, 3)
	assert.NoError(t, err)

	// Seed is (1+2+3)/3 = 2, multiplier is 0.5, next is (4-2)*0.5 + 2 = 3.
	assert.Equal(t, ema, 3.0)

	// Ensure the ema leans closer to recent closes than the sma.
	rising := risingCloses(100, 30)
	ema, err = EMA(rising, 10)
	assert.NoError(t, err)
	sma, err := SMA(rising, 10)
	assert.NoError(t, err)
	assert.True(t, ema > sma)

	// Ensure a series shorter than the period is rejected.
	_, err = EMA([]float64{1, 2}, 3)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientData))
}

func TestRSI(t *testing.T) {
	// Ensure a monotonically rising series pins the rsi at 100.
	rising := makeCandles(risingCloses(100, 30))
	rsi, err := RSI(rising, DefaultRSIPeriod)
	assert.NoError(t, err)
	assert.Equal(t, rsi, 100.0)

	// Ensure a monotonically falling series pins the rsi at 0.
	falling := make([]float64, 30)
	for idx := range falling {
		falling[idx] = 130 - float64(idx)
	}
	rsi, err = RSI(makeCandles(falling), DefaultRSIPeriod)
	assert.NoError(t, err)
	assert.Equal(t, rsi, 0.0)

	// Ensure a flat series yields a neutral rsi.
	flat := make([]float64, 20)
	for idx := range flat {
		flat[idx] = 50
	}
	rsi, err = RSI(makeCandles(flat), DefaultRSIPeriod)
	assert.NoError(t, err)
	assert.Equal(t, rsi, 50.0)

	// Ensure a mixed series yields an rsi strictly inside (0, 100).
	mixed := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8,
		46.1, 45.9, 46.0, 45.6, 46.2, 46.2, 46.0}
	rsi, err = RSI(makeCandles(mixed), DefaultRSIPeriod)
	assert.NoError(t, err)
	assert.True(t, rsi > 0)
	assert.True(t, rsi < 100)

	// Ensure the rsi requires period+1 candles.
	_, err = RSI(makeCandles(risingCloses(100, DefaultRSIPeriod)), DefaultRSIPeriod)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientData))

	// Ensure a non-positive period is rejected.
	_, err = RSI(rising, 0)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConfig))
}

func TestMACD(t *testing.T) {
	// Ensure the macd of a constant series is zero across the board.
	constant := make([]float64, 50)
	for idx := range constant {
		constant[idx] = 25
	}
	line, signal, histogram, err := MACD(makeCandles(constant), DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
	assert.NoError(t, err)
	assert.Equal(t, line, 0.0)
	assert.Equal(t, signal, 0.0)
	assert.Equal(t, histogram, 0.0)

	// Ensure a rising series yields a positive macd line and the histogram
	// equals line minus signal.
	rising := makeCandles(risingCloses(100, 60))
	line, signal, histogram, err = MACD(rising, DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
	assert.NoError(t, err)
	assert.True(t, line > 0)
	assert.Equal(t, histogram, line-signal)

	// Ensure the macd requires slow+signal candles.
	short := makeCandles(risingCloses(100, DefaultMACDSlow+DefaultMACDSignal-1))
	_, _, _, err = MACD(short, DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientData))
}

func TestBollingerBands(t *testing.T) {
	// Ensure the bands of a constant series collapse onto the middle band.
	constant := make([]float64, 25)
	for idx := range constant {
		constant[idx] = 40
	}
	upper, middle, lower, err := BollingerBands(makeCandles(constant), DefaultBollingerPeriod, DefaultBollingerK)
	assert.NoError(t, err)
	assert.Equal(t, upper, 40.0)
	assert.Equal(t, middle, 40.0)
	assert.Equal(t, lower, 40.0)

	// Ensure the bands sit k population standard deviations either side of
	// the middle sma.
	closes := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	upper, middle, lower, err = BollingerBands(makeCandles(closes), len(closes), 2)
	assert.NoError(t, err)
	assert.Equal(t, middle, 5.0)
	assert.Equal(t, upper, 9.0)
	assert.Equal(t, lower, 1.0)

	// Ensure the bands are symmetric around the middle.
	assert.Equal(t, upper-middle, middle-lower)

	// Ensure a series shorter than the period is rejected.
	_, _, _, err = BollingerBands(makeCandles(closes), len(closes)+1, 2)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientData))
}

func TestCalculateAll(t *testing.T) {
	cfg := DefaultConfig()

	// Ensure a window covering every indicator produces a full snapshot.
	candles := makeCandles(risingCloses(100, 60))
	snapshot, err := CalculateAll(candles, cfg)
	assert.NoError(t, err)
	assert.Equal(t, snapshot.RSI, 100.0)
	assert.True(t, snapshot.MACDLine > 0)
	assert.True(t, snapshot.BBUpper > snapshot.BBMiddle)
	assert.True(t, snapshot.BBMiddle > snapshot.BBLower)
	assert.True(t, math.Abs(snapshot.MACDHistogram-(snapshot.MACDLine-snapshot.MACDSignal)) < 1e-12)

	// Ensure a window short of the slowest indicator short-circuits with an
	// insufficiency error.
	_, err = CalculateAll(makeCandles(risingCloses(100, 10)), cfg)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientData))

	// Ensure an invalid config is rejected before any computation.
	bad := DefaultConfig()
	bad.MACDFast = bad.MACDSlow
	_, err = CalculateAll(candles, bad)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConfig))
}

func TestDeterminism(t *testing.T) {
	// Ensure identical input windows yield bit-identical snapshots.
	candles := makeCandles([]float64{101.2, 100.8, 102.4, 103.1, 102.2, 101.7,
		103.9, 104.4, 103.2, 105.6, 106.1, 105.2, 107.3, 106.8, 108.2, 107.9,
		109.4, 108.8, 110.2, 111.7, 110.9, 112.3, 111.8, 113.4, 112.9, 114.1,
		113.6, 115.2, 114.8, 116.3, 115.7, 117.2, 116.8, 118.1, 117.6, 119.2,
		118.7, 120.3, 119.8, 121.4})

	first, err := CalculateAll(candles, DefaultConfig())
	assert.NoError(t, err)
	second, err := CalculateAll(candles, DefaultConfig())
	assert.NoError(t, err)

	assert.Equal(t, "", cmp.Diff(first, second))
}
