package shared

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestCandlestickValidate(t *testing.T) {
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	// Ensure a well formed candlestick validates.
	candle := Candlestick{
		Open:      10,
		High:      12,
		Low:       9,
		Close:     11,
		Volume:    3,
		Date:      date,
		Timeframe: OneHour,
	}
	assert.NoError(t, candle.Validate())

	// Ensure a candlestick with its low above the body low is rejected.
	badLow := candle
	badLow.Low = 10.5
	assert.Error(t, badLow.Validate())

	// Ensure a candlestick with its high below the body high is rejected.
	badHigh := candle
	badHigh.High = 10.5
	assert.Error(t, badHigh.Validate())

	// Ensure a candlestick with negative volume is rejected.
	badVolume := candle
	badVolume.Volume = -1
	assert.Error(t, badVolume.Validate())
}

func TestCandlestickFetchSentiment(t *testing.T) {
	// Ensure a rising candle is bullish.
	bullish := Candlestick{Open: 10, High: 12, Low: 9, Close: 11}
	assert.Equal(t, bullish.FetchSentiment(), Bullish)

	// Ensure a falling candle is bearish.
	bearish := Candlestick{Open: 11, High: 12, Low: 9, Close: 10}
	assert.Equal(t, bearish.FetchSentiment(), Bearish)

	// Ensure a flat candle is neutral.
	neutral := Candlestick{Open: 10, High: 12, Low: 9, Close: 10}
	assert.Equal(t, neutral.FetchSentiment(), Neutral)
}
