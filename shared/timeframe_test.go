package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestTimeframe(t *testing.T) {
	// Ensure timeframes stringify as expected.
	timeframeStr := map[Timeframe]string{
		OneMinute:      "1m",
		FiveMinute:     "5m",
		FifteenMinute:  "15m",
		OneHour:        "1h",
		FourHour:       "4h",
		OneDay:         "1d",
		Timeframe(999): "unknown",
	}

	for timeframe, str := range timeframeStr {
		assert.Equal(t, timeframe.String(), str)
	}

	// Ensure timeframes report their bucket widths.
	timeframeDuration := map[Timeframe]time.Duration{
		OneMinute:      time.Minute,
		FiveMinute:     time.Minute * 5,
		FifteenMinute:  time.Minute * 15,
		OneHour:        time.Hour,
		FourHour:       time.Hour * 4,
		OneDay:         time.Hour * 24,
		Timeframe(999): 0,
	}

	for timeframe, duration := range timeframeDuration {
		assert.Equal(t, timeframe.Duration(), duration)
	}

	// Ensure known timeframe strings parse back to their timeframes.
	for timeframe, str := range timeframeStr {
		if str == "unknown" {
			continue
		}

		parsed, err := ParseTimeframe(str)
		assert.NoError(t, err)
		assert.Equal(t, parsed, timeframe)
	}

	// Ensure parsing an unknown timeframe string errors.
	_, err := ParseTimeframe("3w")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}
