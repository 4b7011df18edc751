package shared

import (
	"fmt"
	"math"
	"time"
)

// Sentiment represents the candlestick sentiment.
type Sentiment int

const (
	Neutral Sentiment = iota
	Bullish
	Bearish
)

// Candlestick represents a unit OHLCV candlestick for a market. Candlesticks
// are immutable once stored.
type Candlestick struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Date   time.Time

	// Metadata fields.
	Market    string
	Timeframe Timeframe
}

// Validate asserts the candlestick describes a well formed price range.
func (c *Candlestick) Validate() error {
	if c.Low > math.Min(c.Open, c.Close) {
		return fmt.Errorf("candlestick low %f above body low %f at %s",
			c.Low, math.Min(c.Open, c.Close), c.Date.Format(DateLayout))
	}
	if c.High < math.Max(c.Open, c.Close) {
		return fmt.Errorf("candlestick high %f below body high %f at %s",
			c.High, math.Max(c.Open, c.Close), c.Date.Format(DateLayout))
	}
	if c.Volume < 0 {
		return fmt.Errorf("candlestick volume cannot be negative, got %f", c.Volume)
	}

	return nil
}

// FetchSentiment returns the provided candlestick's sentiment.
func (c *Candlestick) FetchSentiment() Sentiment {
	sentiment := c.Close - c.Open
	switch {
	case sentiment < 0:
		return Bearish
	case sentiment > 0:
		return Bullish
	default:
		return Neutral
	}
}
