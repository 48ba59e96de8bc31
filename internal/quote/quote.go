// Package quote defines the instrument/quote value type shared by the
// catalog, simulator, tick engine and dispatcher.
package quote

import (
	"encoding/json"
	"math"
	"time"
)

// timeLayout is the wire format every outbound timestamp uses: ISO-8601
// local date-time, no timezone suffix. Matches the layout the tick engine
// and dispatcher stamp onto their envelopes.
const timeLayout = "2006-01-02T15:04:05"

// Quote is the point-in-time state of one tradable instrument.
type Quote struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	LastPrice float64   `json:"lastPrice"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// quoteAlias lets MarshalJSON/UnmarshalJSON reuse Quote's fields without
// recursing back into these same methods.
type quoteAlias Quote

// MarshalJSON renders Timestamp with the no-timezone-suffix wire layout
// instead of Go's default RFC3339Nano encoding.
func (q Quote) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		quoteAlias
		Timestamp string `json:"timestamp"`
	}{
		quoteAlias: quoteAlias(q),
		Timestamp:  q.Timestamp.Format(timeLayout),
	})
}

// UnmarshalJSON parses Timestamp with the same no-timezone-suffix layout.
func (q *Quote) UnmarshalJSON(data []byte) error {
	aux := struct {
		quoteAlias
		Timestamp string `json:"timestamp"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*q = Quote(aux.quoteAlias)
	if aux.Timestamp == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, aux.Timestamp)
	if err != nil {
		return err
	}
	q.Timestamp = t
	return nil
}

// minPositivePrice is the floor applied to a price that would otherwise
// collapse to zero or go negative under high simulated volatility.
const minPositivePrice = 0.01

// Spread returns ask - bid, or zero when either side is absent (zero).
func (q Quote) Spread() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0
	}
	return RoundHalfUp2(q.Ask - q.Bid)
}

// Mid returns (bid+ask)/2, falling back to LastPrice, then zero.
func (q Quote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return RoundHalfUp2((q.Bid + q.Ask) / 2)
	}
	if q.LastPrice > 0 {
		return RoundHalfUp2(q.LastPrice)
	}
	return 0
}

// ClampVolume ensures volume never goes negative.
func ClampVolume(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// ClampPrice floors a price at minPositivePrice so a high-volatility draw
// can never collapse a quote to zero or negative.
func ClampPrice(p float64) float64 {
	if p < minPositivePrice {
		return minPositivePrice
	}
	return p
}

// RoundHalfUp2 rounds f to 2 decimal places using half-up (round-half-away-
// from-zero) semantics, matching the rounding rule in the spec rather than
// Go's default round-half-to-even.
func RoundHalfUp2(f float64) float64 {
	return roundHalfUp(f, 2)
}

func roundHalfUp(f float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	// Snap away binary representation error first (1.005 is stored as
	// 1.00499999...), so a decimal half still rounds away from zero.
	scaled := math.Round(f*scale*1e6) / 1e6
	if scaled >= 0 {
		return math.Floor(scaled+0.5) / scale
	}
	return math.Ceil(scaled-0.5) / scale
}
