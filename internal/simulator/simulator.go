// Package simulator implements the pure per-tick price transform (C2).
package simulator

import (
	"math/rand"
	"time"

	"github.com/epic1st/marketfeed/internal/quote"
)

// defaultHalfSpreadBasis is the fixed 0.1% half-spread basis used to derive
// bid/ask from the simulated last price.
const defaultHalfSpreadBasis = 0.001

// Simulator advances one instrument's quote per tick. It is stateless aside
// from its configured volatility; the caller supplies the *rand.Rand, which
// is only ever touched from the tick goroutine and need not be thread-safe.
type Simulator struct {
	Volatility float64
}

// New returns a Simulator with the given volatility (the standard deviation
// of the simulated log-return). A volatility of 0 is valid: prices stay put
// but the timestamp still refreshes.
func New(volatility float64) *Simulator {
	return &Simulator{Volatility: volatility}
}

// Next draws the next quote for q using rng, per the algorithm in the spec:
// scale a standard-normal draw by volatility, apply it to lastPrice, derive
// bid/ask from a fixed half-spread basis, and random-walk volume.
func (s *Simulator) Next(q quote.Quote, rng *rand.Rand) quote.Quote {
	delta := rng.NormFloat64() * s.Volatility

	next := q
	next.LastPrice = quote.ClampPrice(quote.RoundHalfUp2(q.LastPrice * (1 + delta)))

	halfSpread := quote.RoundHalfUp2(next.LastPrice*defaultHalfSpreadBasis) / 2
	next.Bid = quote.RoundHalfUp2(next.LastPrice - halfSpread)
	next.Ask = quote.RoundHalfUp2(next.LastPrice + halfSpread)

	volumeDelta := int64(roundToNearest(rng.NormFloat64() * 1000))
	next.Volume = quote.ClampVolume(q.Volume + volumeDelta)

	next.Timestamp = time.Now()
	return next
}

func roundToNearest(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return float64(int64(f - 0.5))
}
