// Package tick implements the periodic scheduler (C4): a broadcast tick
// that advances every instrument and fans out one snapshot, and an expiry
// sweep that retires stale subscriptions. Each task is serial with itself;
// the two tasks run concurrently with each other.
package tick

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/epic1st/marketfeed/internal/dispatch"
	"github.com/epic1st/marketfeed/internal/metrics"
	"github.com/epic1st/marketfeed/internal/quote"
)

const timeLayout = "2006-01-02T15:04:05"

// Catalog is the subset of the instrument catalog the engine drives.
type Catalog interface {
	Snapshot() map[string]quote.Quote
	Mutate(symbol string, fn func(quote.Quote) quote.Quote) (quote.Quote, error)
	IsDisabled(symbol string) bool
}

// Simulator advances one quote per tick.
type Simulator interface {
	Next(q quote.Quote, rng *rand.Rand) quote.Quote
}

// Sweeper retires expired subscriptions, reporting how many it removed.
type Sweeper interface {
	SweepExpired() int
}

// Fanner hands a completed snapshot to the fan-out dispatcher.
type Fanner interface {
	Dispatch(snap dispatch.Snapshot)
}

// Engine drives the broadcast and sweep periodic tasks.
type Engine struct {
	catalog    Catalog
	simulator  Simulator
	sweeper    Sweeper
	dispatcher Fanner

	broadcastPeriod time.Duration
	sweepPeriod     time.Duration

	rng *rand.Rand
}

// Config configures the tick engine's periods.
type Config struct {
	BroadcastPeriod time.Duration
	SweepPeriod     time.Duration
}

// New creates an Engine. The initial delay of both periodic tasks equals
// their period (the first firing happens after one full interval).
func New(catalog Catalog, sim Simulator, sweeper Sweeper, dispatcher Fanner, cfg Config) *Engine {
	if cfg.BroadcastPeriod <= 0 {
		cfg.BroadcastPeriod = 5 * time.Second
	}
	if cfg.SweepPeriod <= 0 {
		cfg.SweepPeriod = 60 * time.Second
	}
	return &Engine{
		catalog:         catalog,
		simulator:       sim,
		sweeper:         sweeper,
		dispatcher:      dispatcher,
		broadcastPeriod: cfg.BroadcastPeriod,
		sweepPeriod:     cfg.SweepPeriod,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run starts both periodic tasks and blocks until ctx is cancelled. An
// in-flight tick or sweep always completes before Run returns.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		e.loop(ctx, e.broadcastPeriod, e.runBroadcastTick)
	}()

	go func() {
		defer wg.Done()
		e.loop(ctx, e.sweepPeriod, e.runSweep)
	}()

	wg.Wait()
}

// loop fires fn every period, serially with itself: a slow run delays the
// next firing rather than overlapping with it.
func (e *Engine) loop(ctx context.Context, period time.Duration, fn func()) {
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.runSafely(fn)
			timer.Reset(period)
		}
	}
}

// runSafely recovers a panicking task so the scheduler keeps firing
// subsequent ticks.
func (e *Engine) runSafely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Tick] recovered panic in periodic task: %v", r)
		}
	}()
	fn()
}

func (e *Engine) runBroadcastTick() {
	before := e.catalog.Snapshot()
	if len(before) == 0 {
		return
	}

	metrics.SetCatalogSize(len(before))

	timestamp := time.Now().Format(timeLayout)
	quotes := make(map[string]quote.Quote, len(before))

	for symbol := range before {
		if e.catalog.IsDisabled(symbol) {
			continue
		}
		next, err := e.catalog.Mutate(symbol, func(q quote.Quote) quote.Quote {
			return e.simulator.Next(q, e.rng)
		})
		if err != nil {
			log.Printf("[Tick] failed to advance %s: %v", symbol, err)
			continue
		}
		quotes[symbol] = next
	}

	e.dispatcher.Dispatch(dispatch.Snapshot{Quotes: quotes, Timestamp: timestamp})
	metrics.RecordTick()
}

func (e *Engine) runSweep() {
	e.sweeper.SweepExpired()
}
