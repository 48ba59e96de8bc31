// Package dispatch implements the fan-out dispatcher (C5): it turns one
// tick Snapshot into per-symbol and bulk deliveries, and also carries the
// subscription-reply envelopes invoked by the session lifecycle.
package dispatch

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/epic1st/marketfeed/internal/metrics"
	"github.com/epic1st/marketfeed/internal/quote"
	"github.com/epic1st/marketfeed/internal/transport"
)

const (
	destTopicPrefix  = "/topic/market/"
	destTopicAll     = "/topic/market/all"
	destSubscription = "/queue/subscription"

	typeMarketData       = "market_data"
	typeBulkMarketData   = "bulk_market_data"
	typeSubscribeSuccess = "subscription_success"
	typeSubscribeError   = "subscription_error"

	statusLive = "live"

	timeLayout = "2006-01-02T15:04:05"
)

// Snapshot is the immutable output of one tick: every instrument's quote at
// that instant, plus the single timestamp shared by every message derived
// from it.
type Snapshot struct {
	Quotes    map[string]quote.Quote
	Timestamp string
}

// MarketDataRecord is the wire shape of one instrument's quote.
type MarketDataRecord struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	LastPrice float64 `json:"lastPrice"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Spread    float64 `json:"spread"`
	Mid       float64 `json:"mid"`
	Volume    int64   `json:"volume"`
	Timestamp string  `json:"timestamp"`
	Status    string  `json:"status"`
}

// Envelope is the wire shape of every message this service sends over the
// transport, whether tick-originated or a synchronous subscription reply.
type Envelope struct {
	Type      string      `json:"type"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// SubscriberIndex is the subset of the subscription Index the dispatcher
// needs: which sessions currently want a given symbol.
type SubscriberIndex interface {
	SubscribersOf(symbol string) map[string]struct{}
}

// Dispatcher builds envelopes from a Snapshot and hands them to the
// Transport. It never enumerates sessions itself: the Transport is trusted
// to route a per-destination send to the subscribing sessions.
type Dispatcher struct {
	index     SubscriberIndex
	transport transport.Transport
}

// New creates a Dispatcher wired to the given subscriber index and
// transport.
func New(index SubscriberIndex, t transport.Transport) *Dispatcher {
	return &Dispatcher{index: index, transport: t}
}

func toRecord(q quote.Quote, tickTimestamp string) MarketDataRecord {
	return MarketDataRecord{
		Symbol:    q.Symbol,
		Name:      q.Name,
		LastPrice: q.LastPrice,
		Bid:       q.Bid,
		Ask:       q.Ask,
		Spread:    q.Spread(),
		Mid:       q.Mid(),
		Volume:    q.Volume,
		Timestamp: tickTimestamp,
		Status:    statusLive,
	}
}

// Dispatch fans a Snapshot out: one per-symbol envelope to every symbol
// that has at least one subscriber, and always one bulk envelope to the
// global topic. A delivery failure to one destination is logged and the
// remaining recipients still get their message; the tick is never aborted.
func (d *Dispatcher) Dispatch(snap Snapshot) {
	records := make(map[string]MarketDataRecord, len(snap.Quotes))
	for symbol, q := range snap.Quotes {
		records[symbol] = toRecord(q, snap.Timestamp)
	}

	for symbol, record := range records {
		subs := d.index.SubscribersOf(symbol)
		if len(subs) == 0 {
			continue
		}
		d.send("topic", destTopicPrefix+symbol, Envelope{
			Type:      typeMarketData,
			Data:      record,
			Timestamp: snap.Timestamp,
		})
	}

	d.send("bulk", destTopicAll, Envelope{
		Type:      typeBulkMarketData,
		Data:      records,
		Message:   fmt.Sprintf("Bulk market data update - %d symbols", len(records)),
		Timestamp: snap.Timestamp,
	})
}

// SendSuccess replies to sessionID with a subscription_success envelope.
func (d *Dispatcher) SendSuccess(sessionID string, symbols []string) {
	d.sendToSession(sessionID, destSubscription, Envelope{
		Type:      typeSubscribeSuccess,
		Message:   fmt.Sprintf("Subscribed to %d symbol(s)", len(symbols)),
		Data:      symbols,
		Timestamp: nowTimestamp(),
	})
}

// SendError replies to sessionID with a subscription_error envelope
// carrying reason as the message.
func (d *Dispatcher) SendError(sessionID string, reason string) {
	d.sendToSession(sessionID, destSubscription, Envelope{
		Type:      typeSubscribeError,
		Message:   reason,
		Timestamp: nowTimestamp(),
	})
}

func (d *Dispatcher) send(kind, destination string, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Dispatch] failed to marshal envelope for %s: %v", destination, err)
		return
	}
	if err := d.transport.Send(destination, payload); err != nil {
		log.Printf("[Dispatch] delivery to %s failed: %v", destination, err)
		return
	}
	metrics.RecordDelivery(kind)
}

func (d *Dispatcher) sendToSession(sessionID, destination string, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Dispatch] failed to marshal envelope for %s: %v", destination, err)
		return
	}
	if err := d.transport.SendToSession(sessionID, destination, payload); err != nil {
		log.Printf("[Dispatch] delivery to session %s (%s) failed: %v", sessionID, destination, err)
		return
	}
	metrics.RecordDelivery("session")
}

func nowTimestamp() string {
	return time.Now().Format(timeLayout)
}
