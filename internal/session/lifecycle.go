// Package session translates transport-level connect/disconnect/subscribe
// events into subscription Index mutations (C6).
package session

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/epic1st/marketfeed/internal/catalog"
)

// Replier is the subset of the dispatcher the lifecycle needs to answer
// subscription requests.
type Replier interface {
	SendSuccess(sessionID string, symbols []string)
	SendError(sessionID string, reason string)
}

// Index is the subset of the subscription Index the lifecycle mutates.
type Index interface {
	Subscribe(sessionID, userID string, symbols []string)
	AddSymbols(sessionID string, symbols []string)
	RemoveSymbols(sessionID string, symbols []string)
	Remove(sessionID string)
	Touch(sessionID string)
}

// Catalog is the subset of the instrument catalog the lifecycle consults.
type Catalog interface {
	Has(symbol string) bool
}

// SubscribeAction is the application-level payload sent to
// /app/market/subscribe.
type SubscribeAction struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
	UserID  string   `json:"userId,omitempty"`
}

const (
	actionSubscribe   = "subscribe"
	actionAdd         = "add"
	actionRemove      = "remove"
	actionUnsubscribe = "unsubscribe"
)

// Lifecycle implements C6: it owns no state of its own beyond references to
// the Catalog, Index, and Dispatcher it wires together.
type Lifecycle struct {
	catalog Catalog
	index   Index
	reply   Replier
}

// New creates a Lifecycle wired to catalog, index, and reply.
func New(catalog Catalog, index Index, reply Replier) *Lifecycle {
	return &Lifecycle{catalog: catalog, index: index, reply: reply}
}

// OnSubscribeTopic handles a client subscribing to a /topic/market/...
// destination: it only refreshes liveness. The client receives data on the
// next tick; no immediate snapshot is sent.
func (l *Lifecycle) OnSubscribeTopic(sessionID string) {
	l.index.Touch(sessionID)
}

// OnDisconnect handles a transport disconnect event. Errors are swallowed:
// Index.Remove is already idempotent and a no-op on an unknown session.
func (l *Lifecycle) OnDisconnect(sessionID string) {
	l.index.Remove(sessionID)
}

// OnSubscribeAction handles a raw JSON payload sent to
// /app/market/subscribe. Any unexpected failure surfaces as a generic
// sendError and never propagates.
func (l *Lifecycle) OnSubscribeAction(sessionID string, rawPayload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Session] recovered panic handling subscribe action for %s: %v", sessionID, r)
			l.reply.SendError(sessionID, "Internal error processing subscription request")
		}
	}()

	var action SubscribeAction
	if err := json.Unmarshal(rawPayload, &action); err != nil {
		l.reply.SendError(sessionID, "Invalid subscription request")
		return
	}

	l.handle(sessionID, action)
}

func (l *Lifecycle) handle(sessionID string, action SubscribeAction) {
	if len(action.Symbols) == 0 {
		l.reply.SendError(sessionID, "No symbols provided for subscription")
		return
	}

	filtered := make([]string, 0, len(action.Symbols))
	for _, raw := range action.Symbols {
		symbol := catalog.Canonicalize(raw)
		if !l.catalog.Has(symbol) {
			log.Printf("[Session] dropping unknown symbol %q requested by %s", symbol, sessionID)
			continue
		}
		filtered = append(filtered, symbol)
	}

	actionName := strings.ToLower(strings.TrimSpace(action.Action))
	if actionName == "" {
		actionName = actionSubscribe
	}

	// An explicitly empty request was already rejected above, so an empty
	// filtered set here means every requested symbol was unknown. For
	// "unsubscribe" that drops the whole subscription, and it is handled
	// before the generic "none available" error below.
	if actionName == actionUnsubscribe && len(filtered) == 0 {
		l.index.Remove(sessionID)
		l.reply.SendSuccess(sessionID, []string{"all"})
		return
	}

	if len(filtered) == 0 {
		l.reply.SendError(sessionID, "None of the requested symbols are available")
		return
	}

	switch actionName {
	case actionSubscribe:
		l.index.Subscribe(sessionID, action.UserID, filtered)
		l.reply.SendSuccess(sessionID, filtered)
	case actionAdd:
		l.index.AddSymbols(sessionID, filtered)
		l.reply.SendSuccess(sessionID, filtered)
	case actionRemove:
		l.index.RemoveSymbols(sessionID, filtered)
		l.reply.SendSuccess(sessionID, filtered)
	case actionUnsubscribe:
		l.index.RemoveSymbols(sessionID, filtered)
		l.reply.SendSuccess(sessionID, filtered)
	default:
		l.reply.SendError(sessionID, "Unknown action: "+action.Action)
	}
}
