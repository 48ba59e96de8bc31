// Package subscription implements the bidirectional session<->symbol
// mapping (C3): the Subscription Index.
package subscription

import (
	"strings"
	"sync"
	"time"

	"github.com/epic1st/marketfeed/internal/metrics"
)

// DefaultValidityWindow is the liveness window applied when New is given a
// zero duration. A Subscription whose lastActivity is exactly this old is
// invalid; the boundary is strict.
const DefaultValidityWindow = 5 * time.Minute

// Subscription is one session's interest set and liveness metadata.
type Subscription struct {
	SessionID    string
	UserID       string
	Symbols      map[string]struct{}
	CreatedAt    time.Time
	LastActivity time.Time
	Active       bool
}

// IsValid reports whether the subscription is active and was touched
// strictly within the last window, relative to now.
func (s *Subscription) IsValid(now time.Time, window time.Duration) bool {
	if !s.Active {
		return false
	}
	return now.Sub(s.LastActivity) < window
}

// SymbolSet returns a copy of the subscribed symbol set.
func (s *Subscription) SymbolSet() map[string]struct{} {
	out := make(map[string]struct{}, len(s.Symbols))
	for sym := range s.Symbols {
		out[sym] = struct{}{}
	}
	return out
}

// Mirror receives liveness events for optional out-of-process visibility.
// It must never be consulted for correctness: the Index's own maps are
// always authoritative.
type Mirror interface {
	Touch(sessionID string, expiresAt time.Time)
	Remove(sessionID string)
}

// Index owns bySession and bySymbol under a single mutex: cross-table
// updates for a given session must appear atomic to readers of either
// table, so a single lock (rather than per-symbol striping) backs both.
type Index struct {
	mu        sync.RWMutex
	bySession map[string]*Subscription
	bySymbol  map[string]map[string]struct{}
	mirror    Mirror
	window    time.Duration
}

// New creates an empty Index. A zero window falls back to
// DefaultValidityWindow.
func New(window time.Duration) *Index {
	if window <= 0 {
		window = DefaultValidityWindow
	}
	return &Index{
		bySession: make(map[string]*Subscription),
		bySymbol:  make(map[string]map[string]struct{}),
		window:    window,
	}
}

// SetMirror attaches an optional distributed-visibility mirror.
func (idx *Index) SetMirror(m Mirror) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.mirror = m
}

func canon(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func canonSet(symbols []string) map[string]struct{} {
	out := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		c := canon(s)
		if c == "" {
			continue
		}
		out[c] = struct{}{}
	}
	return out
}

// addReverse links session into bySymbol[sym] for every sym in set.
func (idx *Index) addReverse(sessionID string, set map[string]struct{}) {
	for sym := range set {
		if idx.bySymbol[sym] == nil {
			idx.bySymbol[sym] = make(map[string]struct{})
		}
		idx.bySymbol[sym][sessionID] = struct{}{}
	}
}

// removeReverse unlinks session from bySymbol[sym] for every sym in set.
func (idx *Index) removeReverse(sessionID string, set map[string]struct{}) {
	for sym := range set {
		sessions, ok := idx.bySymbol[sym]
		if !ok {
			continue
		}
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(idx.bySymbol, sym)
		}
	}
}

func (idx *Index) touchMirror(sessionID string, now time.Time) {
	if idx.mirror != nil {
		idx.mirror.Touch(sessionID, now.Add(idx.window))
	}
}

func (idx *Index) removeMirror(sessionID string) {
	if idx.mirror != nil {
		idx.mirror.Remove(sessionID)
	}
}

// Subscribe creates the subscription for sessionID if absent or inactive,
// otherwise replaces its symbol set wholesale. Empty symbols is a silent
// no-op.
func (idx *Index) Subscribe(sessionID, userID string, symbols []string) {
	set := canonSet(symbols)
	if len(set) == 0 {
		return
	}

	now := time.Now()
	idx.mu.Lock()
	defer idx.mu.Unlock()

	sub, exists := idx.bySession[sessionID]
	if !exists || !sub.Active {
		sub = &Subscription{
			SessionID:    sessionID,
			UserID:       userID,
			Symbols:      set,
			CreatedAt:    now,
			LastActivity: now,
			Active:       true,
		}
		idx.bySession[sessionID] = sub
		idx.addReverse(sessionID, set)
		idx.touchMirror(sessionID, now)
		return
	}

	idx.removeReverse(sessionID, sub.Symbols)
	sub.Symbols = set
	sub.UserID = userID
	sub.Active = true
	sub.LastActivity = now
	idx.addReverse(sessionID, set)
	idx.touchMirror(sessionID, now)
}

// AddSymbols unions symbols into an existing, active subscription. No-op if
// the session has no subscription or it is inactive.
func (idx *Index) AddSymbols(sessionID string, symbols []string) {
	set := canonSet(symbols)
	if len(set) == 0 {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	sub, ok := idx.bySession[sessionID]
	if !ok || !sub.Active {
		return
	}
	for sym := range set {
		sub.Symbols[sym] = struct{}{}
	}
	idx.addReverse(sessionID, set)
	sub.LastActivity = time.Now()
	idx.touchMirror(sessionID, sub.LastActivity)
}

// RemoveSymbols differences symbols out of an existing, active subscription.
func (idx *Index) RemoveSymbols(sessionID string, symbols []string) {
	set := canonSet(symbols)
	if len(set) == 0 {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	sub, ok := idx.bySession[sessionID]
	if !ok || !sub.Active {
		return
	}
	for sym := range set {
		delete(sub.Symbols, sym)
	}
	idx.removeReverse(sessionID, set)
	sub.LastActivity = time.Now()
	idx.touchMirror(sessionID, sub.LastActivity)
}

// Remove drops the subscription for sessionID entirely. Idempotent.
func (idx *Index) Remove(sessionID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	sub, ok := idx.bySession[sessionID]
	if !ok {
		return
	}
	idx.removeReverse(sessionID, sub.Symbols)
	delete(idx.bySession, sessionID)
	idx.removeMirror(sessionID)
}

// Deactivate marks the subscription inactive and removes the session from
// all reverse entries, but keeps the record so a rejoin creates a fresh one.
func (idx *Index) Deactivate(sessionID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	sub, ok := idx.bySession[sessionID]
	if !ok {
		return
	}
	idx.removeReverse(sessionID, sub.Symbols)
	sub.Active = false
	idx.removeMirror(sessionID)
}

// SubscribersOf returns an immutable snapshot of the sessions subscribed to
// symbol (empty set if none).
func (idx *Index) SubscribersOf(symbol string) map[string]struct{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sessions := idx.bySymbol[canon(symbol)]
	out := make(map[string]struct{}, len(sessions))
	for s := range sessions {
		out[s] = struct{}{}
	}
	return out
}

// Touch refreshes lastActivity for sessionID if it exists. No-op otherwise.
func (idx *Index) Touch(sessionID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	sub, ok := idx.bySession[sessionID]
	if !ok {
		return
	}
	sub.LastActivity = time.Now()
	idx.touchMirror(sessionID, sub.LastActivity)
}

// GetSubscription returns a copy of the subscription record for sessionID.
func (idx *Index) GetSubscription(sessionID string) (Subscription, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sub, ok := idx.bySession[sessionID]
	if !ok {
		return Subscription{}, false
	}
	return Subscription{
		SessionID:    sub.SessionID,
		UserID:       sub.UserID,
		Symbols:      sub.SymbolSet(),
		CreatedAt:    sub.CreatedAt,
		LastActivity: sub.LastActivity,
		Active:       sub.Active,
	}, true
}

// ActiveCount returns the number of currently valid subscriptions.
func (idx *Index) ActiveCount() int {
	now := time.Now()
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for _, sub := range idx.bySession {
		if sub.IsValid(now, idx.window) {
			n++
		}
	}
	return n
}

// SweepExpired removes every subscription that is no longer valid and
// returns the number removed. Runs from the Tick Engine's 60-second
// schedule.
func (idx *Index) SweepExpired() int {
	now := time.Now()

	idx.mu.Lock()
	removed := 0
	for sessionID, sub := range idx.bySession {
		if sub.IsValid(now, idx.window) {
			continue
		}
		idx.removeReverse(sessionID, sub.Symbols)
		delete(idx.bySession, sessionID)
		idx.removeMirror(sessionID)
		removed++
	}
	remaining := 0
	for _, sub := range idx.bySession {
		if sub.IsValid(now, idx.window) {
			remaining++
		}
	}
	idx.mu.Unlock()

	if removed > 0 {
		metrics.RecordSweepRemoval(removed)
	}
	metrics.SetActiveSubscriptions(remaining)
	return removed
}
