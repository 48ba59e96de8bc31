package dispatch

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/epic1st/marketfeed/internal/quote"
)

type stubTransport struct {
	mu         sync.Mutex
	sent       map[string][]byte
	sessionMsg map[string][]byte
}

func newStubTransport() *stubTransport {
	return &stubTransport{sent: make(map[string][]byte), sessionMsg: make(map[string][]byte)}
}

func (s *stubTransport) Send(destination string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[destination] = payload
	return nil
}

func (s *stubTransport) SendToSession(sessionID, destination string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionMsg[sessionID] = payload
	return nil
}

type stubIndex struct {
	subscribers map[string]map[string]struct{}
}

func (s *stubIndex) SubscribersOf(symbol string) map[string]struct{} {
	return s.subscribers[symbol]
}

func TestDispatchOnlySendsSymbolsWithSubscribers(t *testing.T) {
	transport := newStubTransport()
	index := &stubIndex{subscribers: map[string]map[string]struct{}{
		"AAPL": {"sess1": {}},
	}}
	d := New(index, transport)

	d.Dispatch(Snapshot{
		Quotes: map[string]quote.Quote{
			"AAPL": {Symbol: "AAPL", LastPrice: 100, Bid: 99.9, Ask: 100.1},
			"MSFT": {Symbol: "MSFT", LastPrice: 200},
		},
		Timestamp: "2026-07-30T12:00:00",
	})

	if _, ok := transport.sent["/topic/market/AAPL"]; !ok {
		t.Error("expected a per-symbol send for AAPL, which has a subscriber")
	}
	if _, ok := transport.sent["/topic/market/MSFT"]; ok {
		t.Error("MSFT has no subscribers and should not get a per-symbol send")
	}
	if _, ok := transport.sent["/topic/market/all"]; !ok {
		t.Error("expected a bulk send to /topic/market/all regardless of subscribers")
	}
}

func TestDispatchTickCoherence(t *testing.T) {
	transport := newStubTransport()
	index := &stubIndex{subscribers: map[string]map[string]struct{}{
		"AAPL": {"sess1": {}},
	}}
	d := New(index, transport)

	const ts = "2026-07-30T12:00:00"
	d.Dispatch(Snapshot{
		Quotes:    map[string]quote.Quote{"AAPL": {Symbol: "AAPL", LastPrice: 100}},
		Timestamp: ts,
	})

	var perSymbol Envelope
	if err := json.Unmarshal(transport.sent["/topic/market/AAPL"], &perSymbol); err != nil {
		t.Fatalf("unmarshal per-symbol envelope: %v", err)
	}
	var bulk Envelope
	if err := json.Unmarshal(transport.sent["/topic/market/all"], &bulk); err != nil {
		t.Fatalf("unmarshal bulk envelope: %v", err)
	}
	if perSymbol.Timestamp != ts || bulk.Timestamp != ts {
		t.Error("every envelope derived from one tick must share its timestamp")
	}
}

func TestSendSuccessAndErrorRouteToSession(t *testing.T) {
	transport := newStubTransport()
	d := New(&stubIndex{subscribers: map[string]map[string]struct{}{}}, transport)

	d.SendSuccess("sess1", []string{"AAPL"})
	var success Envelope
	if err := json.Unmarshal(transport.sessionMsg["sess1"], &success); err != nil {
		t.Fatalf("unmarshal success envelope: %v", err)
	}
	if success.Type != typeSubscribeSuccess {
		t.Errorf("Type = %q, want %q", success.Type, typeSubscribeSuccess)
	}

	d.SendError("sess1", "boom")
	var failure Envelope
	if err := json.Unmarshal(transport.sessionMsg["sess1"], &failure); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if failure.Type != typeSubscribeError || failure.Message != "boom" {
		t.Errorf("got %+v, want type=%q message=boom", failure, typeSubscribeError)
	}
}
