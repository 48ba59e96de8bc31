package subscription

import (
	"testing"
	"time"
)

func TestSubscribeCreatesAndQueries(t *testing.T) {
	idx := New(0)
	idx.Subscribe("sess1", "user1", []string{"aapl", "msft"})

	subs := idx.SubscribersOf("AAPL")
	if _, ok := subs["sess1"]; !ok {
		t.Fatal("sess1 should be subscribed to AAPL")
	}
	subs = idx.SubscribersOf("MSFT")
	if _, ok := subs["sess1"]; !ok {
		t.Fatal("sess1 should be subscribed to MSFT")
	}
}

func TestSubscribeEmptyIsNoOp(t *testing.T) {
	idx := New(0)
	idx.Subscribe("sess1", "user1", nil)
	if _, ok := idx.GetSubscription("sess1"); ok {
		t.Fatal("subscribing with no symbols should not create a record")
	}
}

func TestSubscribeReplacesWholesale(t *testing.T) {
	idx := New(0)
	idx.Subscribe("sess1", "user1", []string{"AAPL"})
	idx.Subscribe("sess1", "user1", []string{"MSFT"})

	if subs := idx.SubscribersOf("AAPL"); len(subs) != 0 {
		t.Error("AAPL subscribers should be empty after wholesale replace")
	}
	if subs := idx.SubscribersOf("MSFT"); len(subs) != 1 {
		t.Error("MSFT should have one subscriber after wholesale replace")
	}
}

func TestAddRemoveSymbols(t *testing.T) {
	idx := New(0)
	idx.Subscribe("sess1", "user1", []string{"AAPL"})
	idx.AddSymbols("sess1", []string{"MSFT"})

	sub, _ := idx.GetSubscription("sess1")
	if len(sub.Symbols) != 2 {
		t.Fatalf("expected 2 symbols after add, got %d", len(sub.Symbols))
	}

	idx.RemoveSymbols("sess1", []string{"AAPL"})
	sub, _ = idx.GetSubscription("sess1")
	if len(sub.Symbols) != 1 {
		t.Fatalf("expected 1 symbol after remove, got %d", len(sub.Symbols))
	}
	if subs := idx.SubscribersOf("AAPL"); len(subs) != 0 {
		t.Error("AAPL reverse index should be cleared after remove")
	}
}

func TestAddSymbolsNoOpOnUnknownSession(t *testing.T) {
	idx := New(0)
	idx.AddSymbols("ghost", []string{"AAPL"})
	if subs := idx.SubscribersOf("AAPL"); len(subs) != 0 {
		t.Error("AddSymbols on an unknown session should not create reverse entries")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	idx := New(0)
	idx.Remove("ghost")
	idx.Subscribe("sess1", "user1", []string{"AAPL"})
	idx.Remove("sess1")
	idx.Remove("sess1")
	if _, ok := idx.GetSubscription("sess1"); ok {
		t.Fatal("session should be gone after Remove")
	}
}

func TestIsValidStrictBoundary(t *testing.T) {
	now := time.Now()
	sub := &Subscription{Active: true, LastActivity: now.Add(-DefaultValidityWindow)}
	if sub.IsValid(now, DefaultValidityWindow) {
		t.Error("exactly DefaultValidityWindow old should be invalid (strict boundary)")
	}
	sub2 := &Subscription{Active: true, LastActivity: now.Add(-DefaultValidityWindow + time.Second)}
	if !sub2.IsValid(now, DefaultValidityWindow) {
		t.Error("just under DefaultValidityWindow old should still be valid")
	}
}

func TestSweepExpiredRemovesStaleOnly(t *testing.T) {
	idx := New(0)
	idx.Subscribe("stale", "u1", []string{"AAPL"})
	idx.Subscribe("fresh", "u2", []string{"MSFT"})

	idx.mu.Lock()
	idx.bySession["stale"].LastActivity = time.Now().Add(-DefaultValidityWindow - time.Minute)
	idx.mu.Unlock()

	removed := idx.SweepExpired()
	if removed != 1 {
		t.Fatalf("SweepExpired() = %d, want 1", removed)
	}
	if _, ok := idx.GetSubscription("stale"); ok {
		t.Error("stale session should have been removed")
	}
	if _, ok := idx.GetSubscription("fresh"); !ok {
		t.Error("fresh session should still be present")
	}
}

func TestDeactivateKeepsRecordClearsReverse(t *testing.T) {
	idx := New(0)
	idx.Subscribe("sess1", "u1", []string{"AAPL"})
	idx.Deactivate("sess1")

	if subs := idx.SubscribersOf("AAPL"); len(subs) != 0 {
		t.Error("Deactivate should clear reverse entries")
	}
	sub, ok := idx.GetSubscription("sess1")
	if !ok {
		t.Fatal("Deactivate should keep the session record")
	}
	if sub.Active {
		t.Error("Deactivate should mark the subscription inactive")
	}
}
