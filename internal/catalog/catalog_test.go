package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/epic1st/marketfeed/internal/quote"
)

func writeSeed(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
	return path
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	path := writeSeed(t, `[
		{"id":1,"symbol":"aapl","name":"Apple","lastPrice":190.5,"bid":190.4,"ask":190.6,"volume":1000},
		{"id":2,"symbol":"","name":"Nothing"},
		"not even an object"
	]`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	q, ok := c.Get("aapl")
	if !ok {
		t.Fatal("Get(\"aapl\") missing entry")
	}
	if q.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want canonicalized AAPL", q.Symbol)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/seed.json"); err == nil {
		t.Fatal("expected error for missing seed file")
	}
}

func TestCanonicalizeTrimsAndUppercases(t *testing.T) {
	if got := Canonicalize(" aapl "); got != "AAPL" {
		t.Errorf("Canonicalize = %q, want AAPL", got)
	}
}

func TestGetByID(t *testing.T) {
	c, err := Load(writeSeed(t, `[{"id":7,"symbol":"MSFT","lastPrice":300}]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	q, ok := c.GetByID(7)
	if !ok || q.Symbol != "MSFT" {
		t.Fatalf("GetByID(7) = %+v, %v", q, ok)
	}
	if _, ok := c.GetByID(999); ok {
		t.Fatal("GetByID(999) should not be found")
	}
}

func TestMutateUnknownSymbol(t *testing.T) {
	c := New()
	if _, err := c.Mutate("NOPE", func(q quote.Quote) quote.Quote { return q }); err != ErrUnknownSymbol {
		t.Errorf("Mutate on unknown symbol = %v, want ErrUnknownSymbol", err)
	}
}

func TestSetDisabledExcludesFromSymbolsButNotGet(t *testing.T) {
	c, err := Load(writeSeed(t, `[{"id":1,"symbol":"AAPL","lastPrice":100},{"id":2,"symbol":"MSFT","lastPrice":200}]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.SetDisabled("AAPL", true)

	symbols := c.Symbols()
	for _, s := range symbols {
		if s == "AAPL" {
			t.Fatal("Symbols() should exclude disabled AAPL")
		}
	}
	if !c.IsDisabled("aapl") {
		t.Error("IsDisabled should canonicalize its argument")
	}
	if _, ok := c.Get("AAPL"); !ok {
		t.Error("Get should still answer for a disabled symbol")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c, err := Load(writeSeed(t, `[{"id":1,"symbol":"AAPL","lastPrice":100}]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := c.Snapshot()
	snap["AAPL"] = quote.Quote{Symbol: "AAPL", LastPrice: 999}

	q, _ := c.Get("AAPL")
	if q.LastPrice == 999 {
		t.Fatal("Snapshot should not alias internal state")
	}
}
