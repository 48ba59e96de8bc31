package catalog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/epic1st/marketfeed/internal/quote"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadFromPostgres reads the seed instrument rows once at startup from an
// "instruments" table, as an alternative to the JSON seed file. This is a
// boot-time read, not a persistence layer for the live quote table: once
// loaded, the catalog is mutated only in memory by the Tick Engine, exactly
// as when seeded from a file.
func LoadFromPostgres(ctx context.Context, dsn string) (*Catalog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: connecting to postgres: %w", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `SELECT id, symbol, name, last_price, bid, ask, volume FROM instruments`)
	if err != nil {
		return nil, fmt.Errorf("catalog: querying instruments: %w", err)
	}
	defer rows.Close()

	c := New()
	loadedAt := time.Now()
	for rows.Next() {
		var q quote.Quote
		if err := rows.Scan(&q.ID, &q.Symbol, &q.Name, &q.LastPrice, &q.Bid, &q.Ask, &q.Volume); err != nil {
			log.Printf("[Catalog] skipping malformed instruments row: %v", err)
			continue
		}
		q.Symbol = Canonicalize(q.Symbol)
		q.Volume = quote.ClampVolume(q.Volume)
		q.Timestamp = loadedAt
		c.quotes[q.Symbol] = q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: reading instruments rows: %w", err)
	}

	log.Printf("[Catalog] loaded %d instruments from postgres", len(c.quotes))
	return c, nil
}
