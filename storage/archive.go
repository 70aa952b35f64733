// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package storage holds the durable stores: the SQL trade archive here
// and the KV checkpoint store in the kv subpackage.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/luxfi/dexwatch/trade"
)

// Archive is the long-term SQL record of normalized trades. It is
// write-behind: ingestion never depends on it, and only the trade list
// API reads it back.
type Archive struct {
	db     *sql.DB
	driver string
}

// NewArchive opens an archive. A postgres:// URL selects the Postgres
// driver, anything else is treated as a SQLite path.
func NewArchive(url string) (*Archive, error) {
	driver := "sqlite3"
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", driver, err)
	}

	if driver == "postgres" {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return &Archive{db: db, driver: driver}, nil
}

// Init pings the database and creates the trades table.
func (a *Archive) Init(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s ping: %w", a.driver, err)
	}

	query := `CREATE TABLE IF NOT EXISTS trades (
		txid TEXT NOT NULL,
		order_hash TEXT NOT NULL,
		block_number BIGINT NOT NULL,
		timestamp BIGINT NOT NULL,
		maker TEXT NOT NULL,
		taker TEXT NOT NULL,
		relay TEXT NOT NULL,
		maker_token TEXT NOT NULL,
		taker_token TEXT NOT NULL,
		maker_volume TEXT NOT NULL,
		taker_volume TEXT NOT NULL,
		maker_fee TEXT NOT NULL,
		taker_fee TEXT NOT NULL,
		maker_normalized BOOLEAN NOT NULL,
		taker_normalized BOOLEAN NOT NULL,
		PRIMARY KEY (txid, order_hash)
	)`
	if _, err := a.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table trades: %w", err)
	}

	idx := "CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades (timestamp)"
	if _, err := a.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// StoreTrade inserts one trade. Re-inserting the same (txid, order_hash)
// is a no-op so replays after a restart are safe.
func (a *Archive) StoreTrade(ctx context.Context, t *trade.Trade) error {
	query := `INSERT INTO trades (
		txid, order_hash, block_number, timestamp, maker, taker, relay,
		maker_token, taker_token, maker_volume, taker_volume, maker_fee,
		taker_fee, maker_normalized, taker_normalized
	) VALUES (` + a.placeholders(15) + `) ON CONFLICT (txid, order_hash) DO NOTHING`

	_, err := a.db.ExecContext(ctx, query,
		t.TxID, t.OrderHash, int64(t.BlockNumber), t.Timestamp,
		t.Maker, t.Taker, t.Relay, t.MakerToken, t.TakerToken,
		t.MakerVolume.RatString(), t.TakerVolume.RatString(),
		t.MakerFee.RatString(), t.TakerFee.RatString(),
		t.MakerNormalized, t.TakerNormalized,
	)
	if err != nil {
		return fmt.Errorf("store trade %s: %w", t.TxID, err)
	}
	return nil
}

// CountTrades returns the number of archived trades.
func (a *Archive) CountTrades(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trades").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return count, nil
}

// TradesSince returns archived trades at or after the timestamp, newest
// first, up to limit.
func (a *Archive) TradesSince(ctx context.Context, timestamp int64, limit int) ([]*trade.Trade, error) {
	query := `SELECT txid, order_hash, block_number, timestamp, maker, taker,
		relay, maker_token, taker_token, maker_volume, taker_volume,
		maker_fee, taker_fee, maker_normalized, taker_normalized
		FROM trades WHERE timestamp >= ` + a.placeholder(1) +
		` ORDER BY timestamp DESC LIMIT ` + a.placeholder(2)

	rows, err := a.db.QueryContext(ctx, query, timestamp, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []*trade.Trade
	for rows.Next() {
		var (
			t           trade.Trade
			blockNumber int64
			mv, tv, mf, tf string
		)
		if err := rows.Scan(&t.TxID, &t.OrderHash, &blockNumber, &t.Timestamp,
			&t.Maker, &t.Taker, &t.Relay, &t.MakerToken, &t.TakerToken,
			&mv, &tv, &mf, &tf, &t.MakerNormalized, &t.TakerNormalized); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.BlockNumber = uint64(blockNumber)
		if t.MakerVolume, err = scanRat(mv); err != nil {
			return nil, err
		}
		if t.TakerVolume, err = scanRat(tv); err != nil {
			return nil, err
		}
		if t.MakerFee, err = scanRat(mf); err != nil {
			return nil, err
		}
		if t.TakerFee, err = scanRat(tf); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

// Close closes the archive.
func (a *Archive) Close() error {
	return a.db.Close()
}

// placeholders builds "$1, $2, ..." or "?, ?, ..." depending on driver.
func (a *Archive) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = a.placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

func (a *Archive) placeholder(i int) string {
	if a.driver == "postgres" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func scanRat(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("bad rational %q in archive row", s)
	}
	return r, nil
}
