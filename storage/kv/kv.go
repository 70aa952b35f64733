// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package kv is the persistent checkpoint store, built on
// github.com/luxfi/database. It holds normalized trades and the backfill
// cursor so a restart can rebuild the ledger and dedup set without
// refetching the whole window.
package kv

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/prefixdb"

	"github.com/luxfi/dexwatch/trade"
)

// Prefixes for the data types in the store.
var (
	PrefixTrades = []byte("trd:")
	PrefixMeta   = []byte("meta:")
)

var keyBackfillCursor = []byte("backfill_cursor")

// Store wraps a luxfi/database.Database partitioned by prefix.
type Store struct {
	db    database.Database
	owned bool

	trades database.Database
	meta   database.Database

	mu     sync.RWMutex
	closed bool
}

// New opens a file-backed store at path.
func New(path string) (*Store, error) {
	db, err := badgerdb.New(path, nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open badgerdb: %w", err)
	}
	return wrap(db, true), nil
}

// NewMemory creates an in-memory store (for testing and diskless runs).
func NewMemory() *Store {
	return wrap(memdb.New(), true)
}

func wrap(db database.Database, owned bool) *Store {
	return &Store{
		db:     db,
		owned:  owned,
		trades: prefixdb.New(PrefixTrades, db),
		meta:   prefixdb.New(PrefixMeta, db),
	}
}

// PutTrade persists a normalized trade. Keys order by timestamp so
// replay feeds the ledger oldest first.
func (s *Store) PutTrade(t *trade.Trade) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return database.ErrClosed
	}

	value, err := json.Marshal(encodeTrade(t))
	if err != nil {
		return fmt.Errorf("encode trade %s: %w", t.TxID, err)
	}
	return s.trades.Put(TradeKey(t), value)
}

// EachTrade visits persisted trades in ascending timestamp order until fn
// returns false.
func (s *Store) EachTrade(fn func(t *trade.Trade) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return database.ErrClosed
	}

	it := s.trades.NewIterator()
	defer it.Release()
	for it.Next() {
		var rec tradeRecord
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			return fmt.Errorf("decode trade record: %w", err)
		}
		t, err := rec.decode()
		if err != nil {
			return err
		}
		if !fn(t) {
			break
		}
	}
	return it.Error()
}

// SetBackfillCursor records the oldest block backfill has covered.
func (s *Store) SetBackfillCursor(block uint64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return database.ErrClosed
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, block)
	return s.meta.Put(keyBackfillCursor, buf)
}

// BackfillCursor returns the persisted cursor, or ok=false when none.
func (s *Store) BackfillCursor() (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, database.ErrClosed
	}

	buf, err := s.meta.Get(keyBackfillCursor)
	if err == database.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(buf) < 8 {
		return 0, false, fmt.Errorf("cursor value too short: %d", len(buf))
	}
	return binary.BigEndian.Uint64(buf), true, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// TradeKey builds the trade's storage key: big-endian timestamp followed
// by the dedup identifiers.
func TradeKey(t *trade.Trade) []byte {
	key := make([]byte, 8, 8+len(t.TxID)+len(t.OrderHash))
	binary.BigEndian.PutUint64(key, uint64(t.Timestamp))
	key = append(key, t.TxID...)
	key = append(key, t.OrderHash...)
	return key
}

// tradeRecord is the stored form of a Trade. Rationals serialize as
// "numerator/denominator" strings; price fields are empty when unknown.
type tradeRecord struct {
	TxID        string `json:"txid"`
	OrderHash   string `json:"orderHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"`

	Maker      string `json:"maker"`
	Taker      string `json:"taker"`
	Relay      string `json:"relay"`
	MakerToken string `json:"makerToken"`
	TakerToken string `json:"takerToken"`

	MakerVolume string `json:"makerVolume"`
	TakerVolume string `json:"takerVolume"`
	MakerFee    string `json:"makerFee"`
	TakerFee    string `json:"takerFee"`

	MakerNormalized bool `json:"makerNormalized"`
	TakerNormalized bool `json:"takerNormalized"`

	MTPrice string `json:"mtPrice,omitempty"`
	TMPrice string `json:"tmPrice,omitempty"`
}

func encodeTrade(t *trade.Trade) tradeRecord {
	return tradeRecord{
		TxID:            t.TxID,
		OrderHash:       t.OrderHash,
		BlockNumber:     t.BlockNumber,
		Timestamp:       t.Timestamp,
		Maker:           t.Maker,
		Taker:           t.Taker,
		Relay:           t.Relay,
		MakerToken:      t.MakerToken,
		TakerToken:      t.TakerToken,
		MakerVolume:     ratString(t.MakerVolume),
		TakerVolume:     ratString(t.TakerVolume),
		MakerFee:        ratString(t.MakerFee),
		TakerFee:        ratString(t.TakerFee),
		MakerNormalized: t.MakerNormalized,
		TakerNormalized: t.TakerNormalized,
		MTPrice:         ratString(t.MTPrice),
		TMPrice:         ratString(t.TMPrice),
	}
}

func (r tradeRecord) decode() (*trade.Trade, error) {
	t := &trade.Trade{
		TxID:            r.TxID,
		OrderHash:       r.OrderHash,
		BlockNumber:     r.BlockNumber,
		Timestamp:       r.Timestamp,
		Maker:           r.Maker,
		Taker:           r.Taker,
		Relay:           r.Relay,
		MakerToken:      r.MakerToken,
		TakerToken:      r.TakerToken,
		MakerNormalized: r.MakerNormalized,
		TakerNormalized: r.TakerNormalized,
	}

	var err error
	if t.MakerVolume, err = parseRat(r.MakerVolume, r.TxID); err != nil {
		return nil, err
	}
	if t.TakerVolume, err = parseRat(r.TakerVolume, r.TxID); err != nil {
		return nil, err
	}
	if t.MakerFee, err = parseRat(r.MakerFee, r.TxID); err != nil {
		return nil, err
	}
	if t.TakerFee, err = parseRat(r.TakerFee, r.TxID); err != nil {
		return nil, err
	}
	if r.MTPrice != "" {
		if t.MTPrice, err = parseRat(r.MTPrice, r.TxID); err != nil {
			return nil, err
		}
	}
	if r.TMPrice != "" {
		if t.TMPrice, err = parseRat(r.TMPrice, r.TxID); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func ratString(r *big.Rat) string {
	if r == nil {
		return ""
	}
	return r.RatString()
}

func parseRat(s, txid string) (*big.Rat, error) {
	if s == "" {
		return new(big.Rat), nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("bad rational %q in trade record %s", s, txid)
	}
	return r, nil
}
