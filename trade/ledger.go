// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package trade

import (
	"sync"
)

// Ledger holds Trades ordered by timestamp descending (newest first).
// Trades are never mutated after insertion. The ledger does not apply the
// statistics window; consumers that only want the trailing window stop
// early while walking.
type Ledger struct {
	mu     sync.RWMutex
	trades []*Trade
	max    int
}

// NewLedger creates a Ledger. max caps retention (oldest dropped first);
// 0 means unlimited.
func NewLedger(max int) *Ledger {
	return &Ledger{max: max}
}

// Insert places t at the first position whose timestamp is less than
// t.Timestamp, keeping descending order with ties broken by insertion
// order. Returns the insertion index.
func (l *Ledger) Insert(t *Trade) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := len(l.trades)
	for i, existing := range l.trades {
		if existing.Timestamp < t.Timestamp {
			idx = i
			break
		}
	}

	l.trades = append(l.trades, nil)
	copy(l.trades[idx+1:], l.trades[idx:])
	l.trades[idx] = t

	if l.max > 0 && len(l.trades) > l.max {
		l.trades = l.trades[:l.max]
	}
	return idx
}

// Len returns the number of trades held.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// Walk visits trades newest to oldest until fn returns false.
func (l *Ledger) Walk(fn func(t *Trade) bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.trades {
		if !fn(t) {
			return
		}
	}
}

// Recent returns up to limit trades, newest first. limit <= 0 returns all.
func (l *Ledger) Recent(limit int) []*Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.trades)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Trade, n)
	copy(out, l.trades[:n])
	return out
}

// FindTx returns the newest trade with the given transaction id. An
// empty orderHash matches any fill in the transaction.
func (l *Ledger) FindTx(txid, orderHash string) *Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.trades {
		if t.TxID == txid && (orderHash == "" || t.OrderHash == orderHash) {
			return t
		}
	}
	return nil
}

// Oldest returns the oldest trade held, or nil when empty.
func (l *Ledger) Oldest() *Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.trades) == 0 {
		return nil
	}
	return l.trades[len(l.trades)-1]
}
