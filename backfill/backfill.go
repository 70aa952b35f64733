// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package backfill walks backward through historical block ranges until
// the trade ledger covers the statistics window.
package backfill

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/luxfi/dexwatch/trade"
)

// BatchBlocks is how many blocks one backfill batch spans: the window
// divided by a nominal block time of 17 seconds, rounded up.
const BatchBlocks = (86400 + 16) / 17

// RetryInterval is the delay before retrying a failed batch fetch.
const RetryInterval = 15 * time.Second

// LogSource supplies historical fill events and the chain head.
type LogSource interface {
	FillLogs(ctx context.Context, fromBlock, toBlock uint64) ([]trade.FillEvent, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Config for a backfill run.
type Config struct {
	// Genesis clamps the walk; no batch starts below it.
	Genesis uint64

	// Window is the duration of history to cover.
	Window time.Duration

	// BatchBlocks overrides the batch span. 0 uses the default.
	BatchBlocks uint64

	// RetryInterval overrides the fetch retry delay. 0 uses the default.
	RetryInterval time.Duration

	// StartBelow resumes a previous run: when nonzero the first batch
	// ends just under it instead of at the chain head.
	StartBelow uint64
}

// Scheduler fetches historical fills batch by batch, newest range first.
type Scheduler struct {
	logs   LogSource
	blocks trade.BlockTimeSource
	cfg    Config

	oldest uint64
}

// New creates a Scheduler.
func New(logs LogSource, blocks trade.BlockTimeSource, cfg Config) *Scheduler {
	if cfg.BatchBlocks == 0 {
		cfg.BatchBlocks = BatchBlocks
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = RetryInterval
	}
	return &Scheduler{logs: logs, blocks: blocks, cfg: cfg}
}

// OldestFetched returns the lowest block a finished batch started at.
// Zero means no batch completed yet.
func (s *Scheduler) OldestFetched() uint64 { return s.oldest }

// Run walks backward until the covered duration satisfies the window or
// the genesis clamp stops the walk. Events are passed to emit in the
// order the node returned them; emit must not block indefinitely.
// progress, if non nil, receives the oldest fetched block after each
// batch. Exhausting history before covering the window is a normal
// terminal condition, not an error.
func (s *Scheduler) Run(ctx context.Context, emit func(trade.FillEvent), progress func(oldest uint64)) error {
	for {
		to, err := s.nextRangeEnd(ctx)
		if err != nil {
			return err
		}
		if to < s.cfg.Genesis {
			log.Printf("[backfill] Nothing left below genesis block %d, stopping", s.cfg.Genesis)
			return nil
		}

		from := s.cfg.Genesis
		span := s.cfg.BatchBlocks
		if to >= s.cfg.Genesis+span {
			from = to - span + 1
		}

		events, err := s.fetchBatch(ctx, from, to)
		if err != nil {
			return err
		}
		log.Printf("[backfill] Fetched %d fills in blocks %d-%d", len(events), from, to)

		for _, ev := range events {
			emit(ev)
		}

		s.oldest = from
		if progress != nil {
			progress(from)
		}

		if from <= s.cfg.Genesis {
			log.Printf("[backfill] Reached genesis block %d, stopping", s.cfg.Genesis)
			return nil
		}

		ts, err := s.blockTimestamp(ctx, from)
		if err != nil {
			return err
		}
		covered := time.Now().Unix() - ts
		if covered >= int64(s.cfg.Window/time.Second) {
			log.Printf("[backfill] Window covered (%ds of history)", covered)
			return nil
		}
	}
}

func (s *Scheduler) nextRangeEnd(ctx context.Context) (uint64, error) {
	if s.oldest > 0 {
		return s.oldest - 1, nil
	}
	if s.cfg.StartBelow > 0 {
		return s.cfg.StartBelow - 1, nil
	}

	for {
		head, err := s.logs.BlockNumber(ctx)
		if err == nil {
			if head < s.cfg.Genesis {
				return 0, fmt.Errorf("chain head %d below genesis %d", head, s.cfg.Genesis)
			}
			return head, nil
		}
		log.Printf("[backfill] Head lookup failed, retrying in %s: %v", s.cfg.RetryInterval, err)
		if err := s.wait(ctx); err != nil {
			return 0, err
		}
	}
}

func (s *Scheduler) fetchBatch(ctx context.Context, from, to uint64) ([]trade.FillEvent, error) {
	for {
		events, err := s.logs.FillLogs(ctx, from, to)
		if err == nil {
			return events, nil
		}
		log.Printf("[backfill] Log fetch %d-%d failed, retrying in %s: %v", from, to, s.cfg.RetryInterval, err)
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *Scheduler) blockTimestamp(ctx context.Context, number uint64) (int64, error) {
	for {
		ts, err := s.blocks.BlockTimestamp(ctx, number)
		if err == nil {
			return ts, nil
		}
		log.Printf("[backfill] Block %d info unavailable, retrying in %s: %v", number, s.cfg.RetryInterval, err)
		if err := s.wait(ctx); err != nil {
			return 0, err
		}
	}
}

func (s *Scheduler) wait(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.RetryInterval)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
