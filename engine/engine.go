// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package engine wires the ingestion pipeline together: a single loop
// consumes fill events from the live head poller and the backfill
// scheduler, normalizes them, and feeds the ledger, the price/volume
// history, and the statistics aggregator. It also serves the HTTP and
// WebSocket API.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/luxfi/dexwatch/backfill"
	"github.com/luxfi/dexwatch/history"
	"github.com/luxfi/dexwatch/order"
	"github.com/luxfi/dexwatch/prices"
	"github.com/luxfi/dexwatch/registry"
	"github.com/luxfi/dexwatch/stats"
	"github.com/luxfi/dexwatch/storage"
	"github.com/luxfi/dexwatch/storage/kv"
	"github.com/luxfi/dexwatch/trade"
)

// ChainSource is everything the engine needs from the chain node.
// chain.Client implements it; tests substitute fakes.
type ChainSource interface {
	NetworkID(ctx context.Context) (uint64, error)
	trade.BlockTimeSource
	backfill.LogSource
	order.TransactionSource
	order.ExchangeState
}

// Config for the engine.
type Config struct {
	HTTPPort     int
	PollInterval time.Duration
	Window       time.Duration
	PricePeriod  time.Duration
	MaxTrades    int

	// RetryInterval shortens the block/tx retry delays, for tests.
	RetryInterval time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		HTTPPort:     8080,
		PollInterval: 10 * time.Second,
		Window:       stats.Window,
		PricePeriod:  prices.DefaultPeriod,
	}
}

// Engine is the ingestion service.
type Engine struct {
	cfg    Config
	reg    *registry.Registry
	source ChainSource

	normalizer    *trade.Normalizer
	ledger        *trade.Ledger
	history       *history.PriceVolumeHistory
	priceTable    *prices.Table
	priceSource   prices.Source
	aggregator    *stats.Aggregator
	reconstructor *order.Reconstructor
	subscriber    *Subscriber

	checkpoints *kv.Store
	archive     *storage.Archive

	events       chan trade.FillEvent
	recompute    chan struct{}
	backfillDone chan struct{}

	snapshot *snapshotHolder
}

// New creates an Engine. checkpoints must be non nil (use kv.NewMemory
// for diskless runs); archive and priceSource may be nil to disable the
// SQL archive and price polling.
func New(cfg Config, reg *registry.Registry, source ChainSource, checkpoints *kv.Store, archive *storage.Archive, priceSource prices.Source) (*Engine, error) {
	if checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store cannot be nil")
	}
	if cfg.Window <= 0 {
		cfg.Window = stats.Window
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}

	e := &Engine{
		cfg:          cfg,
		reg:          reg,
		source:       source,
		normalizer:   trade.NewNormalizer(reg, source, cfg.RetryInterval),
		ledger:       trade.NewLedger(cfg.MaxTrades),
		history:      history.New(cfg.Window),
		priceTable:   prices.NewTable(),
		priceSource:  priceSource,
		aggregator:   stats.NewAggregator(reg, cfg.Window),
		checkpoints:  checkpoints,
		archive:      archive,
		events:       make(chan trade.FillEvent, 256),
		recompute:    make(chan struct{}, 1),
		backfillDone: make(chan struct{}, 1),
		snapshot:     &snapshotHolder{},
	}
	e.reconstructor = order.NewReconstructor(reg, source, source, cfg.RetryInterval)
	e.subscriber = NewSubscriber()
	return e, nil
}

// Ledger exposes the trade ledger (read-only use).
func (e *Engine) Ledger() *trade.Ledger { return e.ledger }

// History exposes the price/volume series store.
func (e *Engine) History() *history.PriceVolumeHistory { return e.history }

// PriceTable exposes the fiat price table.
func (e *Engine) PriceTable() *prices.Table { return e.priceTable }

// Statistics returns the latest snapshot, nil until backfill completes.
func (e *Engine) Statistics() *stats.Statistics { return e.snapshot.get() }

// Ready reports whether the initial backfill has completed.
func (e *Engine) Ready() bool { return e.snapshot.ready() }

// Run starts the engine and blocks until the context is canceled or a
// startup check fails.
func (e *Engine) Run(ctx context.Context) error {
	networkID, err := e.source.NetworkID(ctx)
	if err != nil {
		return fmt.Errorf("network check: %w", err)
	}
	if networkID != e.reg.NetworkID() {
		return fmt.Errorf("network check: node reports network %d, configured for %d (%s)",
			networkID, e.reg.NetworkID(), e.reg.Network().Name)
	}
	log.Printf("[engine] Connected to %s (network %d)", e.reg.Network().Name, networkID)

	if err := e.restore(); err != nil {
		return fmt.Errorf("restore checkpoints: %w", err)
	}

	if e.archive != nil {
		if err := e.archive.Init(ctx); err != nil {
			return fmt.Errorf("archive init: %w", err)
		}
	}

	go e.subscriber.Run(ctx)
	if e.cfg.HTTPPort > 0 {
		go e.startHTTP(ctx)
	}

	if e.priceSource != nil {
		poller := prices.NewPoller(e.reg, e.priceSource, e.priceTable, e.cfg.PricePeriod, e.triggerRecompute)
		go poller.Run(ctx)
	}

	go e.runLivePoller(ctx)
	go e.runBackfill(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.events:
			e.handleFill(ctx, ev)
		case <-e.recompute:
			e.updateStatistics()
		case <-e.backfillDone:
			e.snapshot.setReady()
			log.Printf("[engine] Initial backfill done, statistics enabled")
			e.updateStatistics()
		}
	}
}

// restore replays persisted trades into the ledger, history, and dedup
// set.
func (e *Engine) restore() error {
	count := 0
	err := e.checkpoints.EachTrade(func(t *trade.Trade) bool {
		e.normalizer.MarkKey(t.TxID + t.OrderHash)
		e.ledger.Insert(t)
		e.insertHistory(t)
		count++
		return true
	})
	if err != nil {
		return err
	}
	if count > 0 {
		log.Printf("[engine] Restored %d trades from checkpoint store", count)
	}
	return nil
}

// handleFill runs one event through the pipeline. Per-trade failures are
// logged and never abort the loop.
func (e *Engine) handleFill(ctx context.Context, ev trade.FillEvent) {
	t, err := e.normalizer.Normalize(ctx, ev)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[engine] Normalize %s failed: %v", ev.TxID, err)
		}
		return
	}
	if t == nil {
		// Duplicate delivery.
		return
	}

	idx := e.ledger.Insert(t)
	e.insertHistory(t)

	if err := e.checkpoints.PutTrade(t); err != nil {
		log.Printf("[engine] Checkpoint trade %s failed: %v", t.TxID, err)
	}
	if e.archive != nil {
		if err := e.archive.StoreTrade(ctx, t); err != nil {
			log.Printf("[engine] Archive trade %s failed: %v", t.TxID, err)
		}
	}

	e.subscriber.BroadcastTrade(t, idx)
	e.updateStatistics()
}

func (e *Engine) insertHistory(t *trade.Trade) {
	if t.MTPrice == nil || !t.MakerNormalized || !t.TakerNormalized {
		return
	}
	e.history.Insert(
		e.reg.Symbol(t.MakerToken), e.reg.Symbol(t.TakerToken),
		t.Timestamp, t.MTPrice, t.TMPrice, t.MakerVolume, t.TakerVolume,
	)
}

// updateStatistics recomputes the snapshot and prunes the series store.
// Suppressed until the initial backfill completes so a partial window is
// never presented as a full one.
func (e *Engine) updateStatistics() {
	if !e.snapshot.ready() {
		return
	}
	now := time.Now().Unix()
	s := e.aggregator.Aggregate(e.ledger, e.priceTable, now)
	e.history.Prune(now)
	e.snapshot.set(s)
	e.subscriber.BroadcastStatistics(s)
}

func (e *Engine) triggerRecompute() {
	select {
	case e.recompute <- struct{}{}:
	default:
	}
}

// runLivePoller watches the chain head and emits new fill events. It
// starts at the current head; history is the backfill scheduler's job.
func (e *Engine) runLivePoller(ctx context.Context) {
	var lastSeen uint64

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		head, err := e.source.BlockNumber(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[engine] Head poll failed: %v", err)
			}
			continue
		}
		if lastSeen == 0 {
			lastSeen = head
			continue
		}
		if head <= lastSeen {
			continue
		}

		events, err := e.source.FillLogs(ctx, lastSeen+1, head)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[engine] Live log fetch %d-%d failed: %v", lastSeen+1, head, err)
			}
			continue
		}
		lastSeen = head

		for _, ev := range events {
			select {
			case e.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// runBackfill covers the statistics window with history, resuming from
// the persisted cursor when one exists.
func (e *Engine) runBackfill(ctx context.Context) {
	cfg := backfill.Config{
		Genesis:       e.reg.GenesisBlock(),
		Window:        e.cfg.Window,
		RetryInterval: e.cfg.RetryInterval,
	}
	if cursor, ok, err := e.checkpoints.BackfillCursor(); err != nil {
		log.Printf("[engine] Backfill cursor read failed: %v", err)
	} else if ok {
		cfg.StartBelow = cursor
		log.Printf("[engine] Resuming backfill below block %d", cursor)
	}

	scheduler := backfill.New(e.source, e.source, cfg)

	emit := func(ev trade.FillEvent) {
		select {
		case e.events <- ev:
		case <-ctx.Done():
		}
	}
	progress := func(oldest uint64) {
		if err := e.checkpoints.SetBackfillCursor(oldest); err != nil {
			log.Printf("[engine] Backfill cursor write failed: %v", err)
		}
	}

	if err := scheduler.Run(ctx, emit, progress); err != nil {
		if ctx.Err() == nil {
			log.Printf("[engine] Backfill aborted: %v", err)
		}
		return
	}

	select {
	case e.backfillDone <- struct{}{}:
	case <-ctx.Done():
	}
}
