// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package prices

import (
	"context"
	"log"
	"time"

	"github.com/luxfi/dexwatch/registry"
)

// Poller refreshes the price table on a fixed period. A failed poll is
// retried after half the period without touching the table.
type Poller struct {
	reg      *registry.Registry
	source   Source
	table    *Table
	period   time.Duration
	onUpdate func()
}

// NewPoller creates a Poller. onUpdate runs after every successful table
// update (typically a statistics recompute trigger) and may be nil. A
// period of 0 uses DefaultPeriod.
func NewPoller(reg *registry.Registry, source Source, table *Table, period time.Duration, onUpdate func()) *Poller {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Poller{
		reg:      reg,
		source:   source,
		table:    table,
		period:   period,
		onUpdate: onUpdate,
	}
}

// Run polls until the context is canceled. The first poll happens
// immediately.
func (p *Poller) Run(ctx context.Context) {
	for {
		delay := p.period
		if err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			delay = p.period / 2
			log.Printf("[prices] Update failed, retrying in %s: %v", delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Poll performs one fetch of all known symbols plus the native asset,
// whose quote is aliased onto the wrapped token symbol.
func (p *Poller) Poll(ctx context.Context) error {
	symbols := p.reg.TokenSymbols()
	if !contains(symbols, registry.NativeSymbol) {
		symbols = append(symbols, registry.NativeSymbol)
	}

	quotes, err := p.source.FetchPrices(ctx, symbols)
	if err != nil {
		return err
	}

	if native, ok := quotes[registry.NativeSymbol]; ok {
		quotes[registry.WrappedNativeSymbol] = native
	}

	p.table.Update(quotes)
	log.Printf("[prices] Updated %d quotes in %s", len(quotes), p.reg.Fiat().Code)

	if p.onUpdate != nil {
		p.onUpdate()
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
