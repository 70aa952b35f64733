// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package stats derives aggregate fee, volume, and count statistics from
// the trailing window of the trade ledger. Snapshots are recomputed from
// scratch on every trigger and replaced wholesale.
package stats

import (
	"math/big"
	"time"

	"github.com/luxfi/dexwatch/registry"
	"github.com/luxfi/dexwatch/trade"
)

// Window is the trailing duration statistics cover.
const Window = 86400 * time.Second

// PriceSource supplies current fiat prices by token symbol.
type PriceSource interface {
	Price(symbol string) (*big.Rat, bool)
}

// TokenVolume aggregates one token's activity inside the window.
type TokenVolume struct {
	Volume     *big.Rat
	VolumeFiat *big.Rat
	Count      int
}

// FeeStats aggregates relay fees, denominated in fee token units.
type FeeStats struct {
	Relays       map[string]*big.Rat
	FeeCount     int
	FeelessCount int
	TotalFees    *big.Rat

	// TotalFeesFiat and FeeTokenPrice are nil when the fee token has no
	// known fiat price.
	TotalFeesFiat *big.Rat
	FeeTokenPrice *big.Rat
}

// VolumeStats aggregates per-token and total volume.
type VolumeStats struct {
	TotalTrades     int
	TotalVolumeFiat *big.Rat
	Tokens          map[string]*TokenVolume
}

// CountStats holds per-relay trade counts.
type CountStats struct {
	Relays map[string]int
}

// Statistics is one derived snapshot. It is never patched incrementally.
type Statistics struct {
	Time     int64
	Window   time.Duration
	Currency string

	Fees   FeeStats
	Volume VolumeStats
	Counts CountStats
}

// Aggregator reduces the ledger's windowed prefix into Statistics.
type Aggregator struct {
	reg    *registry.Registry
	window time.Duration
}

// NewAggregator creates an Aggregator. A window of 0 uses the default.
func NewAggregator(reg *registry.Registry, window time.Duration) *Aggregator {
	if window <= 0 {
		window = Window
	}
	return &Aggregator{reg: reg, window: window}
}

// WindowSeconds returns the window length in seconds.
func (a *Aggregator) WindowSeconds() int64 {
	return int64(a.window / time.Second)
}

// Aggregate walks the ledger newest to oldest, stopping at the first
// trade older than now-window. Descending ledger order makes the early
// exit valid.
func (a *Aggregator) Aggregate(ledger *trade.Ledger, prices PriceSource, now int64) *Statistics {
	cutoff := now - a.WindowSeconds()

	s := &Statistics{
		Time:     now,
		Window:   a.window,
		Currency: a.reg.Fiat().Code,
		Fees: FeeStats{
			Relays:    make(map[string]*big.Rat),
			TotalFees: new(big.Rat),
		},
		Volume: VolumeStats{
			TotalVolumeFiat: new(big.Rat),
			Tokens:          make(map[string]*TokenVolume),
		},
		Counts: CountStats{
			Relays: make(map[string]int),
		},
	}

	ledger.Walk(func(t *trade.Trade) bool {
		if t.Timestamp < cutoff {
			return false
		}

		relayFee := new(big.Rat).Add(t.MakerFee, t.TakerFee)
		relayTotal, ok := s.Fees.Relays[t.Relay]
		if !ok {
			relayTotal = new(big.Rat)
			s.Fees.Relays[t.Relay] = relayTotal
		}
		relayTotal.Add(relayTotal, relayFee)
		s.Fees.TotalFees.Add(s.Fees.TotalFees, relayFee)

		if relayFee.Sign() != 0 {
			s.Fees.FeeCount++
		} else {
			s.Fees.FeelessCount++
		}

		s.Counts.Relays[t.Relay]++

		maker := a.tokenVolume(s, t.MakerToken)
		taker := a.tokenVolume(s, t.TakerToken)
		maker.Volume.Add(maker.Volume, t.MakerVolume)
		taker.Volume.Add(taker.Volume, t.TakerVolume)

		if t.MakerNormalized {
			if price, ok := prices.Price(a.reg.Symbol(t.MakerToken)); ok {
				fiat := new(big.Rat).Mul(t.MakerVolume, price)
				maker.VolumeFiat.Add(maker.VolumeFiat, fiat)
				s.Volume.TotalVolumeFiat.Add(s.Volume.TotalVolumeFiat, fiat)
			}
		}
		if t.TakerNormalized {
			if price, ok := prices.Price(a.reg.Symbol(t.TakerToken)); ok {
				fiat := new(big.Rat).Mul(t.TakerVolume, price)
				taker.VolumeFiat.Add(taker.VolumeFiat, fiat)
				s.Volume.TotalVolumeFiat.Add(s.Volume.TotalVolumeFiat, fiat)
			}
		}

		maker.Count++
		taker.Count++
		s.Volume.TotalTrades++
		return true
	})

	if price, ok := prices.Price(registry.FeeTokenSymbol); ok {
		s.Fees.FeeTokenPrice = price
		s.Fees.TotalFeesFiat = new(big.Rat).Mul(s.Fees.TotalFees, price)
	}

	return s
}

func (a *Aggregator) tokenVolume(s *Statistics, token string) *TokenVolume {
	tv, ok := s.Volume.Tokens[token]
	if !ok {
		tv = &TokenVolume{Volume: new(big.Rat), VolumeFiat: new(big.Rat)}
		s.Volume.Tokens[token] = tv
	}
	return tv
}
