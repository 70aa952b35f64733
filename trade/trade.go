// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package trade turns raw exchange fill events into normalized, immutable
// Trade records and keeps them in a timestamp-ordered ledger.
package trade

import (
	"math/big"
)

// FillEvent is one raw LogFill occurrence as decoded from the chain.
// Amounts are integers in the token's smallest unit.
type FillEvent struct {
	TxID         string
	OrderHash    string
	BlockNumber  uint64
	Maker        string
	Taker        string
	FeeRecipient string
	MakerToken   string
	TakerToken   string

	FilledMakerAmount *big.Int
	FilledTakerAmount *big.Int
	PaidMakerFee      *big.Int
	PaidTakerFee      *big.Int
}

// DedupKey identifies a fill across redelivery by subscription and
// backfill.
func (ev FillEvent) DedupKey() string {
	return ev.TxID + ev.OrderHash
}

// Trade is one normalized fill. Once constructed it is never mutated.
type Trade struct {
	TxID        string
	OrderHash   string
	BlockNumber uint64
	Timestamp   int64

	Maker      string
	Taker      string
	Relay      string
	MakerToken string
	TakerToken string

	MakerVolume *big.Rat
	TakerVolume *big.Rat
	MakerFee    *big.Rat
	TakerFee    *big.Rat

	// MakerNormalized and TakerNormalized report whether the respective
	// token's decimal count was known when the trade was built.
	MakerNormalized bool
	TakerNormalized bool

	// MTPrice is maker units per taker unit, TMPrice the reciprocal.
	// Both are nil when the price could not be computed.
	MTPrice *big.Rat
	TMPrice *big.Rat
}

// NormalizeQuantity converts a raw smallest-unit quantity into a decimal
// quantity using the token's decimal count. When the decimal count is not
// known the raw value is passed through and false is returned.
func NormalizeQuantity(raw *big.Int, decimals uint8, known bool) (*big.Rat, bool) {
	if raw == nil {
		raw = new(big.Int)
	}
	if !known {
		return new(big.Rat).SetInt(raw), false
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(raw, denom), true
}
