// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package trade

import (
	"context"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/dexwatch/registry"
)

// BlockTimeSource resolves a block number to its timestamp. A block that
// is not yet available must be returned as an error; the normalizer
// retries until it resolves or the context is canceled.
type BlockTimeSource interface {
	BlockTimestamp(ctx context.Context, number uint64) (int64, error)
}

// BlockRetryInterval is the delay between block timestamp attempts.
const BlockRetryInterval = 15 * time.Second

// Normalizer dedups raw fill events and turns them into Trades.
type Normalizer struct {
	reg    *registry.Registry
	blocks BlockTimeSource
	retry  time.Duration

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewNormalizer creates a Normalizer. A retry interval of 0 uses
// BlockRetryInterval.
func NewNormalizer(reg *registry.Registry, blocks BlockTimeSource, retry time.Duration) *Normalizer {
	if retry <= 0 {
		retry = BlockRetryInterval
	}
	return &Normalizer{
		reg:    reg,
		blocks: blocks,
		retry:  retry,
		seen:   make(map[string]struct{}),
	}
}

// Normalize processes one raw fill event. Duplicate events (same txid and
// order hash) return (nil, nil). The dedup key is marked before the block
// timestamp lookup so a redelivery racing an in-flight lookup is still
// dropped.
func (n *Normalizer) Normalize(ctx context.Context, ev FillEvent) (*Trade, error) {
	key := ev.DedupKey()
	n.mu.Lock()
	if _, dup := n.seen[key]; dup {
		n.mu.Unlock()
		return nil, nil
	}
	n.seen[key] = struct{}{}
	n.mu.Unlock()

	makerDecimals, makerKnown := n.reg.Decimals(ev.MakerToken)
	takerDecimals, takerKnown := n.reg.Decimals(ev.TakerToken)
	feeDecimals, feeKnown := n.reg.Decimals(n.reg.FeeTokenAddress())

	makerVolume, makerNormalized := NormalizeQuantity(ev.FilledMakerAmount, makerDecimals, makerKnown)
	takerVolume, takerNormalized := NormalizeQuantity(ev.FilledTakerAmount, takerDecimals, takerKnown)
	makerFee, _ := NormalizeQuantity(ev.PaidMakerFee, feeDecimals, feeKnown)
	takerFee, _ := NormalizeQuantity(ev.PaidTakerFee, feeDecimals, feeKnown)

	var mtPrice, tmPrice *big.Rat
	switch {
	case makerNormalized && takerNormalized:
		if takerVolume.Sign() != 0 && makerVolume.Sign() != 0 {
			mtPrice = new(big.Rat).Quo(makerVolume, takerVolume)
			tmPrice = new(big.Rat).Quo(takerVolume, makerVolume)
		}
	case ev.FilledMakerAmount != nil && ev.FilledTakerAmount != nil &&
		ev.FilledMakerAmount.Cmp(ev.FilledTakerAmount) == 0:
		// Equal raw amounts trade 1:1 regardless of decimals.
		mtPrice = big.NewRat(1, 1)
		tmPrice = big.NewRat(1, 1)
	}

	timestamp, err := n.blockTimestamp(ctx, ev.BlockNumber)
	if err != nil {
		return nil, err
	}

	return &Trade{
		TxID:            ev.TxID,
		OrderHash:       ev.OrderHash,
		BlockNumber:     ev.BlockNumber,
		Timestamp:       timestamp,
		Maker:           ev.Maker,
		Taker:           ev.Taker,
		Relay:           ev.FeeRecipient,
		MakerToken:      ev.MakerToken,
		TakerToken:      ev.TakerToken,
		MakerVolume:     makerVolume,
		TakerVolume:     takerVolume,
		MakerFee:        makerFee,
		TakerFee:        takerFee,
		MakerNormalized: makerNormalized,
		TakerNormalized: takerNormalized,
		MTPrice:         mtPrice,
		TMPrice:         tmPrice,
	}, nil
}

// MarkKey records a dedup key without processing an event. Used when
// replaying persisted trades at startup.
func (n *Normalizer) MarkKey(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen[key] = struct{}{}
}

// Seen reports whether a fill has already been processed.
func (n *Normalizer) Seen(ev FillEvent) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.seen[ev.DedupKey()]
	return ok
}

func (n *Normalizer) blockTimestamp(ctx context.Context, number uint64) (int64, error) {
	for {
		ts, err := n.blocks.BlockTimestamp(ctx, number)
		if err == nil {
			return ts, nil
		}
		log.Printf("[trade] Block %d info unavailable, retrying in %s: %v", number, n.retry, err)

		timer := time.NewTimer(n.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}
}
