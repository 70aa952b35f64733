// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/luxfi/dexwatch/chain"
	"github.com/luxfi/dexwatch/registry"
	"github.com/luxfi/dexwatch/trade"
)

// TxRetryInterval is the delay between transaction lookup attempts.
const TxRetryInterval = 15 * time.Second

// zeroAddress marks an order open to any taker.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// TransactionSource fetches transactions by hash. A transaction not yet
// available must be returned as an error; lookups retry.
type TransactionSource interface {
	Transaction(ctx context.Context, txid string) (*chain.Transaction, error)
}

// ExchangeState queries live exchange contract state.
type ExchangeState interface {
	UnavailableTakerAmount(ctx context.Context, orderHash string) (*big.Int, error)
}

// TokenRef is token metadata attached to an order side. Known is false
// when the token is not in the registry, leaving the display fields
// empty.
type TokenRef struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals,omitempty"`
	Known    bool   `json:"known"`
}

// OrderSide is one side of a reconstructed order.
type OrderSide struct {
	Address   string   `json:"address"`
	Token     TokenRef `json:"token"`
	Amount    *big.Int `json:"amount"`
	FeeAmount *big.Int `json:"feeAmount"`
}

// Signature is the order's ECDSA signature and canonical hash.
type Signature struct {
	V    uint8  `json:"v"`
	R    string `json:"r"`
	S    string `json:"s"`
	Hash string `json:"hash"`
}

// PortalOrder is the display-oriented order representation.
type PortalOrder struct {
	Maker            OrderSide `json:"maker"`
	Taker            OrderSide `json:"taker"`
	Expiration       *big.Int  `json:"expiration"`
	Salt             *big.Int  `json:"salt"`
	FeeRecipient     string    `json:"feeRecipient"`
	ExchangeContract string    `json:"exchangeContract"`
	NetworkID        uint64    `json:"networkId"`
	Signature        Signature `json:"signature"`
}

// OrderInfo is the outcome of an order reconstruction: either Error is
// set, or Order plus the derived fill state is.
type OrderInfo struct {
	Error string       `json:"error,omitempty"`
	Order *PortalOrder `json:"order,omitempty"`

	IsOpenTaker bool `json:"isOpenTaker"`
	IsExpired   bool `json:"isExpired"`

	// TakerAmountRemaining is the unfilled taker quantity, normalized
	// when the taker token's decimals are known.
	TakerAmountRemaining *big.Rat `json:"-"`
	RemainingNormalized  bool     `json:"remainingNormalized"`

	Transaction *chain.Transaction `json:"transaction,omitempty"`
}

// Reconstructor rebuilds orders from trade transactions on demand.
type Reconstructor struct {
	reg   *registry.Registry
	txs   TransactionSource
	state ExchangeState
	retry time.Duration
}

// NewReconstructor creates a Reconstructor. A retry interval of 0 uses
// TxRetryInterval.
func NewReconstructor(reg *registry.Registry, txs TransactionSource, state ExchangeState, retry time.Duration) *Reconstructor {
	if retry <= 0 {
		retry = TxRetryInterval
	}
	return &Reconstructor{reg: reg, txs: txs, state: state, retry: retry}
}

// OrderDetails fetches a trade's transaction, decodes the order from its
// calldata, cross-checks the recomputed hash against the trade's recorded
// hash, and queries the remaining fillable amount. Decode failures are
// reported in OrderInfo.Error; only context cancellation returns an
// error.
func (r *Reconstructor) OrderDetails(ctx context.Context, t *trade.Trade) (*OrderInfo, error) {
	tx, err := r.transaction(ctx, t.TxID)
	if err != nil {
		return nil, err
	}

	args, err := ParseFillCalldata(tx.Input)
	if err != nil {
		if errors.Is(err, ErrUnsupportedMethod) || errors.Is(err, ErrShortCalldata) {
			return &OrderInfo{Error: "Unsupported fill method.", Transaction: tx}, nil
		}
		return &OrderInfo{Error: fmt.Sprintf("Decoding order: %v", err), Transaction: tx}, nil
	}

	hash, err := HashOrder(r.reg.ExchangeAddress(), args)
	if err != nil {
		return &OrderInfo{Error: fmt.Sprintf("Decoding order: %v", err), Transaction: tx}, nil
	}
	if hash != strings.ToLower(t.OrderHash) {
		log.Printf("[order] Hash mismatch for %s: computed %s, recorded %s", t.TxID, hash, t.OrderHash)
		return &OrderInfo{
			Error:       fmt.Sprintf("Decoding order: %v.", ErrHashMismatch),
			Transaction: tx,
		}, nil
	}

	unavailable, err := r.state.UnavailableTakerAmount(ctx, hash)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &OrderInfo{Error: fmt.Sprintf("Querying filled amount: %v", err), Transaction: tx}, nil
	}

	remaining := new(big.Int).Sub(args.TakerTokenAmount, unavailable)
	decimals, known := r.reg.Decimals(args.TakerToken)
	remainingQty, remainingNormalized := trade.NormalizeQuantity(remaining, decimals, known)

	return &OrderInfo{
		Order:                r.portalOrder(args, hash),
		IsOpenTaker:          args.Taker == zeroAddress,
		IsExpired:            args.Expiration.Cmp(big.NewInt(time.Now().Unix())) < 0,
		TakerAmountRemaining: remainingQty,
		RemainingNormalized:  remainingNormalized,
		Transaction:          tx,
	}, nil
}

func (r *Reconstructor) portalOrder(args *FillArgs, hash string) *PortalOrder {
	takerAddress := args.Taker
	if takerAddress == zeroAddress {
		takerAddress = ""
	}

	return &PortalOrder{
		Maker: OrderSide{
			Address:   args.Maker,
			Token:     r.tokenRef(args.MakerToken),
			Amount:    args.MakerTokenAmount,
			FeeAmount: args.MakerFee,
		},
		Taker: OrderSide{
			Address:   takerAddress,
			Token:     r.tokenRef(args.TakerToken),
			Amount:    args.TakerTokenAmount,
			FeeAmount: args.TakerFee,
		},
		Expiration:       args.Expiration,
		Salt:             args.Salt,
		FeeRecipient:     args.FeeRecipient,
		ExchangeContract: r.reg.ExchangeAddress(),
		NetworkID:        r.reg.NetworkID(),
		Signature: Signature{
			V:    args.V,
			R:    args.R,
			S:    args.S,
			Hash: hash,
		},
	}
}

func (r *Reconstructor) tokenRef(address string) TokenRef {
	ref := TokenRef{Address: address}
	if info, ok := r.reg.Token(address); ok {
		ref.Name = info.Name
		ref.Symbol = info.Symbol
		ref.Decimals = info.Decimals
		ref.Known = true
	}
	return ref
}

func (r *Reconstructor) transaction(ctx context.Context, txid string) (*chain.Transaction, error) {
	for {
		tx, err := r.txs.Transaction(ctx, txid)
		if err == nil {
			return tx, nil
		}
		log.Printf("[order] Transaction info unavailable for %s, retrying in %s: %v", txid, r.retry, err)

		timer := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
