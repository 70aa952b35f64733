// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package trade

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/luxfi/dexwatch/registry"
)

const (
	zrxToken  = "0xe41d2489571d322189246dafa5ebde1f4699f498" // 18 decimals
	taasToken = "0xe7775a6e9bcf904eb39da2b68c5efb4f9360e08c" // 6 decimals
	relayAddr = "0xa258b39954cef5cb142fd567a46cddb31a670124"
)

// fakeBlocks resolves every block to a fixed timestamp after failing a
// configured number of times.
type fakeBlocks struct {
	timestamps map[uint64]int64
	failures   int
	calls      int
}

func (f *fakeBlocks) BlockTimestamp(ctx context.Context, number uint64) (int64, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, context.DeadlineExceeded
	}
	if ts, ok := f.timestamps[number]; ok {
		return ts, nil
	}
	return 1700000000, nil
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(1, "USD")
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	return reg
}

func TestNormalizeQuantity(t *testing.T) {
	tests := []struct {
		name     string
		raw      *big.Int
		decimals uint8
		known    bool
		want     string
		wantNorm bool
	}{
		{"18 decimals unit", exp10(18), 18, true, "1", true},
		{"6 decimals", big.NewInt(5000000), 6, true, "5", true},
		{"fractional", big.NewInt(1500000), 6, true, "3/2", true},
		{"unknown decimals passes through", big.NewInt(123), 0, false, "123", false},
		{"zero", big.NewInt(0), 18, true, "0", true},
		{"nil raw", nil, 18, true, "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, norm := NormalizeQuantity(tt.raw, tt.decimals, tt.known)
			if got.RatString() != tt.want {
				t.Errorf("NormalizeQuantity() = %s, want %s", got.RatString(), tt.want)
			}
			if norm != tt.wantNorm {
				t.Errorf("NormalizeQuantity() normalized = %v, want %v", norm, tt.wantNorm)
			}
		})
	}
}

func fillEvent(txid, orderHash string) FillEvent {
	return FillEvent{
		TxID:              txid,
		OrderHash:         orderHash,
		BlockNumber:       100,
		Maker:             "0x1111111111111111111111111111111111111111",
		Taker:             "0x2222222222222222222222222222222222222222",
		FeeRecipient:      relayAddr,
		MakerToken:        zrxToken,
		TakerToken:        taasToken,
		FilledMakerAmount: exp10(18),
		FilledTakerAmount: big.NewInt(5000000),
		PaidMakerFee:      big.NewInt(0),
		PaidTakerFee:      big.NewInt(0),
	}
}

func TestNormalizerEndToEnd(t *testing.T) {
	n := NewNormalizer(testRegistry(t), &fakeBlocks{timestamps: map[uint64]int64{100: 1700000000}}, time.Millisecond)

	tr, err := n.Normalize(context.Background(), fillEvent("0xaa", "0xbb"))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if tr == nil {
		t.Fatal("Normalize() returned nil trade")
	}

	if got := tr.MakerVolume.RatString(); got != "1" {
		t.Errorf("MakerVolume = %s, want 1", got)
	}
	if got := tr.TakerVolume.RatString(); got != "5" {
		t.Errorf("TakerVolume = %s, want 5", got)
	}
	if got := tr.MTPrice.RatString(); got != "1/5" {
		t.Errorf("MTPrice = %s, want 1/5", got)
	}
	if got := tr.TMPrice.RatString(); got != "5" {
		t.Errorf("TMPrice = %s, want 5", got)
	}
	if !tr.MakerNormalized || !tr.TakerNormalized {
		t.Errorf("normalized flags = %v/%v, want true/true", tr.MakerNormalized, tr.TakerNormalized)
	}
	if tr.Timestamp != 1700000000 {
		t.Errorf("Timestamp = %d, want 1700000000", tr.Timestamp)
	}
	if tr.Relay != relayAddr {
		t.Errorf("Relay = %s, want %s", tr.Relay, relayAddr)
	}
}

func TestNormalizerDedup(t *testing.T) {
	n := NewNormalizer(testRegistry(t), &fakeBlocks{}, time.Millisecond)
	ctx := context.Background()

	first, err := n.Normalize(ctx, fillEvent("0xaa", "0xbb"))
	if err != nil || first == nil {
		t.Fatalf("first Normalize() = (%v, %v), want trade", first, err)
	}

	second, err := n.Normalize(ctx, fillEvent("0xaa", "0xbb"))
	if err != nil {
		t.Fatalf("second Normalize() error = %v", err)
	}
	if second != nil {
		t.Error("second Normalize() returned a trade, want nil for duplicate")
	}

	// Same tx with a different order hash is a distinct fill.
	third, err := n.Normalize(ctx, fillEvent("0xaa", "0xcc"))
	if err != nil || third == nil {
		t.Fatalf("third Normalize() = (%v, %v), want trade", third, err)
	}
}

func TestNormalizerPriceSymmetry(t *testing.T) {
	n := NewNormalizer(testRegistry(t), &fakeBlocks{}, time.Millisecond)

	ev := fillEvent("0xaa", "0xbb")
	ev.FilledMakerAmount = big.NewInt(123456789)
	ev.FilledTakerAmount = big.NewInt(987654)

	tr, err := n.Normalize(context.Background(), ev)
	if err != nil || tr == nil {
		t.Fatalf("Normalize() = (%v, %v)", tr, err)
	}

	product := new(big.Rat).Mul(tr.MTPrice, tr.TMPrice)
	if product.Cmp(big.NewRat(1, 1)) != 0 {
		t.Errorf("MTPrice * TMPrice = %s, want exactly 1", product.RatString())
	}
}

func TestNormalizerRawEqualAmounts(t *testing.T) {
	n := NewNormalizer(testRegistry(t), &fakeBlocks{}, time.Millisecond)

	// Unknown tokens with identical raw amounts trade at exactly 1.
	ev := fillEvent("0xaa", "0xbb")
	ev.MakerToken = "0x9999999999999999999999999999999999999999"
	ev.TakerToken = "0x8888888888888888888888888888888888888888"
	ev.FilledMakerAmount = big.NewInt(777)
	ev.FilledTakerAmount = big.NewInt(777)

	tr, err := n.Normalize(context.Background(), ev)
	if err != nil || tr == nil {
		t.Fatalf("Normalize() = (%v, %v)", tr, err)
	}
	if tr.MakerNormalized || tr.TakerNormalized {
		t.Error("unknown tokens should not be normalized")
	}
	one := big.NewRat(1, 1)
	if tr.MTPrice == nil || tr.MTPrice.Cmp(one) != 0 || tr.TMPrice.Cmp(one) != 0 {
		t.Errorf("prices = %v/%v, want exactly 1/1", tr.MTPrice, tr.TMPrice)
	}
}

func TestNormalizerUnknownPrice(t *testing.T) {
	n := NewNormalizer(testRegistry(t), &fakeBlocks{}, time.Millisecond)

	// One unknown token and unequal raw amounts leave prices undefined.
	ev := fillEvent("0xaa", "0xbb")
	ev.TakerToken = "0x8888888888888888888888888888888888888888"
	ev.FilledTakerAmount = big.NewInt(999)

	tr, err := n.Normalize(context.Background(), ev)
	if err != nil || tr == nil {
		t.Fatalf("Normalize() = (%v, %v)", tr, err)
	}
	if tr.MTPrice != nil || tr.TMPrice != nil {
		t.Errorf("prices = %v/%v, want nil/nil", tr.MTPrice, tr.TMPrice)
	}
}

func TestNormalizerBlockRetry(t *testing.T) {
	blocks := &fakeBlocks{failures: 2, timestamps: map[uint64]int64{100: 42}}
	n := NewNormalizer(testRegistry(t), blocks, time.Millisecond)

	tr, err := n.Normalize(context.Background(), fillEvent("0xaa", "0xbb"))
	if err != nil || tr == nil {
		t.Fatalf("Normalize() = (%v, %v)", tr, err)
	}
	if tr.Timestamp != 42 {
		t.Errorf("Timestamp = %d, want 42", tr.Timestamp)
	}
	if blocks.calls != 3 {
		t.Errorf("block lookups = %d, want 3 (two failures then success)", blocks.calls)
	}
}

func TestNormalizerRetryCancellation(t *testing.T) {
	blocks := &fakeBlocks{failures: 1 << 30}
	n := NewNormalizer(testRegistry(t), blocks, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := n.Normalize(ctx, fillEvent("0xaa", "0xbb"))
	if err == nil {
		t.Fatal("Normalize() succeeded, want context error")
	}
}

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
