// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package kv

import (
	"math/big"
	"testing"

	"github.com/luxfi/dexwatch/trade"
)

func sampleTrade(txid string, timestamp int64) *trade.Trade {
	return &trade.Trade{
		TxID:            txid,
		OrderHash:       "0xhash" + txid,
		BlockNumber:     100,
		Timestamp:       timestamp,
		Maker:           "0x1111111111111111111111111111111111111111",
		Taker:           "0x2222222222222222222222222222222222222222",
		Relay:           "0xa258b39954cef5cb142fd567a46cddb31a670124",
		MakerToken:      "0xe41d2489571d322189246dafa5ebde1f4699f498",
		TakerToken:      "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		MakerVolume:     big.NewRat(3, 2),
		TakerVolume:     big.NewRat(5, 1),
		MakerFee:        new(big.Rat),
		TakerFee:        big.NewRat(1, 4),
		MakerNormalized: true,
		TakerNormalized: true,
		MTPrice:         big.NewRat(3, 10),
		TMPrice:         big.NewRat(10, 3),
	}
}

func TestTradeRoundTrip(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	want := sampleTrade("0xaa", 1700000000)
	if err := s.PutTrade(want); err != nil {
		t.Fatalf("PutTrade() error = %v", err)
	}

	var got *trade.Trade
	if err := s.EachTrade(func(tr *trade.Trade) bool {
		got = tr
		return true
	}); err != nil {
		t.Fatalf("EachTrade() error = %v", err)
	}
	if got == nil {
		t.Fatal("EachTrade() visited no trades")
	}

	if got.TxID != want.TxID || got.OrderHash != want.OrderHash {
		t.Errorf("identity = %s/%s", got.TxID, got.OrderHash)
	}
	if got.Timestamp != want.Timestamp || got.BlockNumber != want.BlockNumber {
		t.Errorf("timestamp/block = %d/%d", got.Timestamp, got.BlockNumber)
	}
	if got.MakerVolume.Cmp(want.MakerVolume) != 0 || got.TakerVolume.Cmp(want.TakerVolume) != 0 {
		t.Errorf("volumes = %s/%s", got.MakerVolume.RatString(), got.TakerVolume.RatString())
	}
	if got.TakerFee.Cmp(want.TakerFee) != 0 {
		t.Errorf("TakerFee = %s, want 1/4", got.TakerFee.RatString())
	}
	if got.MTPrice.Cmp(want.MTPrice) != 0 || got.TMPrice.Cmp(want.TMPrice) != 0 {
		t.Errorf("prices = %s/%s", got.MTPrice.RatString(), got.TMPrice.RatString())
	}
	if !got.MakerNormalized || !got.TakerNormalized {
		t.Error("normalized flags lost")
	}
}

func TestTradeRoundTripNilPrices(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	want := sampleTrade("0xaa", 1700000000)
	want.MTPrice = nil
	want.TMPrice = nil
	if err := s.PutTrade(want); err != nil {
		t.Fatalf("PutTrade() error = %v", err)
	}

	var got *trade.Trade
	_ = s.EachTrade(func(tr *trade.Trade) bool { got = tr; return true })
	if got.MTPrice != nil || got.TMPrice != nil {
		t.Errorf("prices = %v/%v, want nil/nil", got.MTPrice, got.TMPrice)
	}
}

func TestEachTradeAscending(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	// Insert out of order; keys sort by timestamp.
	for _, ts := range []int64{1700000300, 1700000100, 1700000200} {
		if err := s.PutTrade(sampleTrade("0xaa", ts)); err != nil {
			t.Fatalf("PutTrade() error = %v", err)
		}
	}

	var seen []int64
	if err := s.EachTrade(func(tr *trade.Trade) bool {
		seen = append(seen, tr.Timestamp)
		return true
	}); err != nil {
		t.Fatalf("EachTrade() error = %v", err)
	}

	if len(seen) != 3 {
		t.Fatalf("visited %d trades, want 3", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("timestamps not ascending: %v", seen)
		}
	}
}

func TestPutTradeIdempotentKey(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	tr := sampleTrade("0xaa", 1700000000)
	if err := s.PutTrade(tr); err != nil {
		t.Fatal(err)
	}
	if err := s.PutTrade(tr); err != nil {
		t.Fatal(err)
	}

	count := 0
	_ = s.EachTrade(func(*trade.Trade) bool { count++; return true })
	if count != 1 {
		t.Errorf("stored %d records for one trade, want 1", count)
	}
}

func TestBackfillCursor(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	if _, ok, err := s.BackfillCursor(); err != nil || ok {
		t.Fatalf("BackfillCursor() on empty store = ok=%v err=%v", ok, err)
	}

	if err := s.SetBackfillCursor(4145578); err != nil {
		t.Fatalf("SetBackfillCursor() error = %v", err)
	}

	block, ok, err := s.BackfillCursor()
	if err != nil || !ok {
		t.Fatalf("BackfillCursor() = ok=%v err=%v", ok, err)
	}
	if block != 4145578 {
		t.Errorf("BackfillCursor() = %d, want 4145578", block)
	}
}

func TestClosedStore(t *testing.T) {
	s := NewMemory()
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := s.PutTrade(sampleTrade("0xaa", 1)); err == nil {
		t.Error("PutTrade() on a closed store = nil error")
	}
	if _, _, err := s.BackfillCursor(); err == nil {
		t.Error("BackfillCursor() on a closed store = nil error")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
