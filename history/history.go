// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package history keeps per-pair price and volume time series for charting.
// Every insert writes both directions of the pair so a chart can flip
// quote and base without re-deriving data.
package history

import (
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"
)

// Sample is one time series point.
type Sample struct {
	Timestamp int64    `json:"t"`
	Value     *big.Rat `json:"-"`
}

// series holds the three parallel ordered lists for one direction of a
// pair, ascending by timestamp.
type series struct {
	timestamps []int64
	prices     []*big.Rat
	volumes    []*big.Rat
}

// PriceVolumeHistory is a bidirectional, pair-indexed store of price and
// volume samples, pruned to a trailing window.
type PriceVolumeHistory struct {
	window int64

	mu    sync.RWMutex
	pairs []string
	data  map[string]map[string]*series
}

// New creates a PriceVolumeHistory covering the given trailing window.
func New(window time.Duration) *PriceVolumeHistory {
	return &PriceVolumeHistory{
		window: int64(window / time.Second),
		data:   make(map[string]map[string]*series),
	}
}

// Insert records a trade's prices and volumes for both directions of the
// maker/taker pair. mtPrice is maker units per taker unit; the maker side
// series carries the taker volume and vice versa, mirroring how a candle
// for "TAKER priced in MAKER" is built. Samples are kept in ascending
// timestamp order.
func (h *PriceVolumeHistory) Insert(maker, taker string, timestamp int64, mtPrice, tmPrice, makerVolume, takerVolume *big.Rat) {
	h.mu.Lock()
	defer h.mu.Unlock()

	mt := h.initialize(maker, taker)
	tm := h.initialize(taker, maker)

	idx := len(mt.timestamps)
	for i, ts := range mt.timestamps {
		if ts > timestamp {
			idx = i
			break
		}
	}

	mt.insertAt(idx, timestamp, mtPrice, takerVolume)
	tm.insertAt(idx, timestamp, tmPrice, makerVolume)
}

// Prune drops samples older than now-window from every pair, removing
// pairs that become empty. Reports whether anything was pruned.
func (h *PriceVolumeHistory) Prune(now int64) bool {
	cutoff := now - h.window

	h.mu.Lock()
	defer h.mu.Unlock()

	pruned := false
	for a, inner := range h.data {
		for b, s := range inner {
			mirror := h.data[b][a]
			for len(s.timestamps) > 0 && s.timestamps[0] < cutoff {
				s.shift()
				if mirror != s {
					mirror.shift()
				}
				pruned = true
			}
			if len(s.timestamps) == 0 {
				h.removePair(a, b)
			}
		}
	}
	return pruned
}

// PriceData returns the price series for a "QUOTE/BASE" pair key, oldest
// first. Unknown pairs return nil.
func (h *PriceVolumeHistory) PriceData(pairKey string) []Sample {
	return h.seriesData(pairKey, func(s *series) []*big.Rat { return s.prices })
}

// VolumeData returns the volume series for a "QUOTE/BASE" pair key.
func (h *PriceVolumeHistory) VolumeData(pairKey string) []Sample {
	return h.seriesData(pairKey, func(s *series) []*big.Rat { return s.volumes })
}

// Pairs returns the sorted set of known pair keys.
func (h *PriceVolumeHistory) Pairs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.pairs))
	copy(out, h.pairs)
	return out
}

func (h *PriceVolumeHistory) seriesData(pairKey string, pick func(*series) []*big.Rat) []Sample {
	quote, base, ok := splitPair(pairKey)
	if !ok {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	inner, ok := h.data[base]
	if !ok {
		return nil
	}
	s, ok := inner[quote]
	if !ok {
		return nil
	}

	values := pick(s)
	out := make([]Sample, len(s.timestamps))
	for i := range out {
		out[i] = Sample{Timestamp: s.timestamps[i], Value: values[i]}
	}
	return out
}

func (h *PriceVolumeHistory) initialize(a, b string) *series {
	inner, ok := h.data[a]
	if !ok {
		inner = make(map[string]*series)
		h.data[a] = inner
	}
	s, ok := inner[b]
	if !ok {
		s = &series{}
		inner[b] = s
		h.pairs = append(h.pairs, a+"/"+b)
		sort.Strings(h.pairs)
	}
	return s
}

func (h *PriceVolumeHistory) removePair(a, b string) {
	delete(h.data[a], b)
	if len(h.data[a]) == 0 {
		delete(h.data, a)
	}
	if inner, ok := h.data[b]; ok {
		delete(inner, a)
		if len(inner) == 0 {
			delete(h.data, b)
		}
	}
	h.dropPairName(a + "/" + b)
	h.dropPairName(b + "/" + a)
}

func (h *PriceVolumeHistory) dropPairName(name string) {
	for i, p := range h.pairs {
		if p == name {
			h.pairs = append(h.pairs[:i], h.pairs[i+1:]...)
			return
		}
	}
}

func (s *series) insertAt(idx int, timestamp int64, price, volume *big.Rat) {
	s.timestamps = append(s.timestamps, 0)
	copy(s.timestamps[idx+1:], s.timestamps[idx:])
	s.timestamps[idx] = timestamp

	s.prices = append(s.prices, nil)
	copy(s.prices[idx+1:], s.prices[idx:])
	s.prices[idx] = price

	s.volumes = append(s.volumes, nil)
	copy(s.volumes[idx+1:], s.volumes[idx:])
	s.volumes[idx] = volume
}

func (s *series) shift() {
	s.timestamps = s.timestamps[1:]
	s.prices = s.prices[1:]
	s.volumes = s.volumes[1:]
}

func splitPair(pairKey string) (quote, base string, ok bool) {
	parts := strings.SplitN(pairKey, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
