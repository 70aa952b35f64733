// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package engine

import (
	"sync"

	"github.com/luxfi/dexwatch/stats"
)

// snapshotHolder guards the current statistics snapshot and the
// backfill-readiness flag for concurrent readers.
type snapshotHolder struct {
	mu      sync.RWMutex
	current *stats.Statistics
	done    bool
}

func (h *snapshotHolder) get() *stats.Statistics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *snapshotHolder) set(s *stats.Statistics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = s
}

func (h *snapshotHolder) ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done
}

func (h *snapshotHolder) setReady() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done = true
}
