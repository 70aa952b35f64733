// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package prices maintains the fiat price table for known token symbols,
// fed by a periodic poll of an external quote API.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultPeriod is the interval between successful price polls. Failed
// polls retry at half the period.
const DefaultPeriod = 5 * time.Minute

// Table is the current symbol to fiat price mapping.
type Table struct {
	mu     sync.RWMutex
	quotes map[string]*big.Rat
}

// NewTable creates an empty price table.
func NewTable() *Table {
	return &Table{quotes: make(map[string]*big.Rat)}
}

// Price returns the current fiat price for a symbol.
func (t *Table) Price(symbol string) (*big.Rat, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.quotes[symbol]
	return p, ok
}

// Update merges a poll result into the table. Symbols missing from the
// result keep their previous quote.
func (t *Table) Update(quotes map[string]*big.Rat) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for symbol, price := range quotes {
		t.quotes[symbol] = price
	}
}

// Snapshot returns a copy of the table.
func (t *Table) Snapshot() map[string]*big.Rat {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*big.Rat, len(t.quotes))
	for symbol, price := range t.quotes {
		out[symbol] = price
	}
	return out
}

// Source fetches current fiat quotes for a set of symbols. Missing
// symbols in the result are not an error.
type Source interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]*big.Rat, error)
}

// Client queries a pricemulti-style HTTP quote API:
// GET {base}?fsyms=SYM1,SYM2&tsyms=FIAT returning
// {"SYM1": {"FIAT": price}, ...}.
type Client struct {
	baseURL    string
	fiat       string
	httpClient *http.Client
}

// NewClient creates a quote API client for one fiat currency.
func NewClient(baseURL, fiat string) *Client {
	return &Client{
		baseURL:    baseURL,
		fiat:       fiat,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchPrices requests quotes for all symbols in one batched call.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]*big.Rat, error) {
	q := url.Values{}
	q.Set("fsyms", strings.Join(symbols, ","))
	q.Set("tsyms", c.fiat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("price request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price fetch: unexpected status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var raw map[string]map[string]json.Number
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("price decode: %w", err)
	}

	quotes := make(map[string]*big.Rat, len(raw))
	for symbol, byFiat := range raw {
		num, ok := byFiat[c.fiat]
		if !ok {
			continue
		}
		price, ok := new(big.Rat).SetString(num.String())
		if !ok {
			return nil, fmt.Errorf("price decode: bad quote %q for %s", num.String(), symbol)
		}
		quotes[symbol] = price
	}
	return quotes, nil
}
