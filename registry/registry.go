// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package registry holds the read-mostly reference data shared by every
// component: token metadata, relay identities, per-network exchange
// parameters, and fiat currency display info. A Registry is constructed
// once at startup and injected; writers only append (new tokens observed
// at runtime), so readers take a shared lock.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// TokenInfo describes an ERC-20 token traded on the exchange.
type TokenInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Website  string `json:"website,omitempty"`
}

// RelayInfo identifies a fee recipient known to be a relay.
type RelayInfo struct {
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
}

// CurrencyInfo describes a supported fiat currency.
type CurrencyInfo struct {
	Symbol        string `json:"symbol"`
	SymbolNative  string `json:"symbol_native"`
	DecimalDigits int    `json:"decimal_digits"`
	Code          string `json:"code"`
}

// NetworkInfo holds the per-network exchange deployment parameters.
type NetworkInfo struct {
	Name            string
	BlockExplorer   string
	GenesisBlock    uint64
	ExchangeAddress string
	FeeTokenAddress string
}

// Registry is the injected shared context. All addresses are stored and
// compared in lowercase hex form.
type Registry struct {
	networkID uint64
	network   NetworkInfo
	fiat      CurrencyInfo

	mu     sync.RWMutex
	tokens map[string]TokenInfo
	relays map[string]RelayInfo
}

// New builds a Registry for the given network and fiat currency code.
func New(networkID uint64, fiatCode string) (*Registry, error) {
	network, ok := networks[networkID]
	if !ok {
		return nil, fmt.Errorf("unsupported network id %d", networkID)
	}
	fiat, ok := FiatCurrencies[fiatCode]
	if !ok {
		return nil, fmt.Errorf("unsupported fiat currency %q", fiatCode)
	}

	r := &Registry{
		networkID: networkID,
		network:   network,
		fiat:      fiat,
		tokens:    make(map[string]TokenInfo, len(seedTokens)),
		relays:    make(map[string]RelayInfo),
	}
	for addr, info := range seedTokens {
		r.tokens[addr] = info
	}
	for addr, info := range relayAddresses[networkID] {
		r.relays[addr] = info
	}
	return r, nil
}

// NetworkID returns the configured network id.
func (r *Registry) NetworkID() uint64 { return r.networkID }

// Network returns the network parameters.
func (r *Registry) Network() NetworkInfo { return r.network }

// ExchangeAddress returns the exchange contract address.
func (r *Registry) ExchangeAddress() string { return r.network.ExchangeAddress }

// FeeTokenAddress returns the fee token (ZRX) contract address.
func (r *Registry) FeeTokenAddress() string { return r.network.FeeTokenAddress }

// GenesisBlock returns the block the exchange was deployed at.
func (r *Registry) GenesisBlock() uint64 { return r.network.GenesisBlock }

// Fiat returns the configured fiat currency.
func (r *Registry) Fiat() CurrencyInfo { return r.fiat }

// Token looks up metadata for a token address.
func (r *Registry) Token(address string) (TokenInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tokens[normalizeAddress(address)]
	return info, ok
}

// Decimals returns the decimal count for a token address, if known.
func (r *Registry) Decimals(address string) (uint8, bool) {
	info, ok := r.Token(address)
	return info.Decimals, ok
}

// Symbol returns the display symbol for a token address, or the address
// itself when the token is unknown.
func (r *Registry) Symbol(address string) string {
	if info, ok := r.Token(address); ok {
		return info.Symbol
	}
	return normalizeAddress(address)
}

// AddToken registers metadata for a token observed at runtime. Existing
// entries are not overwritten.
func (r *Registry) AddToken(address string, info TokenInfo) {
	addr := normalizeAddress(address)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[addr]; !ok {
		r.tokens[addr] = info
	}
}

// Relay looks up relay metadata for a fee recipient address.
func (r *Registry) Relay(address string) (RelayInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.relays[normalizeAddress(address)]
	return info, ok
}

// TokenSymbols returns the sorted, deduplicated set of known symbols.
// Used to build the price feed query.
func (r *Registry) TokenSymbols() []string {
	r.mu.RLock()
	seen := make(map[string]struct{}, len(r.tokens))
	for _, info := range r.tokens {
		seen[info.Symbol] = struct{}{}
	}
	r.mu.RUnlock()

	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

func normalizeAddress(addr string) string {
	return strings.ToLower(addr)
}
