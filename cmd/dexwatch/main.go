// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package main provides the CLI for running the exchange fill watcher.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/dexwatch/chain"
	"github.com/luxfi/dexwatch/engine"
	"github.com/luxfi/dexwatch/prices"
	"github.com/luxfi/dexwatch/registry"
	"github.com/luxfi/dexwatch/storage"
	"github.com/luxfi/dexwatch/storage/kv"
)

var version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file (optional)")
		rpcEndpoint = flag.String("rpc", "", "Chain RPC endpoint (e.g., https://mainnet.infura.io/...)")
		networkID   = flag.Uint64("network", 0, "Network id (1=Mainnet, 42=Kovan)")
		httpPort    = flag.Int("port", 0, "HTTP server port")
		fiatCode    = flag.String("fiat", "", "Fiat currency code (USD, EUR, GBP, JPY, KRW)")
		dataDir     = flag.String("data", "", "Checkpoint store directory (default: in-memory)")
		databaseURL = flag.String("db", "", "SQL archive DSN: postgres:// URL or sqlite path (optional)")
		pollStr     = flag.String("poll", "", "Head poll interval (e.g., 10s)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("dexwatch %s\n", version)
		os.Exit(0)
	}

	cfg := registry.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = registry.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	// Flags override the config file.
	if *rpcEndpoint != "" {
		cfg.RPCEndpoint = *rpcEndpoint
	}
	if *networkID != 0 {
		cfg.NetworkID = *networkID
	}
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}
	if *fiatCode != "" {
		cfg.FiatCurrency = *fiatCode
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *databaseURL != "" {
		cfg.DatabaseURL = *databaseURL
	}
	if *pollStr != "" {
		cfg.PollInterval = *pollStr
	}

	if cfg.RPCEndpoint == "" {
		flag.Usage()
		log.Fatal("Missing required flag: -rpc")
	}

	pollInterval, err := cfg.ParsedPollInterval()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	reg, err := registry.New(cfg.NetworkID, cfg.FiatCurrency)
	if err != nil {
		log.Fatalf("Failed to build registry: %v", err)
	}
	for addr, info := range cfg.Tokens {
		reg.AddToken(addr, info)
	}

	checkpoints, err := openCheckpoints(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open checkpoint store: %v", err)
	}
	defer checkpoints.Close()

	var archive *storage.Archive
	if cfg.DatabaseURL != "" {
		archive, err = storage.NewArchive(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open archive: %v", err)
		}
		defer archive.Close()
	}

	client := chain.New(cfg.RPCEndpoint, reg.ExchangeAddress())
	priceSource := prices.NewClient(cfg.PriceAPIURL, reg.Fiat().Code)

	engineCfg := engine.DefaultConfig()
	engineCfg.HTTPPort = cfg.HTTPPort
	engineCfg.PollInterval = pollInterval
	engineCfg.MaxTrades = cfg.MaxTrades

	eng, err := engine.New(engineCfg, reg, client, checkpoints, archive, priceSource)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received")
		cancel()
	}()

	log.Printf("Starting dexwatch %s on %s (port %d, poll %s)",
		version, reg.Network().Name, cfg.HTTPPort, pollInterval)
	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Engine error: %v", err)
	}
	log.Println("Stopped")
}

func openCheckpoints(dataDir string) (*kv.Store, error) {
	if dataDir == "" {
		return kv.NewMemory(), nil
	}
	return kv.New(dataDir)
}
