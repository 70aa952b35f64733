// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/luxfi/dexwatch/history"
	"github.com/luxfi/dexwatch/stats"
	"github.com/luxfi/dexwatch/trade"
)

func (e *Engine) startHTTP(ctx context.Context) {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/trades", e.handleTrades).Methods("GET")
	api.HandleFunc("/stats", e.handleStats).Methods("GET")
	api.HandleFunc("/pairs", e.handlePairs).Methods("GET")
	api.HandleFunc("/charts/{quote}/{base}", e.handleChart).Methods("GET")
	api.HandleFunc("/orders/{txid}", e.handleOrder).Methods("GET")
	api.HandleFunc("/trades/subscribe", e.subscriber.HandleWebSocket)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"network": e.reg.Network().Name,
			"ready":   e.Ready(),
		})
	})

	handler := corsMiddleware(r)
	server := &http.Server{Addr: fmt.Sprintf(":%d", e.cfg.HTTPPort), Handler: handler}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Printf("[engine] API on port %d", e.cfg.HTTPPort)
	_ = server.ListenAndServe()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (e *Engine) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	items := make([]map[string]interface{}, 0, limit)
	for _, t := range e.ledger.Recent(limit) {
		items = append(items, tradeJSON(t))
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": items, "total": e.ledger.Len()})
}

func (e *Engine) handleStats(w http.ResponseWriter, r *http.Request) {
	s := e.Statistics()
	if s == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ready": false})
		return
	}
	_ = json.NewEncoder(w).Encode(statsJSON(s))
}

func (e *Engine) handlePairs(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"pairs": e.history.Pairs()})
}

func (e *Engine) handleChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pair := vars["quote"] + "/" + vars["base"]

	priceData := e.history.PriceData(pair)
	volumeData := e.history.VolumeData(pair)
	if len(priceData) == 0 {
		http.Error(w, "unknown pair", http.StatusNotFound)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"pair":   pair,
		"price":  samplesJSON(priceData),
		"volume": samplesJSON(volumeData),
	})
}

func (e *Engine) handleOrder(w http.ResponseWriter, r *http.Request) {
	txid := mux.Vars(r)["txid"]
	orderHash := r.URL.Query().Get("orderHash")

	t := e.ledger.FindTx(txid, orderHash)
	if t == nil {
		http.Error(w, "trade not found", http.StatusNotFound)
		return
	}

	info, err := e.reconstructor.OrderDetails(r.Context(), t)
	if err != nil {
		http.Error(w, "order lookup canceled", http.StatusServiceUnavailable)
		return
	}

	resp := map[string]interface{}{
		"error":       info.Error,
		"isOpenTaker": info.IsOpenTaker,
		"isExpired":   info.IsExpired,
	}
	if info.Order != nil {
		resp["order"] = info.Order
		resp["takerAmountRemaining"] = ratDecimal(info.TakerAmountRemaining)
		resp["remainingNormalized"] = info.RemainingNormalized
	}
	if info.Transaction != nil {
		resp["transaction"] = map[string]interface{}{
			"hash":     info.Transaction.Hash,
			"gas":      info.Transaction.Gas,
			"gasPrice": info.Transaction.GasPrice.String(),
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func tradeJSON(t *trade.Trade) map[string]interface{} {
	out := map[string]interface{}{
		"txid":            t.TxID,
		"orderHash":       t.OrderHash,
		"blockNumber":     t.BlockNumber,
		"timestamp":       t.Timestamp,
		"maker":           t.Maker,
		"taker":           t.Taker,
		"relay":           t.Relay,
		"makerToken":      t.MakerToken,
		"takerToken":      t.TakerToken,
		"makerVolume":     ratDecimal(t.MakerVolume),
		"takerVolume":     ratDecimal(t.TakerVolume),
		"makerFee":        ratDecimal(t.MakerFee),
		"takerFee":        ratDecimal(t.TakerFee),
		"makerNormalized": t.MakerNormalized,
		"takerNormalized": t.TakerNormalized,
	}
	if t.MTPrice != nil {
		out["mtPrice"] = ratDecimal(t.MTPrice)
		out["tmPrice"] = ratDecimal(t.TMPrice)
	}
	return out
}

func statsJSON(s *stats.Statistics) map[string]interface{} {
	relayFees := make(map[string]string, len(s.Fees.Relays))
	for addr, fee := range s.Fees.Relays {
		relayFees[addr] = ratDecimal(fee)
	}
	tokens := make(map[string]map[string]interface{}, len(s.Volume.Tokens))
	for addr, tv := range s.Volume.Tokens {
		tokens[addr] = map[string]interface{}{
			"volume":     ratDecimal(tv.Volume),
			"volumeFiat": ratDecimal(tv.VolumeFiat),
			"count":      tv.Count,
		}
	}

	fees := map[string]interface{}{
		"relays":       relayFees,
		"feeCount":     s.Fees.FeeCount,
		"feelessCount": s.Fees.FeelessCount,
		"totalFees":    ratDecimal(s.Fees.TotalFees),
	}
	if s.Fees.TotalFeesFiat != nil {
		fees["totalFeesFiat"] = ratDecimal(s.Fees.TotalFeesFiat)
		fees["feeTokenPrice"] = ratDecimal(s.Fees.FeeTokenPrice)
	}

	return map[string]interface{}{
		"time":     s.Time,
		"window":   int64(s.Window.Seconds()),
		"currency": s.Currency,
		"fees":     fees,
		"volume": map[string]interface{}{
			"totalTrades":     s.Volume.TotalTrades,
			"totalVolumeFiat": ratDecimal(s.Volume.TotalVolumeFiat),
			"tokens":          tokens,
		},
		"counts": map[string]interface{}{
			"relays": s.Counts.Relays,
		},
	}
}

func samplesJSON(samples []history.Sample) []map[string]interface{} {
	out := make([]map[string]interface{}, len(samples))
	for i, sm := range samples {
		out[i] = map[string]interface{}{"t": sm.Timestamp, "v": ratDecimal(sm.Value)}
	}
	return out
}

// ratDecimal renders a rational as a decimal string, exact for integers
// and trimmed to 18 fractional digits otherwise.
func ratDecimal(r *big.Rat) string {
	if r == nil {
		return ""
	}
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
