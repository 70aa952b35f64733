// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package chain is the JSON-RPC client for the exchange's host chain. It
// supplies everything the ingestion pipeline consumes: block timestamps,
// transactions, LogFill event queries, and exchange contract state.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/luxfi/dexwatch/trade"
)

// LogFillTopic is the topic0 of the exchange's LogFill event.
const LogFillTopic = "0x0d0b9391970d9a25552f37d436d2aae2925e2bfe1b2a923754bada030c498cb3"

// unavailableTakerSelector is the 4-byte selector of
// getUnavailableTakerTokenAmount(bytes32).
const unavailableTakerSelector = "0x7e9abb50"

// ErrBlockNotFound marks a block the node does not have yet. Callers
// retry it rather than treating it as permanent.
var ErrBlockNotFound = errors.New("block not found")

// ErrTxNotFound marks a transaction the node does not have yet.
var ErrTxNotFound = errors.New("transaction not found")

// Transaction is the subset of a chain transaction the service uses.
type Transaction struct {
	Hash        string   `json:"hash"`
	Input       string   `json:"input"`
	Gas         uint64   `json:"gas"`
	GasPrice    *big.Int `json:"gasPrice"`
	BlockNumber uint64   `json:"blockNumber"`
}

// Client talks JSON-RPC over HTTP to a chain node.
type Client struct {
	rpcEndpoint     string
	exchangeAddress string
	httpClient      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client bound to one exchange contract.
func New(rpcEndpoint, exchangeAddress string, opts ...Option) *Client {
	c := &Client{
		rpcEndpoint:     rpcEndpoint,
		exchangeAddress: strings.ToLower(exchangeAddress),
		httpClient:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NetworkID returns the node's network id (net_version).
func (c *Client) NetworkID(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "net_version", []interface{}{})
	if err != nil {
		return 0, err
	}
	var version string
	if err := json.Unmarshal(result, &version); err != nil {
		return 0, fmt.Errorf("decode net_version: %w", err)
	}
	id, err := strconv.ParseUint(version, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse net_version %q: %w", version, err)
	}
	return id, nil
}

// BlockNumber returns the current chain head number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, err
	}
	var hex string
	if err := json.Unmarshal(result, &hex); err != nil {
		return 0, fmt.Errorf("decode block number: %w", err)
	}
	return hexToUint64(hex), nil
}

// BlockTimestamp returns a block's timestamp. A block the node has not
// seen yet returns ErrBlockNotFound.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (int64, error) {
	result, err := c.call(ctx, "eth_getBlockByNumber", []interface{}{hexUint64(number), false})
	if err != nil {
		return 0, err
	}
	if string(result) == "null" {
		return 0, fmt.Errorf("block %d: %w", number, ErrBlockNotFound)
	}

	var block struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(result, &block); err != nil {
		return 0, fmt.Errorf("decode block %d: %w", number, err)
	}
	return int64(hexToUint64(block.Timestamp)), nil
}

// Transaction fetches a transaction by hash.
func (c *Client) Transaction(ctx context.Context, txid string) (*Transaction, error) {
	result, err := c.call(ctx, "eth_getTransactionByHash", []interface{}{txid})
	if err != nil {
		return nil, err
	}
	if string(result) == "null" {
		return nil, fmt.Errorf("transaction %s: %w", txid, ErrTxNotFound)
	}

	var raw struct {
		Hash        string `json:"hash"`
		Input       string `json:"input"`
		Gas         string `json:"gas"`
		GasPrice    string `json:"gasPrice"`
		BlockNumber string `json:"blockNumber"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", txid, err)
	}

	return &Transaction{
		Hash:        raw.Hash,
		Input:       raw.Input,
		Gas:         hexToUint64(raw.Gas),
		GasPrice:    hexToBigInt(raw.GasPrice),
		BlockNumber: hexToUint64(raw.BlockNumber),
	}, nil
}

// FillLogs queries LogFill events emitted by the exchange over an
// inclusive block range and decodes them into fill events, in emission
// order.
func (c *Client) FillLogs(ctx context.Context, fromBlock, toBlock uint64) ([]trade.FillEvent, error) {
	result, err := c.call(ctx, "eth_getLogs", []interface{}{
		map[string]interface{}{
			"fromBlock": hexUint64(fromBlock),
			"toBlock":   hexUint64(toBlock),
			"address":   c.exchangeAddress,
			"topics":    []string{LogFillTopic},
		},
	})
	if err != nil {
		return nil, err
	}

	var logs []struct {
		Topics          []string `json:"topics"`
		Data            string   `json:"data"`
		BlockNumber     string   `json:"blockNumber"`
		TransactionHash string   `json:"transactionHash"`
		Removed         bool     `json:"removed"`
	}
	if err := json.Unmarshal(result, &logs); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}

	events := make([]trade.FillEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := decodeFillLog(l.Topics, l.Data, l.TransactionHash, hexToUint64(l.BlockNumber))
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// UnavailableTakerAmount queries the exchange contract for the taker
// token amount of an order that is already filled or cancelled.
func (c *Client) UnavailableTakerAmount(ctx context.Context, orderHash string) (*big.Int, error) {
	data := unavailableTakerSelector + strings.TrimPrefix(orderHash, "0x")
	result, err := c.callContract(ctx, c.exchangeAddress, data)
	if err != nil {
		return nil, err
	}
	return hexToBigInt(result), nil
}

// decodeFillLog unpacks one LogFill entry. Indexed fields: maker and
// feeRecipient (plus the token pair hash, unused here). Data words:
// taker, makerToken, takerToken, filledMakerTokenAmount,
// filledTakerTokenAmount, paidMakerFee, paidTakerFee, orderHash.
func decodeFillLog(topics []string, data, txHash string, blockNumber uint64) (trade.FillEvent, error) {
	if len(topics) < 3 {
		return trade.FillEvent{}, fmt.Errorf("fill log %s: want 3+ topics, got %d", txHash, len(topics))
	}

	raw := strings.TrimPrefix(data, "0x")
	if len(raw) < 8*64 {
		return trade.FillEvent{}, fmt.Errorf("fill log %s: short data (%d chars)", txHash, len(raw))
	}
	word := func(i int) string { return raw[i*64 : (i+1)*64] }

	return trade.FillEvent{
		TxID:              txHash,
		OrderHash:         "0x" + word(7),
		BlockNumber:       blockNumber,
		Maker:             topicAddress(topics[1]),
		Taker:             wordAddress(word(0)),
		FeeRecipient:      topicAddress(topics[2]),
		MakerToken:        wordAddress(word(1)),
		TakerToken:        wordAddress(word(2)),
		FilledMakerAmount: wordBigInt(word(3)),
		FilledTakerAmount: wordBigInt(word(4)),
		PaidMakerFee:      wordBigInt(word(5)),
		PaidTakerFee:      wordBigInt(word(6)),
	}, nil
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	reqBody, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.rpcEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if result.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", result.Error.Code, result.Error.Message)
	}

	return result.Result, nil
}

func (c *Client) callContract(ctx context.Context, to, data string) (string, error) {
	result, err := c.call(ctx, "eth_call", []interface{}{
		map[string]string{"to": to, "data": data},
		"latest",
	})
	if err != nil {
		return "", err
	}

	var resultHex string
	if err := json.Unmarshal(result, &resultHex); err != nil {
		return "", err
	}
	return resultHex, nil
}

func hexUint64(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

func hexToUint64(s string) uint64 {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0
	}
	n := new(big.Int)
	n.SetString(s, 16)
	return n.Uint64()
}

func hexToBigInt(s string) *big.Int {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return big.NewInt(0)
	}
	n := new(big.Int)
	n.SetString(s, 16)
	return n
}

// topicAddress extracts the address from a 32-byte indexed topic.
func topicAddress(topic string) string {
	t := strings.TrimPrefix(topic, "0x")
	if len(t) < 40 {
		return "0x" + t
	}
	return strings.ToLower("0x" + t[len(t)-40:])
}

// wordAddress extracts the right-aligned address from a 64-char data word.
func wordAddress(word string) string {
	if len(word) < 64 {
		return "0x" + word
	}
	return strings.ToLower("0x" + word[24:])
}

func wordBigInt(word string) *big.Int {
	n := new(big.Int)
	n.SetString(word, 16)
	return n
}
