// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gorilla/websocket"

	"github.com/luxfi/dexwatch/chain"
	"github.com/luxfi/dexwatch/engine"
	"github.com/luxfi/dexwatch/order"
	"github.com/luxfi/dexwatch/prices"
	"github.com/luxfi/dexwatch/registry"
	"github.com/luxfi/dexwatch/storage/kv"
)

const (
	genesisBlock = uint64(4145578)

	makerAddr = "0x1111111111111111111111111111111111111111"
	takerAddr = "0x2222222222222222222222222222222222222222"
	relayAddr = "0xa258b39954cef5cb142fd567a46cddb31a670124"
	zrxToken  = "0xe41d2489571d322189246dafa5ebde1f4699f498"
	wethToken = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

func word(s string) string {
	return fmt.Sprintf("%064s", strings.TrimPrefix(s, "0x"))
}

func uintWord(n *big.Int) string {
	return fmt.Sprintf("%064x", n)
}

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// testOrder is the order behind every scripted fill: 10 ZRX maker side
// against 1 WETH taker side, open expiration.
func testOrder() *order.FillArgs {
	return &order.FillArgs{
		Maker:            makerAddr,
		Taker:            takerAddr,
		MakerToken:       zrxToken,
		TakerToken:       wethToken,
		FeeRecipient:     relayAddr,
		MakerTokenAmount: new(big.Int).Mul(big.NewInt(10), exp10(18)),
		TakerTokenAmount: exp10(18),
		MakerFee:         big.NewInt(0),
		TakerFee:         big.NewInt(0),
		Expiration:       big.NewInt(4000000000),
		Salt:             big.NewInt(12345),
	}
}

func fillOrderCalldata(args *order.FillArgs) string {
	var b strings.Builder
	b.WriteString(order.FillOrderSelector)
	b.WriteString(word(args.Maker))
	b.WriteString(word(args.Taker))
	b.WriteString(word(args.MakerToken))
	b.WriteString(word(args.TakerToken))
	b.WriteString(word(args.FeeRecipient))
	b.WriteString(uintWord(args.MakerTokenAmount))
	b.WriteString(uintWord(args.TakerTokenAmount))
	b.WriteString(uintWord(args.MakerFee))
	b.WriteString(uintWord(args.TakerFee))
	b.WriteString(uintWord(args.Expiration))
	b.WriteString(uintWord(args.Salt))
	b.WriteString(uintWord(args.TakerTokenAmount)) // fillTakerTokenAmount
	b.WriteString(uintWord(big.NewInt(1)))         // shouldThrow
	b.WriteString(uintWord(big.NewInt(27)))        // v
	b.WriteString(strings.Repeat("ab", 32))        // r
	b.WriteString(strings.Repeat("cd", 32))        // s
	return b.String()
}

type fillLog struct {
	txHash      string
	blockNumber uint64
	orderHash   string
	makerAmount *big.Int
	takerAmount *big.Int
}

func (l fillLog) json() map[string]interface{} {
	data := "0x" +
		word(takerAddr) +
		word(zrxToken) +
		word(wethToken) +
		uintWord(l.makerAmount) +
		uintWord(l.takerAmount) +
		uintWord(big.NewInt(0)) +
		uintWord(big.NewInt(0)) +
		word(l.orderHash)

	return map[string]interface{}{
		"topics": []string{
			chain.LogFillTopic,
			"0x" + word(makerAddr),
			"0x" + word(relayAddr),
			"0x" + strings.Repeat("77", 32),
		},
		"data":            data,
		"blockNumber":     fmt.Sprintf("0x%x", l.blockNumber),
		"transactionHash": l.txHash,
		"removed":         false,
	}
}

// fakeNode is a scripted JSON-RPC chain node. The first historical log
// query returns the seeded fills; later queries drain liveLogs.
type fakeNode struct {
	mu       sync.Mutex
	head     uint64
	seeded   []fillLog
	liveLogs []fillLog
	asked    bool
	calldata string
}

func (n *fakeNode) setHead(h uint64) { n.mu.Lock(); n.head = h; n.mu.Unlock() }

func (n *fakeNode) addLive(l fillLog) {
	n.mu.Lock()
	n.liveLogs = append(n.liveLogs, l)
	n.mu.Unlock()
}

func (n *fakeNode) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     int               `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		n.mu.Lock()
		var result interface{}
		switch req.Method {
		case "net_version":
			result = "1"
		case "eth_blockNumber":
			result = fmt.Sprintf("0x%x", n.head)
		case "eth_getBlockByNumber":
			// Timestamps track block numbers so ledger order is stable.
			var hexNum string
			_ = json.Unmarshal(req.Params[0], &hexNum)
			num := new(big.Int)
			num.SetString(strings.TrimPrefix(hexNum, "0x"), 16)
			ts := time.Now().Unix() - 3600 + num.Int64() - int64(genesisBlock)
			result = map[string]string{"timestamp": fmt.Sprintf("0x%x", ts)}
		case "eth_getLogs":
			logs := make([]map[string]interface{}, 0)
			if !n.asked {
				n.asked = true
				for _, l := range n.seeded {
					logs = append(logs, l.json())
				}
			} else {
				for _, l := range n.liveLogs {
					logs = append(logs, l.json())
				}
				n.liveLogs = nil
			}
			result = logs
		case "eth_getTransactionByHash":
			result = map[string]string{
				"hash":        "0xfeed01",
				"input":       n.calldata,
				"gas":         "0x15f90",
				"gasPrice":    "0x3b9aca00",
				"blockNumber": fmt.Sprintf("0x%x", genesisBlock+10),
			}
		case "eth_call":
			result = "0x" + strings.Repeat("0", 64)
		default:
			n.mu.Unlock()
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"no method"}}`, req.ID)
			return
		}
		n.mu.Unlock()

		resp, _ := json.Marshal(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
		w.Write(resp)
	}
}

func freePort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func getJSON(url string, out interface{}) int {
	resp, err := http.Get(url)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}
	return resp.StatusCode
}

var _ = Describe("dexwatch engine", Ordered, func() {
	var (
		node      *fakeNode
		nodeSrv   *httptest.Server
		priceSrv  *httptest.Server
		eng       *engine.Engine
		cancelRun context.CancelFunc
		apiBase   string
		orderHash string
	)

	BeforeAll(func() {
		reg, err := registry.New(1, "USD")
		Expect(err).NotTo(HaveOccurred())

		args := testOrder()
		orderHash, err = order.HashOrder(reg.ExchangeAddress(), args)
		Expect(err).NotTo(HaveOccurred())

		node = &fakeNode{
			head:     genesisBlock + 100,
			calldata: fillOrderCalldata(args),
			seeded: []fillLog{
				{txHash: "0xfeed01", blockNumber: genesisBlock + 10, orderHash: orderHash,
					makerAmount: new(big.Int).Mul(big.NewInt(10), exp10(18)), takerAmount: exp10(18)},
				{txHash: "0xfeed02", blockNumber: genesisBlock + 20, orderHash: orderHash,
					makerAmount: new(big.Int).Mul(big.NewInt(5), exp10(18)), takerAmount: new(big.Int).Div(exp10(18), big.NewInt(2))},
			},
		}
		nodeSrv = httptest.NewServer(node.handler())

		priceSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ZRX":{"USD":0.5},"ETH":{"USD":2000}}`))
		}))

		port := freePort()
		apiBase = fmt.Sprintf("http://127.0.0.1:%d", port)

		cfg := engine.DefaultConfig()
		cfg.HTTPPort = port
		cfg.PollInterval = 50 * time.Millisecond
		cfg.RetryInterval = 10 * time.Millisecond

		store := kv.NewMemory()
		DeferCleanup(func() { store.Close() })

		eng, err = engine.New(cfg, reg,
			chain.New(nodeSrv.URL, reg.ExchangeAddress()),
			store, nil,
			prices.NewClient(priceSrv.URL, "USD"))
		Expect(err).NotTo(HaveOccurred())

		var ctx context.Context
		ctx, cancelRun = context.WithCancel(context.Background())
		go func() {
			defer GinkgoRecover()
			Expect(eng.Run(ctx)).To(Succeed())
		}()
	})

	AfterAll(func() {
		cancelRun()
		nodeSrv.Close()
		priceSrv.Close()
	})

	It("completes the initial backfill", func() {
		Eventually(eng.Ready, "10s", "20ms").Should(BeTrue())
		Eventually(func() int { return eng.Ledger().Len() }, "5s", "20ms").Should(Equal(2))
	})

	It("serves the trade list", func() {
		var body struct {
			Items []map[string]interface{} `json:"items"`
			Total int                      `json:"total"`
		}
		Eventually(func() int { return getJSON(apiBase+"/api/v1/trades", &body) },
			"5s", "50ms").Should(Equal(http.StatusOK))

		Expect(body.Total).To(Equal(2))
		Expect(body.Items).To(HaveLen(2))
		// Newest first.
		Expect(body.Items[0]["txid"]).To(Equal("0xfeed02"))
		Expect(body.Items[0]["makerVolume"]).To(Equal("5"))
		Expect(body.Items[0]["relay"]).To(Equal(relayAddr))
	})

	It("serves windowed statistics with fiat conversion", func() {
		var body map[string]interface{}
		Eventually(func() int { return getJSON(apiBase+"/api/v1/stats", &body) },
			"5s", "50ms").Should(Equal(http.StatusOK))

		volume := body["volume"].(map[string]interface{})
		Expect(volume["totalTrades"]).To(BeNumerically("==", 2))

		// 15 ZRX at $0.50 plus 1.5 WETH at the aliased ETH quote of $2000.
		Eventually(func() interface{} {
			var b map[string]interface{}
			if getJSON(apiBase+"/api/v1/stats", &b) != http.StatusOK {
				return nil
			}
			return b["volume"].(map[string]interface{})["totalVolumeFiat"]
		}, "5s", "50ms").Should(Equal("3007.5"))
	})

	It("serves chart series for traded pairs", func() {
		var pairsBody struct {
			Pairs []string `json:"pairs"`
		}
		Expect(getJSON(apiBase+"/api/v1/pairs", &pairsBody)).To(Equal(http.StatusOK))
		Expect(pairsBody.Pairs).To(ContainElement("ZRX/WETH"))

		var chartBody struct {
			Pair  string                   `json:"pair"`
			Price []map[string]interface{} `json:"price"`
		}
		Expect(getJSON(apiBase+"/api/v1/charts/ZRX/WETH", &chartBody)).To(Equal(http.StatusOK))
		Expect(chartBody.Price).To(HaveLen(2))

		Expect(getJSON(apiBase+"/api/v1/charts/FOO/BAR", nil)).To(Equal(http.StatusNotFound))
	})

	It("reconstructs orders from transaction calldata", func() {
		var body map[string]interface{}
		Expect(getJSON(apiBase+"/api/v1/orders/0xfeed01", &body)).To(Equal(http.StatusOK))

		Expect(body["error"]).To(BeEmpty())
		Expect(body["isOpenTaker"]).To(BeFalse())
		Expect(body["isExpired"]).To(BeFalse())
		// Nothing unavailable: the full 1 WETH taker amount remains.
		Expect(body["takerAmountRemaining"]).To(Equal("1"))

		ord := body["order"].(map[string]interface{})
		sig := ord["signature"].(map[string]interface{})
		Expect(sig["hash"]).To(Equal(orderHash))
	})

	It("accepts websocket subscribers", func() {
		wsURL := strings.Replace(apiBase, "http://", "ws://", 1) + "/api/v1/trades/subscribe"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var hello map[string]interface{}
		Expect(conn.ReadJSON(&hello)).To(Succeed())
		Expect(hello["type"]).To(Equal("connected"))
		Expect(hello["session"]).NotTo(BeEmpty())
	})

	It("ingests live fills from new blocks", func() {
		node.addLive(fillLog{
			txHash:      "0xfeed03",
			blockNumber: genesisBlock + 105,
			orderHash:   orderHash,
			makerAmount: exp10(18),
			takerAmount: new(big.Int).Div(exp10(18), big.NewInt(10)),
		})
		node.setHead(genesisBlock + 110)

		Eventually(func() int { return eng.Ledger().Len() }, "5s", "20ms").Should(Equal(3))
	})
})
