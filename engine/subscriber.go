// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/luxfi/dexwatch/stats"
	"github.com/luxfi/dexwatch/trade"
)

// wsClient is one WebSocket session.
type wsClient struct {
	id   string
	conn *websocket.Conn
}

// Subscriber streams new trades and statistics snapshots to WebSocket
// clients.
type Subscriber struct {
	clients    map[string]*wsClient
	broadcast  chan interface{}
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewSubscriber creates a Subscriber.
func NewSubscriber() *Subscriber {
	return &Subscriber{
		clients:    make(map[string]*wsClient),
		broadcast:  make(chan interface{}, 100),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Run services registration and broadcast until the context is canceled.
func (s *Subscriber) Run(ctx context.Context) {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-s.register:
			s.mu.Lock()
			s.clients[c.id] = c
			s.mu.Unlock()
		case c := <-s.unregister:
			s.mu.Lock()
			delete(s.clients, c.id)
			c.conn.Close()
			s.mu.Unlock()
		case msg := <-s.broadcast:
			s.mu.RLock()
			for _, c := range s.clients {
				if err := c.conn.WriteJSON(msg); err != nil {
					go func(cl *wsClient) { s.unregister <- cl }(c)
				}
			}
			s.mu.RUnlock()
		case <-heartbeat.C:
			s.broadcast <- map[string]string{"type": "heartbeat"}
		}
	}
}

// HandleWebSocket upgrades a request and registers the session.
func (s *Subscriber) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsClient{id: uuid.New().String(), conn: conn}
	s.register <- c
	_ = conn.WriteJSON(map[string]interface{}{"type": "connected", "session": c.id})
	go func() {
		defer func() { s.unregister <- c }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// BroadcastTrade announces a newly inserted trade and its ledger
// position.
func (s *Subscriber) BroadcastTrade(t *trade.Trade, index int) {
	select {
	case s.broadcast <- map[string]interface{}{"type": "trade_added", "index": index, "data": tradeJSON(t)}:
	default:
	}
}

// BroadcastStatistics announces a new statistics snapshot.
func (s *Subscriber) BroadcastStatistics(snapshot *stats.Statistics) {
	select {
	case s.broadcast <- map[string]interface{}{"type": "statistics_updated", "data": statsJSON(snapshot)}:
	default:
	}
}

// ClientCount returns the number of connected sessions.
func (s *Subscriber) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
