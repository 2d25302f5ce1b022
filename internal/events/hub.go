package events

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

const writeWait = 5 * time.Second

// Hub fans terminal events out to the websocket clients watching that terminal.
type Hub struct {
	upgrader  websocket.Upgrader
	mu        sync.Mutex
	clients   map[string]map[*websocket.Conn]bool
	broadcast chan domain.TerminalEvent
}

func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
		clients:   make(map[string]map[*websocket.Conn]bool),
		broadcast: make(chan domain.TerminalEvent, 64),
	}
}

// Run delivers queued events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case evt := <-h.broadcast:
			h.deliver(evt)
		}
	}
}

// Publish queues an event without blocking the caller. Events are dropped when the queue is full.
func (h *Hub) Publish(evt domain.TerminalEvent) {
	select {
	case h.broadcast <- evt:
	default:
		log.Printf("[events] WARN: queue full, dropping %s event for terminal %s", evt.Type, evt.TerminalID)
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, terminalID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[events] WARN: websocket upgrade failed: %v", err)
		return
	}
	h.register(terminalID, conn)
	defer h.unregister(terminalID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) ClientCount(terminalID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[terminalID])
}

func (h *Hub) register(terminalID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[terminalID] == nil {
		h.clients[terminalID] = make(map[*websocket.Conn]bool)
	}
	h.clients[terminalID][conn] = true
}

func (h *Hub) unregister(terminalID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[terminalID]; ok {
		if set[conn] {
			delete(set, conn)
			_ = conn.Close()
		}
		if len(set) == 0 {
			delete(h.clients, terminalID)
		}
	}
}

func (h *Hub) deliver(evt domain.TerminalEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients[evt.TerminalID] {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(evt); err != nil {
			log.Printf("[events] WARN: dropping client for terminal %s: %v", evt.TerminalID, err)
			_ = conn.Close()
			delete(h.clients[evt.TerminalID], conn)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for terminalID, set := range h.clients {
		for conn := range set {
			_ = conn.Close()
		}
		delete(h.clients, terminalID)
	}
}
