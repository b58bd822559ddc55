package web

import (
	"sync"

	"github.com/codefionn/hyphertext/internal/events"
	"github.com/codefionn/hyphertext/internal/logger"
)

// Hub maintains the subscribers of every page and fans events out to them.
// It implements events.Publisher.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan events.Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	log        *logger.Logger
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan events.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        logger.Global().WithPrefix("web"),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	h.log.Info("event hub started")
	defer h.log.Info("event hub stopped")
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.pageID] == nil {
				h.clients[client.pageID] = make(map[*Client]bool)
			}
			h.clients[client.pageID][client] = true
			h.mu.Unlock()
			h.log.Debug("client %s subscribed to page %s", client.ID, client.pageID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.log.Debug("client %s unsubscribed", client.ID)

		case ev := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[ev.PageID] {
				select {
				case client.send <- ev:
				default:
					// Slow subscriber, drop it
					h.remove(client)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for _, subs := range h.clients {
				for client := range subs {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	subs := h.clients[client.pageID]
	if _, ok := subs[client]; !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.clients, client.pageID)
	}
	close(client.send)
}

// Stop stops the hub and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() {
	<-h.done
}

// Register registers a new client. It reports false once the hub stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister unregisters a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Publish queues ev for the subscribers of its page without blocking.
func (h *Hub) Publish(ev events.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("broadcast channel full, dropping %s event for page %s", ev.Type, ev.PageID)
	}
}

// ClientCount returns the number of subscribers of a page
func (h *Hub) ClientCount(pageID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[pageID])
}
