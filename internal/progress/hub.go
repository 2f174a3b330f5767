package progress

import "sync"

// Hub owns client (de)registration and fans Events out to every
// subscribed client, the same single-goroutine-owns-the-maps shape as the
// teacher's Hub.Run: all mutation happens by sending on register/unregister/
// broadcast channels rather than touching the client map directly.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event

	byRunID map[string]map[*Client]bool
	mu      sync.RWMutex

	done chan struct{}
}

// NewHub returns a Hub; call Run in a goroutine before registering clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		byRunID:    make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop; it blocks until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case ev := <-h.broadcast:
			h.broadcastEvent(ev)
		case <-h.done:
			return
		}
	}
}

// Stop ends the hub's event loop.
func (h *Hub) Stop() { close(h.done) }

// Register subscribes c to every event the hub broadcasts for its run.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes c; safe to call more than once.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Broadcast enqueues ev for delivery to every client subscribed to its run.
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		// Slow/stalled hub loop: drop rather than block the caller. The
		// per-client fan-out in broadcastEvent below is non-blocking too.
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	if c.runID != "" {
		if h.byRunID[c.runID] == nil {
			h.byRunID[c.runID] = make(map[*Client]bool)
		}
		h.byRunID[c.runID][c] = true
	}
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if c.runID != "" {
		delete(h.byRunID[c.runID], c)
	}
	close(c.send)
}

func (h *Hub) broadcastEvent(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.clients
	if ev.RunID != "" {
		targets = h.byRunID[ev.RunID]
	}
	for c := range targets {
		select {
		case c.send <- ev:
		default:
			// client's send buffer is full; drop rather than stall the hub.
		}
	}
}
