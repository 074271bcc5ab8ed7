package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/flowline-dev/flowline/internal/events"
)

// SSEHandler streams engine events to connected clients.
type SSEHandler struct {
	bus           *events.Bus
	mu            sync.RWMutex
	clients       map[*sseClient]struct{}
	heartbeatFreq time.Duration
}

type sseClient struct {
	id     string
	done   chan struct{}
	run    string // optional filter by run ID
	closed bool
}

// NewSSEHandler creates an SSE handler connected to the given bus.
func NewSSEHandler(bus *events.Bus) *SSEHandler {
	return &SSEHandler{
		bus:           bus,
		clients:       make(map[*sseClient]struct{}),
		heartbeatFreq: 30 * time.Second,
	}
}

// SetHeartbeatFrequency sets the interval between heartbeat comments.
func (h *SSEHandler) SetHeartbeatFrequency(d time.Duration) {
	h.heartbeatFreq = d
}

// ServeHTTP implements http.Handler for SSE connections.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	c := &sseClient{
		id:   fmt.Sprintf("%d", time.Now().UnixNano()),
		done: make(chan struct{}),
		run:  r.URL.Query().Get("run"),
	}

	h.addClient(c)
	defer h.removeClient(c)

	eventCh := h.bus.Subscribe()
	defer h.bus.Unsubscribe(eventCh)

	h.sendEvent(w, flusher, "connected", map[string]string{
		"client_id": c.id,
		"run":       c.run,
	})

	heartbeat := time.NewTicker(h.heartbeatFreq)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			h.sendComment(w, flusher, "heartbeat")
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if c.run != "" && event.RunID() != c.run {
				continue
			}
			h.sendEvent(w, flusher, event.EventType(), event)
		}
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData)
	flusher.Flush()
}

func (h *SSEHandler) sendComment(w http.ResponseWriter, flusher http.Flusher, comment string) {
	fmt.Fprintf(w, ": %s\n\n", comment)
	flusher.Flush()
}

func (h *SSEHandler) addClient(c *sseClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *SSEHandler) removeClient(c *sseClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// ClientCount returns the number of connected clients.
func (h *SSEHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects all clients.
func (h *SSEHandler) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.closed {
			c.closed = true
			close(c.done)
		}
	}
	h.clients = make(map[*sseClient]struct{})
	return nil
}
